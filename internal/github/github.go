package github

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	github_ratelimit "github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"
)

// PreviewMediaType is the content-negotiation header required to read
// check-run resources on older GitHub Enterprise API versions.
const PreviewMediaType = "application/vnd.github.antiope-preview+json"

// Options configures a Backend.
type Options struct {
	// Host is the API host (e.g. "github.example.com"). "github.com" and
	// "api.github.com" select the public API. A value with a scheme is used
	// verbatim, which is how tests point the backend at httptest servers.
	Host string
	// User is the basic-auth user. When empty, Token is sent as a bearer token.
	User  string
	Token string
	// RespectRateLimits wraps the transport in go-github-ratelimit so the
	// backend sleeps through primary and secondary rate limits.
	RespectRateLimits bool
}

// Backend is an authenticated transport to the GitHub REST API. Reads return
// a Result instead of an error so the caller decides whether an empty
// response is fatal.
type Backend struct {
	client *gh.Client
	host   string
}

// NewBackend creates a Backend for the given options.
func NewBackend(opts Options) (*Backend, error) {
	if opts.Host == "" {
		return nil, fmt.Errorf("API host is required")
	}

	client := gh.NewClient(newHTTPClient(opts))

	baseURL, ok := enterpriseBaseURL(opts.Host)
	if ok {
		var err error
		client, err = client.WithEnterpriseURLs(baseURL, baseURL)
		if err != nil {
			return nil, fmt.Errorf("configuring API host %q: %w", opts.Host, err)
		}
	}

	return &Backend{client: client, host: opts.Host}, nil
}

// newHTTPClient builds the authenticated HTTP client: basic auth when a user
// is configured, otherwise an oauth2 bearer token.
func newHTTPClient(opts Options) *http.Client {
	var transport http.RoundTripper
	if opts.User != "" {
		transport = &gh.BasicAuthTransport{
			Username: opts.User,
			Password: opts.Token,
		}
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
		transport = &oauth2.Transport{Source: ts}
	}

	if opts.RespectRateLimits {
		return github_ratelimit.NewClient(transport)
	}
	return &http.Client{Transport: transport}
}

// enterpriseBaseURL maps a host to the base URL go-github should use.
// Returns false for the public API, which is go-github's default.
func enterpriseBaseURL(host string) (string, bool) {
	switch strings.ToLower(strings.TrimSuffix(host, "/")) {
	case "github.com", "api.github.com", "https://github.com", "https://api.github.com":
		return "", false
	}
	if strings.Contains(host, "://") {
		return strings.TrimSuffix(host, "/") + "/", true
	}
	return "https://" + strings.TrimSuffix(host, "/") + "/", true
}

// Host returns the configured API host.
func (b *Backend) Host() string {
	return b.host
}

// Get issues an authenticated GET for the given API path.
func (b *Backend) Get(ctx context.Context, path string) Result {
	return b.get(ctx, path, "")
}

// GetPreview is Get with the check-runs preview media type.
func (b *Backend) GetPreview(ctx context.Context, path string) Result {
	return b.get(ctx, path, PreviewMediaType)
}

func (b *Backend) get(ctx context.Context, path, accept string) Result {
	req, err := b.client.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return Result{Err: fmt.Errorf("building request for %s: %w", path, err)}
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	var buf bytes.Buffer
	if _, err := b.client.Do(ctx, req, &buf); err != nil {
		slog.Debug("GET failed", "path", path, "error", err)
		return Result{Err: fmt.Errorf("GET %s: %w", path, err)}
	}
	return Result{Body: buf.Bytes()}
}

// Post issues an authenticated POST with body encoded as JSON. The response
// body is not inspected.
func (b *Backend) Post(ctx context.Context, path string, body any) error {
	req, err := b.client.NewRequest(http.MethodPost, path, body)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	if _, err := b.client.Do(ctx, req, nil); err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	return nil
}

// PullRequestPath returns the API path of a pull request.
func PullRequestPath(repo, pr string) string {
	return fmt.Sprintf("repos/%s/pulls/%s", repo, url.PathEscape(pr))
}

// CommitStatusPath returns the API path of a commit's combined status.
func CommitStatusPath(repo, sha string) string {
	return fmt.Sprintf("repos/%s/commits/%s/status", repo, sha)
}

// CheckRunsPath returns the API path of a commit's check runs.
func CheckRunsPath(repo, sha string) string {
	return fmt.Sprintf("repos/%s/commits/%s/check-runs", repo, sha)
}

// IssueCommentsPath returns the API path of one page of a PR's issue comments.
func IssueCommentsPath(repo, pr string, page int) string {
	return fmt.Sprintf("repos/%s/issues/%s/comments?page=%d", repo, url.PathEscape(pr), page)
}

// PostCommentPath returns the API path used to create an issue comment.
func PostCommentPath(repo, pr string) string {
	return fmt.Sprintf("repos/%s/issues/%s/comments", repo, url.PathEscape(pr))
}
