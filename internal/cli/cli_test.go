package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanmeadows/recheck/internal/recheck"
)

// fakeGitHub serves one PR (o/r#7) whose "check" run failed with summary
// (TIMED_OUT when empty).
type fakeGitHub struct {
	mu      sync.Mutex
	posts   []string
	summary string
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v3/repos/o/r/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number":7,"mergeable_state":"clean","head":{"sha":"abc1234def"}}`)
	})
	mux.HandleFunc("GET /api/v3/repos/o/r/commits/abc1234def/status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"state":"success"}`)
	})
	mux.HandleFunc("GET /api/v3/repos/o/r/commits/abc1234def/check-runs", func(w http.ResponseWriter, r *http.Request) {
		summary := f.summary
		if summary == "" {
			summary = "TIMED_OUT"
		}
		fmt.Fprintf(w, `{"total_count":1,"check_runs":[{"external_id":"check","status":"completed","conclusion":"failure","output":{"summary":%q}}]}`, summary)
	})
	mux.HandleFunc("GET /api/v3/repos/o/r/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			fmt.Fprint(w, `[{"body":"hello"}]`)
			return
		}
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("POST /api/v3/repos/o/r/issues/7/comments", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var comment map[string]string
		require.NoError(t, json.Unmarshal(body, &comment))

		f.mu.Lock()
		f.posts = append(f.posts, comment["body"])
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{}`)
	})
	return mux
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	err := rootCmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestPositionalArgs(t *testing.T) {
	assert.NoError(t, positionalArgs(rootCmd, nil))
	assert.NoError(t, positionalArgs(rootCmd, []string{"u", "t", "host", "o/r", "1", "2"}))
	assert.Error(t, positionalArgs(rootCmd, []string{"u", "t", "host", "o/r"}))
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, true, parseValue("dry_run", "true"))
	assert.Equal(t, int64(300), parseValue("time", "300"))
	assert.Equal(t, "json", parseValue("log.format", "json"))
	assert.Equal(t, "104", parseValue("prs.-1", "104"))
}

func TestStatusRow(t *testing.T) {
	row := statusRow(&recheck.Evaluation{
		PR:             "7",
		HeadSHA:        "abc1234def",
		MergeableState: "clean",
		Action:         recheck.ActionRecheck,
	})
	assert.Equal(t, []string{"7", "abc1234", "clean", "-", "recheck"}, row)
}

func TestStatusCommand(t *testing.T) {
	fake := &fakeGitHub{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	out, err := execute(t, "status", "--log-format", "json", "bot", "secret", srv.URL, "o/r", "7")
	require.NoError(t, err)

	assert.Contains(t, out, "DECISION")
	assert.Contains(t, out, "abc1234")
	assert.Contains(t, out, "recheck")
	assert.Empty(t, fake.posts, "status must not post")
}

func TestStatusCommand_RecheckOnAnyFailure(t *testing.T) {
	t.Cleanup(func() { recheckOnAnyFailure = false })
	fake := &fakeGitHub{summary: "FAILURE"}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	out, err := execute(t, "status", "--log-format", "json", "bot", "secret", srv.URL, "o/r", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "none")
	assert.NotContains(t, out, "recheck")

	out, err = execute(t, "status", "--recheck_on_any_failure", "--log-format", "json", "bot", "secret", srv.URL, "o/r", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "recheck")
	assert.Empty(t, fake.posts)
}

func TestRootCommand_OncePostsRecheck(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	fake := &fakeGitHub{}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	_, err := execute(t, "--once", "--log-format", "json", "bot", "secret", srv.URL, "o/r", "7")
	require.NoError(t, err)
	assert.Equal(t, []string{"recheck"}, fake.posts)
}

func TestConfigSetAndShow(t *testing.T) {
	t.Cleanup(func() { configPath = "" })
	path := filepath.Join(t.TempDir(), "recheck.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{
  // bot credentials
  "token": "secret",
  "repo": "o/r"
}`), 0600))

	out, err := execute(t, "--config", path, "config", "set", "time", "120")
	require.NoError(t, err)
	assert.Contains(t, out, "Set time = 120")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var written map[string]any
	require.NoError(t, json.Unmarshal(data, &written))
	assert.Equal(t, float64(120), written["time"])
	assert.Equal(t, "o/r", written["repo"])

	out, err = execute(t, "--config", path, "config", "show", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"time":120`)
	assert.Contains(t, out, `"token":"***"`)
	assert.NotContains(t, out, "secret")
}

func TestConfigSet_RequiresConfigPath(t *testing.T) {
	t.Cleanup(func() { configPath = "" })
	configPath = ""
	_, err := execute(t, "config", "set", "time", "5")
	assert.Error(t, err)
}
