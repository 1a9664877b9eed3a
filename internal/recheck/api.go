package recheck

import (
	"context"

	"github.com/alanmeadows/recheck/internal/github"
)

//go:generate mockgen -source=api.go -destination=mock_api_test.go -package=recheck

// API is the REST transport the evaluator reads from and posts to.
// *github.Backend implements it.
type API interface {
	// Get issues an authenticated GET.
	Get(ctx context.Context, path string) github.Result
	// GetPreview is Get with the check-runs preview media type.
	GetPreview(ctx context.Context, path string) github.Result
	// Post issues an authenticated POST with a JSON body.
	Post(ctx context.Context, path string, body any) error
}

var _ API = (*github.Backend)(nil)
