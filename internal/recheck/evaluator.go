package recheck

import (
	"context"
	"fmt"

	gh "github.com/google/go-github/v82/github"

	"github.com/alanmeadows/recheck/internal/github"
)

// mergeableDirty is the mergeable_state GitHub reports for merge conflicts.
const mergeableDirty = "dirty"

// Evaluator holds the state of one pull request for one poll cycle and
// answers the recheck/regate questions about it. It is never reused across
// cycles.
type Evaluator struct {
	api        API
	repo       string
	pr         string
	anyFailure bool

	headSHA        string
	mergeableState string

	// Populated only for PRs without merge conflicts.
	checkRuns     []*gh.CheckRun
	combinedState string
	lastComment   string
}

// NewEvaluator fetches the pull request and, unless it has merge conflicts,
// its check runs, combined commit status and last issue comment.
// anyFailure widens RunFailed to every failed run instead of only timed-out ones.
func NewEvaluator(ctx context.Context, api API, repo, pr string, anyFailure bool) (*Evaluator, error) {
	e := &Evaluator{
		api:        api,
		repo:       repo,
		pr:         pr,
		anyFailure: anyFailure,
	}

	if err := e.fetchPullRequest(ctx); err != nil {
		return nil, err
	}
	if e.HasMergeConflicts() {
		return e, nil
	}

	if err := e.fetchCheckRuns(ctx); err != nil {
		return nil, err
	}
	if err := e.fetchCombinedStatus(ctx); err != nil {
		return nil, err
	}
	last, err := LastComment(ctx, api, repo, pr)
	if err != nil {
		return nil, err
	}
	e.lastComment = last

	return e, nil
}

func (e *Evaluator) fetchPullRequest(ctx context.Context) error {
	var pull gh.PullRequest
	if err := e.api.Get(ctx, github.PullRequestPath(e.repo, e.pr)).Decode(&pull); err != nil {
		return fmt.Errorf("fetching pull request %s#%s: %w", e.repo, e.pr, err)
	}
	if pull.GetHead().GetSHA() == "" {
		return fmt.Errorf("pull request %s#%s: response has no head.sha", e.repo, e.pr)
	}
	if pull.MergeableState == nil {
		return fmt.Errorf("pull request %s#%s: response has no mergeable_state", e.repo, e.pr)
	}
	e.headSHA = pull.GetHead().GetSHA()
	e.mergeableState = pull.GetMergeableState()
	return nil
}

func (e *Evaluator) fetchCheckRuns(ctx context.Context) error {
	var runs gh.ListCheckRunsResults
	if err := e.api.GetPreview(ctx, github.CheckRunsPath(e.repo, e.headSHA)).Decode(&runs); err != nil {
		return fmt.Errorf("fetching check runs for %s@%s: %w", e.repo, e.headSHA, err)
	}
	if runs.CheckRuns == nil {
		return fmt.Errorf("check runs for %s@%s: response has no check_runs", e.repo, e.headSHA)
	}
	e.checkRuns = runs.CheckRuns
	return nil
}

func (e *Evaluator) fetchCombinedStatus(ctx context.Context) error {
	var status gh.CombinedStatus
	if err := e.api.Get(ctx, github.CommitStatusPath(e.repo, e.headSHA)).Decode(&status); err != nil {
		return fmt.Errorf("fetching commit status for %s@%s: %w", e.repo, e.headSHA, err)
	}
	if status.State == nil {
		return fmt.Errorf("commit status for %s@%s: response has no state", e.repo, e.headSHA)
	}
	e.combinedState = status.GetState()
	return nil
}

// LastComment pages through a PR's issue comments until an empty page and
// returns the body of the last comment seen, or "" when there are none.
func LastComment(ctx context.Context, api API, repo, pr string) (string, error) {
	last := ""
	for page := 1; ; page++ {
		var comments []*gh.IssueComment
		if err := api.Get(ctx, github.IssueCommentsPath(repo, pr, page)).Decode(&comments); err != nil {
			return "", fmt.Errorf("fetching comments page %d of %s#%s: %w", page, repo, pr, err)
		}
		if len(comments) == 0 {
			return last, nil
		}
		last = comments[len(comments)-1].GetBody()
	}
}

// HeadSHA returns the PR's head commit.
func (e *Evaluator) HeadSHA() string {
	return e.headSHA
}

// MergeableState returns the PR's mergeable_state as reported by the API.
func (e *Evaluator) MergeableState() string {
	return e.mergeableState
}

// LastCommentBody returns the body of the most recent issue comment.
func (e *Evaluator) LastCommentBody() string {
	return e.lastComment
}

// CheckRuns returns the head commit's check runs.
func (e *Evaluator) CheckRuns() []*gh.CheckRun {
	return e.checkRuns
}

// CommitStatusSuccess reports whether the head commit's combined status is
// "success". Check runs are only trusted once it is.
func (e *Evaluator) CommitStatusSuccess() bool {
	return e.combinedState == "success"
}

// HasMergeConflicts reports whether the PR is in the "dirty" mergeable state.
func (e *Evaluator) HasMergeConflicts() bool {
	return e.mergeableState == mergeableDirty
}

// LastCommentIs reports whether the most recent comment body equals text exactly.
func (e *Evaluator) LastCommentIs(text string) bool {
	return e.lastComment == text
}

// RunFailed reports whether a run matching name failed in a way that warrants
// a retrigger: timed out, or any failure when anyFailure is set. A failed,
// matching run without an output summary is a malformed response and an error,
// with or without anyFailure.
func (e *Evaluator) RunFailed(name string) (bool, error) {
	if !e.CommitStatusSuccess() {
		return false, nil
	}
	for _, run := range e.checkRuns {
		if !CheckFailed(run) || !NameMatches(name, run) {
			continue
		}
		if run.GetOutput() == nil || run.GetOutput().Summary == nil {
			return false, fmt.Errorf("check run %q for %s@%s: response has no output.summary",
				run.GetExternalID(), e.repo, e.headSHA)
		}
		if TimedOut(run) || e.anyFailure {
			return true, nil
		}
	}
	return false, nil
}

// RunSucceeded reports whether a run matching name completed successfully.
func (e *Evaluator) RunSucceeded(name string) bool {
	if !e.CommitStatusSuccess() {
		return false
	}
	for _, run := range e.checkRuns {
		if CheckSucceeded(run) && NameMatches(name, run) {
			return true
		}
	}
	return false
}

// NeedsRecheck reports whether a "recheck" comment should be posted.
func (e *Evaluator) NeedsRecheck() (bool, error) {
	if e.LastCommentIs(CommentRecheck) {
		return false, nil
	}
	return e.RunFailed(NameCheck)
}

// NeedsRegate reports whether a "regate" comment should be posted. The gate
// is only retriggered once a check pipeline has passed.
func (e *Evaluator) NeedsRegate() (bool, error) {
	if e.LastCommentIs(CommentRegate) {
		return false, nil
	}
	failed, err := e.RunFailed(NameGate)
	if err != nil || !failed {
		return false, err
	}
	return e.RunSucceeded(NameCheck) || e.RunSucceeded(NamePriorityCheck), nil
}

// Decide returns the single action for this cycle. Merge conflicts win,
// then recheck, then regate.
func (e *Evaluator) Decide() (Action, error) {
	if e.HasMergeConflicts() {
		return ActionMergeConflict, nil
	}
	recheck, err := e.NeedsRecheck()
	if err != nil {
		return ActionNone, fmt.Errorf("deciding recheck for %s#%s: %w", e.repo, e.pr, err)
	}
	if recheck {
		return ActionRecheck, nil
	}
	regate, err := e.NeedsRegate()
	if err != nil {
		return ActionNone, fmt.Errorf("deciding regate for %s#%s: %w", e.repo, e.pr, err)
	}
	if regate {
		return ActionRegate, nil
	}
	return ActionNone, nil
}

// PostComment posts text on the PR's issue thread.
func (e *Evaluator) PostComment(ctx context.Context, text string) error {
	body := map[string]string{"body": text}
	if err := e.api.Post(ctx, github.PostCommentPath(e.repo, e.pr), body); err != nil {
		return fmt.Errorf("posting %q on %s#%s: %w", text, e.repo, e.pr, err)
	}
	return nil
}
