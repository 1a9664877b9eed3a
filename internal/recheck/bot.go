package recheck

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval is the pause between poll cycles.
const DefaultInterval = 600 * time.Second

// Options configures a Bot. It is read-only once the bot is running.
type Options struct {
	Repo                string
	PRs                 []string
	Interval            time.Duration
	RecheckOnAnyFailure bool
	// DryRun logs the decided action without posting.
	DryRun bool
	// ContinueOnError logs a PR that fails to evaluate and moves on to the
	// next one instead of stopping the bot.
	ContinueOnError bool
}

// Event describes a comment the bot posted.
type Event struct {
	Repo    string
	PR      string
	Action  Action
	HeadSHA string
}

// Notifier is told about every comment the bot posts.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Evaluation is the result of evaluating one PR in one cycle.
type Evaluation struct {
	PR             string
	HeadSHA        string
	MergeableState string
	LastComment    string
	CheckRuns      int
	Action         Action
	// Posted is true when the action's comment was posted successfully.
	Posted bool
}

// Bot polls the configured pull requests and retriggers CI where needed.
type Bot struct {
	api      API
	opts     Options
	notifier Notifier
	sleep    SleepFunc
}

// NewBot creates a Bot. The API client is owned by the caller and shared by
// every evaluator the bot creates. notifier may be nil.
func NewBot(api API, opts Options, notifier Notifier) *Bot {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	return &Bot{
		api:      api,
		opts:     opts,
		notifier: notifier,
		sleep:    sleepContext,
	}
}

// WithSleep replaces the sleep between cycles.
func (b *Bot) WithSleep(fn SleepFunc) *Bot {
	b.sleep = fn
	return b
}

// Run polls until ctx is cancelled. It returns nil on cancellation and the
// first unhandled evaluation error otherwise.
func (b *Bot) Run(ctx context.Context) error {
	slog.Info("starting recheck loop", "repo", b.opts.Repo, "prs", b.opts.PRs, "interval", b.opts.Interval)

	for {
		if err := b.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			return err
		}
		if err := b.sleep(ctx, b.opts.Interval); err != nil {
			break
		}
	}

	slog.Info("recheck loop stopped")
	return nil
}

// RunCycle processes every configured PR once, in order.
func (b *Bot) RunCycle(ctx context.Context) error {
	for _, pr := range b.opts.PRs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := b.Process(ctx, pr); err != nil {
			if !b.opts.ContinueOnError {
				return err
			}
			slog.Error("failed to evaluate PR", "repo", b.opts.Repo, "pr", pr, "error", err)
		}
	}
	return nil
}

// Evaluate fetches a PR's state and decides the action without acting on it.
func (b *Bot) Evaluate(ctx context.Context, pr string) (*Evaluation, error) {
	eval, _, err := b.evaluate(ctx, pr)
	return eval, err
}

func (b *Bot) evaluate(ctx context.Context, pr string) (*Evaluation, *Evaluator, error) {
	e, err := NewEvaluator(ctx, b.api, b.opts.Repo, pr, b.opts.RecheckOnAnyFailure)
	if err != nil {
		return nil, nil, err
	}
	action, err := e.Decide()
	if err != nil {
		return nil, nil, err
	}
	return &Evaluation{
		PR:             pr,
		HeadSHA:        e.HeadSHA(),
		MergeableState: e.MergeableState(),
		LastComment:    e.LastCommentBody(),
		CheckRuns:      len(e.CheckRuns()),
		Action:         action,
	}, e, nil
}

// Process evaluates a PR and performs the decided action.
func (b *Bot) Process(ctx context.Context, pr string) (*Evaluation, error) {
	eval, e, err := b.evaluate(ctx, pr)
	if err != nil {
		return nil, err
	}

	switch eval.Action {
	case ActionMergeConflict:
		slog.Warn("pull request has merge conflicts", "repo", b.opts.Repo, "pr", pr)
	case ActionRecheck, ActionRegate:
		eval.Posted = b.post(ctx, e, eval)
	default:
		slog.Info("no recheck/regate necessary", "repo", b.opts.Repo, "pr", pr)
	}
	return eval, nil
}

// post comments the action on the PR. A failed post is logged and swallowed.
func (b *Bot) post(ctx context.Context, e *Evaluator, eval *Evaluation) bool {
	text := eval.Action.Comment()
	if b.opts.DryRun {
		slog.Info("dry run: would comment", "repo", b.opts.Repo, "pr", eval.PR, "comment", text)
		return false
	}

	if err := e.PostComment(ctx, text); err != nil {
		slog.Warn("failed to post comment", "repo", b.opts.Repo, "pr", eval.PR, "comment", text, "error", err)
		return false
	}
	slog.Info("posted comment", "repo", b.opts.Repo, "pr", eval.PR, "comment", text)

	if b.notifier != nil {
		event := Event{Repo: b.opts.Repo, PR: eval.PR, Action: eval.Action, HeadSHA: eval.HeadSHA}
		if err := b.notifier.Notify(ctx, event); err != nil {
			slog.Warn("failed to send notification", "repo", b.opts.Repo, "pr", eval.PR, "error", err)
		}
	}
	return true
}

// sleepContext waits for d, returning early with ctx's error if it is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
