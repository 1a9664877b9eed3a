package recheck

// Comment bodies the downstream CI interprets as triggers.
const (
	CommentRecheck = "recheck"
	CommentRegate  = "regate"
)

// Check-run name fragments matched against a run's external id.
const (
	NameCheck         = "check"
	NameGate          = "gate"
	NamePriorityCheck = "priority-check"
)

// Action is the outcome of evaluating a pull request.
type Action int

const (
	// ActionNone means nothing needs to be done.
	ActionNone Action = iota
	// ActionMergeConflict means the PR is dirty; only a warning is logged.
	ActionMergeConflict
	// ActionRecheck posts a "recheck" comment.
	ActionRecheck
	// ActionRegate posts a "regate" comment.
	ActionRegate
)

// String returns a short human-readable name.
func (a Action) String() string {
	switch a {
	case ActionMergeConflict:
		return "merge conflicts"
	case ActionRecheck:
		return CommentRecheck
	case ActionRegate:
		return CommentRegate
	default:
		return "none"
	}
}

// Comment returns the comment body to post for the action, or "" when the
// action posts nothing.
func (a Action) Comment() string {
	switch a {
	case ActionRecheck:
		return CommentRecheck
	case ActionRegate:
		return CommentRegate
	}
	return ""
}
