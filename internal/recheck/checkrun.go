package recheck

import (
	"strings"

	gh "github.com/google/go-github/v82/github"
)

// Markers the CI writes into a check run's output summary when a job was
// killed rather than failing on its own.
var timeoutMarkers = []string{"TIMED_OUT", "RETRY_LIMIT"}

func concluded(run *gh.CheckRun, conclusion string) bool {
	return run.GetStatus() == "completed" && run.GetConclusion() == conclusion
}

// CheckFailed reports whether the run completed with a failure.
func CheckFailed(run *gh.CheckRun) bool {
	return concluded(run, "failure")
}

// CheckSucceeded reports whether the run completed successfully.
func CheckSucceeded(run *gh.CheckRun) bool {
	return concluded(run, "success")
}

// TimedOut reports whether the run's output summary carries a timeout or
// retry-limit marker. Callers reject runs without a summary first.
func TimedOut(run *gh.CheckRun) bool {
	summary := run.GetOutput().GetSummary()
	for _, marker := range timeoutMarkers {
		if strings.Contains(summary, marker) {
			return true
		}
	}
	return false
}

// NameMatches reports whether name is a substring of the run's external id.
func NameMatches(name string, run *gh.CheckRun) bool {
	return strings.Contains(run.GetExternalID(), name)
}
