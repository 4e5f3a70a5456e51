package reconcile

import (
	"instarchive/pkg/instagram"
)

// Fetcher is the remote side of a collection run. *instagram.Loader
// implements it.
type Fetcher interface {
	ProfileByName(username string) (*instagram.Profile, error)
	ProfileByID(id int64) (*instagram.Profile, error)
	DownloadStories(filter instagram.ItemFilter) error
	DownloadFeedPosts(maxCount int, filter instagram.ItemFilter) error
	DownloadProfile(profile *instagram.Profile, opts instagram.DownloadOptions) error
}

// Outcome classifies a whole run
type Outcome int

const (
	// OutcomeNothingProcessed means there was nothing to collect
	OutcomeNothingProcessed Outcome = iota
	// OutcomeSuccess means everything that was attempted succeeded
	OutcomeSuccess
	// OutcomeDegraded means at least one account or item failed
	OutcomeDegraded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNothingProcessed:
		return "nothing_processed"
	case OutcomeSuccess:
		return "success"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Summary returns the end-of-run line shown to the operator
func (o Outcome) Summary() string {
	switch o {
	case OutcomeNothingProcessed:
		return "No targets were processed."
	case OutcomeSuccess:
		return "Collection completed successfully."
	default:
		return "One or more error(s) occurred during collection."
	}
}

// ExitCode returns the process exit status for a run that was not aborted
func (o Outcome) ExitCode() int {
	if o == OutcomeDegraded {
		return 1
	}
	return 0
}

// outcomeOf folds per-unit results into a run outcome
func outcomeOf(processed, failed int) Outcome {
	switch {
	case failed > 0:
		return OutcomeDegraded
	case processed > 0:
		return OutcomeSuccess
	default:
		return OutcomeNothingProcessed
	}
}
