package reconcile

import (
	"instarchive/pkg/archive"
	"instarchive/pkg/checkpoint"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/instagram"
	"instarchive/pkg/logger"
	"instarchive/pkg/watchlist"
)

// State is where an account ended up in a full collection run
type State string

const (
	StateResolving      State = "resolving"
	StateResolved       State = "resolved"
	StateRenamed        State = "renamed"
	StateDeleted        State = "deleted"
	StatePrivateBlocked State = "private_blocked"
	StateRenameConflict State = "rename_conflict"
	StateFetching       State = "fetching"
	StateFetchFailed    State = "fetch_failed"
	StateDone           State = "done"
)

// Failed reports whether the state degrades the run
func (s State) Failed() bool {
	switch s {
	case StateDeleted, StatePrivateBlocked, StateRenameConflict, StateFetchFailed:
		return true
	default:
		return false
	}
}

// AccountResult is the outcome for one watchlist entry
type AccountResult struct {
	Line int
	// Name is the name the watchlist carried when the run reached the entry
	Name string
	// CurrentName differs from Name after a rename
	CurrentName string
	UserID      int64
	Renamed     bool
	State       State
	Err         error
}

// RunReport summarizes a full collection run
type RunReport struct {
	StartLine int
	Accounts  []AccountResult
	Outcome   Outcome
	// Aborted is set when an invariant violation stopped the run early
	Aborted bool
}

// Failed returns the accounts whose state degraded the run
func (r *RunReport) Failed() []AccountResult {
	var failed []AccountResult
	for _, a := range r.Accounts {
		if a.State.Failed() {
			failed = append(failed, a)
		}
	}
	return failed
}

// EngineOptions configures an Engine
type EngineOptions struct {
	Download instagram.DownloadOptions
	// Checkpoint, when set, records the last processed watchlist line
	Checkpoint *checkpoint.Manager
	// RunID is stored in the checkpoint so a resumed run can reuse it
	RunID string
}

// Engine runs full collections over the watchlist
type Engine struct {
	archive    *archive.Archive
	watchlist  *watchlist.Store
	fetcher    Fetcher
	download   instagram.DownloadOptions
	checkpoint *checkpoint.Manager
	runID      string
	logger     logger.Logger
}

// NewEngine creates an Engine
func NewEngine(a *archive.Archive, wl *watchlist.Store, f Fetcher, opts EngineOptions, log logger.Logger) *Engine {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Engine{
		archive:    a,
		watchlist:  wl,
		fetcher:    f,
		download:   opts.Download,
		checkpoint: opts.Checkpoint,
		runID:      opts.RunID,
		logger:     log,
	}
}

// Run processes every watchlist entry at or after startLine in file order.
// Account failures are recorded in the report and never stop the run. The
// returned error is set only when the watchlist cannot be read or an
// invariant is violated; the partial report is returned alongside it.
func (e *Engine) Run(startLine int) (*RunReport, error) {
	if startLine < 1 {
		startLine = 1
	}

	entries, err := e.watchlist.Entries(startLine)
	if err != nil {
		return nil, err
	}

	report := &RunReport{StartLine: startLine}

	var cp *checkpoint.Checkpoint
	if e.checkpoint != nil {
		cp = e.checkpoint.Start(startLine)
		cp.RunID = e.runID
	}

	processed, failed := 0, 0
	for _, entry := range entries {
		result, err := e.processAccount(entry)
		report.Accounts = append(report.Accounts, result)
		if err != nil {
			report.Aborted = true
			report.Outcome = OutcomeDegraded
			e.logger.WithError(err).ErrorWithFields("Collection aborted", map[string]interface{}{
				"account": entry.Name,
				"line":    entry.Line,
			})
			return report, err
		}

		if result.State.Failed() {
			failed++
		} else {
			processed++
		}

		if cp != nil {
			if err := e.checkpoint.Record(cp, entry.Line, result.CurrentName); err != nil {
				e.logger.WithError(err).Warn("Failed to save checkpoint")
			}
		}
	}

	if e.checkpoint != nil {
		if err := e.checkpoint.Delete(); err != nil {
			e.logger.WithError(err).Warn("Failed to delete checkpoint")
		}
	}

	report.Outcome = outcomeOf(processed, failed)
	e.logger.InfoWithFields("Collection finished", map[string]interface{}{
		"accounts": len(report.Accounts),
		"failed":   failed,
		"outcome":  report.Outcome.String(),
	})
	return report, nil
}

// processAccount drives one entry through resolution, rename detection and
// download. Only invariant violations are returned as errors.
func (e *Engine) processAccount(entry watchlist.Entry) (AccountResult, error) {
	result := AccountResult{
		Line:        entry.Line,
		Name:        entry.Name,
		CurrentName: entry.Name,
		State:       StateResolving,
	}
	log := logger.ForAccount(e.logger, entry.Name).WithField("line", entry.Line)
	log.Info("Processing profile")

	profile, err := e.fetcher.ProfileByName(entry.Name)
	switch {
	case err == nil:
		result.State = StateResolved
	case errs.IsNotFound(err):
		profile, err = e.resolveByID(&result, log)
		if err != nil {
			return result, err
		}
		if profile == nil {
			return result, nil
		}
	default:
		log.WithError(err).Warn("Failed to fetch profile")
		result.State = StateFetchFailed
		result.Err = err
		return result, nil
	}

	result.UserID = profile.ID
	log = logger.ForAccount(e.logger, result.CurrentName).WithField("line", entry.Line)

	if !profile.Accessible() {
		log.Warn("Profile is private and non-followed")
		result.State = StatePrivateBlocked
		return result, nil
	}

	if err := e.ensureAccount(result.CurrentName, profile.ID, log); err != nil {
		log.WithError(err).Warn("Failed to prepare account directory")
		result.State = StateFetchFailed
		result.Err = err
		return result, nil
	}

	result.State = StateFetching
	if err := e.fetcher.DownloadProfile(profile, e.download); err != nil {
		log.WithError(err).Warn("Error occurred in downloading profile")
		result.State = StateFetchFailed
		result.Err = err
		return result, nil
	}

	result.State = StateDone
	return result, nil
}

// resolveByID falls back to the id recorded in the account directory after
// a by-name lookup found nothing. A nil profile with a nil error means the
// account reached a terminal state recorded in result.
func (e *Engine) resolveByID(result *AccountResult, log logger.Logger) (*instagram.Profile, error) {
	name := result.Name
	if !e.archive.HasUserID(name) {
		log.Warn("Profile is nonexistent")
		result.State = StateDeleted
		result.Err = errs.New(errs.ErrorTypeNotFound, "profile %s does not exist", name)
		return nil, nil
	}

	id, err := e.archive.ReadUserID(name)
	if err != nil {
		log.WithError(err).Warn("Unreadable userid file")
		result.State = StateFetchFailed
		result.Err = err
		return nil, nil
	}
	result.UserID = id
	log = log.WithField("user_id", id)

	profile, err := e.fetcher.ProfileByID(id)
	if err != nil {
		result.Err = err
		if errs.IsNotFound(err) {
			log.Warn("Profile is deleted (formerly existed); update the watchlist if desired")
			result.State = StateDeleted
		} else {
			log.WithError(err).Warn("Failed to fetch profile by id")
			result.State = StateFetchFailed
		}
		return nil, nil
	}

	if profile.Username == name {
		result.State = StateResolved
		return profile, nil
	}

	log.InfoWithFields("Profile has new username", map[string]interface{}{
		"new_username": profile.Username,
	})
	err = renameTracked(e.archive, e.watchlist, name, profile.Username, log)
	switch {
	case err == nil:
		result.State = StateRenamed
		result.Renamed = true
		result.CurrentName = profile.Username
		return profile, nil
	case errs.IsInvariant(err):
		result.State = StateFetchFailed
		result.Err = err
		return nil, err
	case errs.IsConflict(err):
		log.WithError(err).Warn("An account directory with the new username already exists; merge them by hand")
		result.State = StateRenameConflict
	default:
		log.WithError(err).Warn("Failed to apply username change")
		result.State = StateFetchFailed
	}
	result.Err = err
	return nil, nil
}

// ensureAccount creates the account directory on first sight and warns
// when an existing directory records a different id
func (e *Engine) ensureAccount(name string, id int64, log logger.Logger) error {
	if !e.archive.HasUserID(name) {
		log.Info("First time downloading this profile")
		return e.archive.CreateAccount(name, id)
	}

	recorded, err := e.archive.ReadUserID(name)
	if err != nil {
		log.WithError(err).Warn("Unreadable userid file")
		return nil
	}
	if recorded != id {
		log.WarnWithFields("Account directory records a different user id", map[string]interface{}{
			"recorded_id": recorded,
			"profile_id":  id,
		})
	}
	return nil
}
