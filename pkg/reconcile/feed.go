package reconcile

import (
	"instarchive/pkg/archive"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/identity"
	"instarchive/pkg/instagram"
	"instarchive/pkg/logger"
	"instarchive/pkg/staging"
	"instarchive/pkg/watchlist"
)

// Decision is what the feed filter decided for one item
type Decision struct {
	Accept bool
	// RenameFrom is the tracked name the item's owner used to have
	RenameFrom string
}

// Tracker answers which item owners are wanted. It holds the tracked names
// and the id index built at the start of a feed run and is updated as
// renames are applied.
type Tracker struct {
	wanted map[string]bool
	index  identity.Index
}

// NewTracker creates a Tracker over the tracked names and id index
func NewTracker(names []string, index identity.Index) *Tracker {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	if index == nil {
		index = identity.Index{}
	}
	return &Tracker{wanted: wanted, index: index}
}

// Classify decides an item without side effects. Items whose owner name is
// tracked are accepted. Items whose owner id belongs to a tracked name are
// accepted as renamed. Items whose id maps to a directory that is no
// longer tracked are rejected.
func (t *Tracker) Classify(item instagram.Item) Decision {
	if t.wanted[item.OwnerUsername] {
		return Decision{Accept: true}
	}
	old, ok := t.index.Lookup(item.OwnerID)
	if ok && t.wanted[old] {
		return Decision{Accept: true, RenameFrom: old}
	}
	return Decision{}
}

// Renamed records that id's tracked name changed from oldName to newName
func (t *Tracker) Renamed(id int64, oldName, newName string) {
	delete(t.wanted, oldName)
	t.wanted[newName] = true
	t.index.Rename(id, newName)
}

// Rename is a username change applied during a feed run
type Rename struct {
	UserID int64
	From   string
	To     string
}

// FeedReport summarizes a feed run
type FeedReport struct {
	Renames    []Rename
	StoriesErr error
	FeedErr    error
	// Migrations holds one report per staging directory that existed
	Migrations []*staging.Report
	// RenameFailures counts renames that could not be applied
	RenameFailures int
	Outcome        Outcome
}

// FeedCollector runs the stories and feed collection path
type FeedCollector struct {
	archive   *archive.Archive
	watchlist *watchlist.Store
	fetcher   Fetcher
	migrator  *staging.Migrator
	logger    logger.Logger
}

// NewFeedCollector creates a FeedCollector
func NewFeedCollector(a *archive.Archive, wl *watchlist.Store, f Fetcher, log logger.Logger) *FeedCollector {
	if log == nil {
		log = logger.GetLogger()
	}
	return &FeedCollector{
		archive:   a,
		watchlist: wl,
		fetcher:   f,
		migrator:  staging.NewMigrator(a, log),
		logger:    log,
	}
}

// Collect downloads the stories and up to maxPosts feed posts of tracked
// accounts, then migrates both staging directories into account
// directories. Fetch and migration failures degrade the report; only an
// unreadable watchlist or data directory, or an invariant violation while
// renaming, is returned as an error.
func (c *FeedCollector) Collect(maxPosts int) (*FeedReport, error) {
	names, err := c.watchlist.List(1)
	if err != nil {
		return nil, err
	}

	report := &FeedReport{}
	if len(names) == 0 {
		c.logger.Warn("Watchlist is empty; nothing to collect")
		report.Outcome = OutcomeNothingProcessed
		return report, nil
	}

	index, err := identity.BuildIndex(c.archive.DataDir(), c.logger)
	if err != nil {
		return nil, err
	}

	tracker := NewTracker(names, index)
	var fatal error
	filter := func(item instagram.Item) bool {
		if fatal != nil {
			return false
		}
		d := tracker.Classify(item)
		if d.RenameFrom != "" {
			if err := c.applyRename(tracker, d.RenameFrom, item, report); err != nil {
				fatal = err
				return false
			}
		}
		return d.Accept
	}

	c.logger.Info("Collecting stories")
	if err := c.fetcher.DownloadStories(filter); err != nil {
		report.StoriesErr = err
		c.logger.WithError(err).Warn("Error occurred in downloading stories")
	}
	if fatal != nil {
		return report, fatal
	}

	c.logger.Info("Collecting feed posts")
	if err := c.fetcher.DownloadFeedPosts(maxPosts, filter); err != nil {
		report.FeedErr = err
		c.logger.WithError(err).Warn("Error occurred in downloading feed posts")
	}
	if fatal != nil {
		return report, fatal
	}

	c.logger.Info("Moving downloaded items")
	failed := report.RenameFailures
	if report.StoriesErr != nil {
		failed++
	}
	if report.FeedErr != nil {
		failed++
	}
	processed := 0
	for _, name := range []string{archive.FeedStaging, archive.StoriesStaging} {
		migration, err := c.migrator.Migrate(name)
		switch {
		case err == nil:
			report.Migrations = append(report.Migrations, migration)
			processed += migration.Items
			failed += len(migration.Failed)
		case errs.IsNotFound(err):
			// nothing was staged
		default:
			c.logger.WithError(err).WarnWithFields("Failed to migrate staging directory", map[string]interface{}{
				"staging_dir": name,
			})
			failed++
		}
	}

	// A run that found nothing new is still a successful run
	report.Outcome = OutcomeSuccess
	if failed > 0 {
		report.Outcome = OutcomeDegraded
	}
	c.logger.InfoWithFields("Feed collection finished", map[string]interface{}{
		"renames": len(report.Renames),
		"items":   processed,
		"failed":  failed,
		"outcome": report.Outcome.String(),
	})
	return report, nil
}

// applyRename applies a rename detected by the filter. The watchlist
// always follows the new name; the account directory follows when no
// directory of the new name exists yet. Only invariant violations are
// returned.
func (c *FeedCollector) applyRename(t *Tracker, oldName string, item instagram.Item, report *FeedReport) error {
	newName := item.OwnerUsername
	log := logger.ForAccount(c.logger, oldName).WithFields(map[string]interface{}{
		"new_username": newName,
		"user_id":      item.OwnerID,
	})

	err := renameTracked(c.archive, c.watchlist, oldName, newName, log)
	if errs.IsConflict(err) || errs.IsNotFound(err) {
		log.WithError(err).Warn("Account directory not renamed")
		err = c.watchlist.Rename(oldName, newName)
	}

	switch {
	case err == nil:
		t.Renamed(item.OwnerID, oldName, newName)
		report.Renames = append(report.Renames, Rename{UserID: item.OwnerID, From: oldName, To: newName})
		return nil
	case errs.IsInvariant(err):
		return err
	default:
		log.WithError(err).Warn("Failed to apply username change")
		report.RenameFailures++
		return nil
	}
}
