// Package staging sorts items out of the combined feed and stories
// directories into per-account directories.
package staging

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"instarchive/pkg/archive"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/logger"
	"instarchive/pkg/metadata"
)

// Report summarizes one staging directory migration
type Report struct {
	StagingDir string
	// Items counts metadata files whose files were moved
	Items int
	// Moved counts individual files moved
	Moved int
	// Created lists account directories created from staging content
	Created []string
	// Failed lists metadata files that could not be migrated
	Failed  []string
	Removed bool
}

// OK reports whether every item was migrated
func (r *Report) OK() bool {
	return len(r.Failed) == 0
}

// Migrator moves staged items into account directories
type Migrator struct {
	archive *archive.Archive
	logger  logger.Logger
}

// NewMigrator creates a Migrator over the given archive
func NewMigrator(a *archive.Archive, log logger.Logger) *Migrator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Migrator{archive: a, logger: log}
}

// Migrate drains the staging directory named name inside the data
// directory. A missing directory yields a not-found error and no changes.
// Per-item failures are recorded in the report and do not stop the
// migration; the directory is removed only when every item succeeded.
func (m *Migrator) Migrate(name string) (*Report, error) {
	dir := m.archive.AccountDir(name)
	log := m.logger.WithField("staging_dir", name)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn("Staging directory missing")
			return nil, errs.Wrap(errs.ErrorTypeNotFound, err, "staging directory %s", name)
		}
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "reading staging directory %s", name)
	}

	report := &Report{StagingDir: name}

	for _, entry := range entries {
		if entry.IsDir() || !metadata.IsItemFile(entry.Name()) {
			continue
		}

		// An earlier item may already have moved this file with a shared prefix.
		if _, err := os.Stat(filepath.Join(dir, entry.Name())); err != nil {
			continue
		}

		if err := m.migrateItem(dir, entry.Name(), report); err != nil {
			report.Failed = append(report.Failed, entry.Name())
			log.WithError(err).WarnWithFields("Invalid metadata file", map[string]interface{}{
				"file": entry.Name(),
			})
		}
	}

	if report.OK() {
		if err := os.Remove(dir); err != nil {
			log.WithError(err).Warn("Failed to remove staging directory")
		} else {
			report.Removed = true
		}
	}

	log.InfoWithFields("Staging directory migrated", map[string]interface{}{
		"items":   report.Items,
		"files":   report.Moved,
		"created": len(report.Created),
		"failed":  len(report.Failed),
		"removed": report.Removed,
	})

	return report, nil
}

func (m *Migrator) migrateItem(dir, file string, report *Report) error {
	item, err := metadata.Load(filepath.Join(dir, file))
	if err != nil {
		return err
	}

	owner := item.OwnerUsername()
	if !archive.ValidAccountName(owner) {
		return errs.New(errs.ErrorTypeParsing, "owner username %q is not a valid directory name", owner)
	}

	target := m.archive.AccountDir(owner)
	if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
		report.Created = append(report.Created, owner)
		m.logger.InfoWithFields("New account directory from staging", map[string]interface{}{
			"account": owner,
			"user_id": item.OwnerID(),
		})
	}
	if err := m.archive.CreateAccount(owner, item.OwnerID()); err != nil {
		return err
	}

	stem := metadata.Stem(file)
	matches, err := os.ReadDir(dir)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "reading staging directory")
	}
	for _, match := range matches {
		if match.IsDir() || !strings.HasPrefix(match.Name(), stem) {
			continue
		}
		if err := m.archive.MoveFile(filepath.Join(dir, match.Name()), target); err != nil {
			return err
		}
		report.Moved++
	}

	report.Items++
	return nil
}
