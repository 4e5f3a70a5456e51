package reconcile

import (
	"instarchive/pkg/archive"
	"instarchive/pkg/logger"
	"instarchive/pkg/watchlist"
)

// renameTracked applies an observed username change to the account
// directory and then the watchlist. If the watchlist cannot be updated the
// directory is moved back, so either both change or neither does. A
// conflict error means a directory of the new name already exists and
// nothing was changed.
func renameTracked(a *archive.Archive, wl *watchlist.Store, oldName, newName string, log logger.Logger) error {
	if err := a.RenameAccount(oldName, newName); err != nil {
		return err
	}

	if err := wl.Rename(oldName, newName); err != nil {
		if rbErr := a.RenameAccount(newName, oldName); rbErr != nil {
			log.WithError(rbErr).ErrorWithFields("Failed to restore account directory", map[string]interface{}{
				"from": newName,
				"to":   oldName,
			})
		}
		return err
	}
	return nil
}
