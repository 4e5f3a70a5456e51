// Package identity maps stable numeric account ids to the account
// directories currently holding them.
package identity

import (
	"os"
	"path/filepath"
	"strings"

	"instarchive/pkg/archive"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/logger"
)

// Index maps a numeric account id to its current directory name
type Index map[int64]string

// BuildIndex scans the immediate subdirectories of dataDir. Directories
// without a userid file are ignored; unreadable or malformed userid files
// are skipped with a warning. When two directories claim the same id the
// later one (in name order) wins and a warning names both.
func BuildIndex(dataDir string, log logger.Logger) (Index, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	entries, err := os.ReadDir(dataDir)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "scanning %s", dataDir)
	}

	index := make(Index)
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || isStaging(name) {
			continue
		}

		path := filepath.Join(dataDir, name, archive.UserIDFile)
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.WithError(err).WarnWithFields("Unreadable userid file", map[string]interface{}{
					"account": name,
				})
			}
			continue
		}

		id, err := archive.ParseUserID(data)
		if err != nil {
			log.WithError(err).WarnWithFields("Malformed userid file", map[string]interface{}{
				"account": name,
			})
			continue
		}

		if prev, ok := index[id]; ok {
			log.WarnWithFields("Duplicate userid", map[string]interface{}{
				"user_id":  id,
				"previous": prev,
				"account":  name,
			})
		}
		index[id] = name
	}

	log.DebugWithFields("Identity index built", map[string]interface{}{
		"data_dir": dataDir,
		"accounts": len(index),
	})

	return index, nil
}

// Lookup returns the directory name recorded for id
func (ix Index) Lookup(id int64) (string, bool) {
	name, ok := ix[id]
	return name, ok
}

// Rename moves id's entry to newName
func (ix Index) Rename(id int64, newName string) {
	ix[id] = newName
}

func isStaging(name string) bool {
	return strings.HasPrefix(name, "：")
}
