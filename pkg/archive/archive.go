package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"instarchive/pkg/config"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/logger"
)

const (
	// UserIDFile holds an account's stable numeric id inside its directory
	UserIDFile = "userid"

	// FeedStaging and StoriesStaging are the combined directories bulk
	// fetches write into. The prefix is U+FF1A FULLWIDTH COLON.
	FeedStaging    = "：feed"
	StoriesStaging = "：stories"

	dirPerm  = 0755
	filePerm = 0644
)

// Archive handles the on-disk layout of one archive root
type Archive struct {
	paths  config.Paths
	logger logger.Logger
}

// InitResult reports what Init had to create
type InitResult struct {
	Anonymous        bool
	CreatedWatchlist bool
}

// New creates an Archive over the given layout
func New(paths config.Paths, log logger.Logger) *Archive {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Archive{paths: paths, logger: log}
}

// Paths returns the archive layout
func (a *Archive) Paths() config.Paths {
	return a.paths
}

// DataDir returns the directory holding account and staging directories
func (a *Archive) DataDir() string {
	return a.paths.Data
}

// Init creates the archive root and data directory, records the archiving
// identity (empty means anonymous) and creates an empty watchlist if none
// exists. Running it again only rewrites the username file.
func (a *Archive) Init(username string) (*InitResult, error) {
	if err := os.MkdirAll(a.paths.Data, dirPerm); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "creating data directory %s", a.paths.Data)
	}

	if err := WriteFileAtomic(a.paths.UsernameFile, []byte(username), filePerm); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "writing username file")
	}

	result := &InitResult{Anonymous: username == ""}

	f, err := os.OpenFile(a.paths.WatchlistFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	switch {
	case err == nil:
		result.CreatedWatchlist = true
		if err := f.Close(); err != nil {
			return nil, errs.Wrap(errs.ErrorTypeIO, err, "creating watchlist")
		}
	case errors.Is(err, fs.ErrExist):
	default:
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "creating watchlist")
	}

	a.logger.InfoWithFields("Archive initialized", map[string]interface{}{
		"root":      a.paths.Root,
		"anonymous": result.Anonymous,
	})

	return result, nil
}

// Username returns the archiving identity; empty means anonymous
func (a *Archive) Username() (string, error) {
	data, err := os.ReadFile(a.paths.UsernameFile)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeIO, err, "reading username file (was the archive initialized?)")
	}
	return strings.TrimSpace(string(data)), nil
}

// AccountDir returns the directory path for an account name
func (a *Archive) AccountDir(name string) string {
	return filepath.Join(a.paths.Data, name)
}

// HasUserID reports whether the account directory carries a userid file
func (a *Archive) HasUserID(name string) bool {
	info, err := os.Stat(filepath.Join(a.AccountDir(name), UserIDFile))
	return err == nil && info.Mode().IsRegular()
}

// ReadUserID returns the stable id recorded for an account directory
func (a *Archive) ReadUserID(name string) (int64, error) {
	path := filepath.Join(a.AccountDir(name), UserIDFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, errs.Wrap(errs.ErrorTypeNotFound, err, "no userid for %s", name)
		}
		return 0, errs.Wrap(errs.ErrorTypeIO, err, "reading %s", path)
	}

	id, err := ParseUserID(data)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return id, nil
}

// CreateAccount makes the account directory if needed and records its id.
// An existing userid file is left untouched.
func (a *Archive) CreateAccount(name string, id int64) error {
	if !ValidAccountName(name) {
		return errs.New(errs.ErrorTypeInvariant, "refusing to create account directory %q", name)
	}

	dir := a.AccountDir(name)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "creating account directory %s", dir)
	}

	if a.HasUserID(name) {
		return nil
	}

	path := filepath.Join(dir, UserIDFile)
	if err := WriteFileAtomic(path, []byte(strconv.FormatInt(id, 10)), filePerm); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "writing %s", path)
	}

	a.logger.DebugWithFields("Account directory created", map[string]interface{}{
		"account": name,
		"user_id": id,
	})
	return nil
}

// RenameAccount moves an account directory to its new display name. It
// fails with a conflict error if a directory of the new name exists.
func (a *Archive) RenameAccount(oldName, newName string) error {
	if !ValidAccountName(newName) {
		return errs.New(errs.ErrorTypeInvariant, "refusing to rename %q to %q", oldName, newName)
	}

	src := a.AccountDir(oldName)
	dst := a.AccountDir(newName)

	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errs.Wrap(errs.ErrorTypeNotFound, err, "account directory %s", oldName)
		}
		return errs.Wrap(errs.ErrorTypeIO, err, "checking %s", src)
	}

	if _, err := os.Lstat(dst); err == nil {
		return errs.New(errs.ErrorTypeConflict, "account directory %s already exists", newName)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return errs.Wrap(errs.ErrorTypeIO, err, "checking %s", dst)
	}

	if err := os.Rename(src, dst); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "renaming %s to %s", oldName, newName)
	}

	a.logger.InfoWithFields("Account directory renamed", map[string]interface{}{
		"from": oldName,
		"to":   newName,
	})
	return nil
}

// MoveFile moves src into dir keeping its file name
func (a *Archive) MoveFile(src, dir string) error {
	dst := filepath.Join(dir, filepath.Base(src))
	if err := os.Rename(src, dst); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "moving %s", filepath.Base(src))
	}
	return nil
}

// ParseUserID decodes the contents of a userid file
func ParseUserID(data []byte) (int64, error) {
	text := strings.TrimSpace(string(data))
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil || id < 0 {
		return 0, errs.New(errs.ErrorTypeParsing, "invalid userid %q", text)
	}
	return id, nil
}

// ValidAccountName reports whether name can be used as a single directory
// entry under the data directory
func ValidAccountName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

// WriteFileAtomic writes data to a temporary file next to path and renames
// it into place
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tempFile := path + ".tmp"
	out, err := os.OpenFile(tempFile, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := out.Write(data); err != nil {
		out.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tempFile)
		return fmt.Errorf("failed to sync file: %w", err)
	}

	if err := out.Close(); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}
