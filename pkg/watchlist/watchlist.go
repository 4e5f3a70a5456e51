// Package watchlist reads and updates the operator-maintained tracking list.
//
// The file is line oriented: blank lines and lines whose first non-space
// character is '#' are comments. On every other line the first
// whitespace-delimited token is an account name and any remaining tokens
// are opaque annotations that are preserved on rename.
package watchlist

import (
	"os"
	"strings"
	"unicode"

	"instarchive/pkg/archive"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/logger"
)

// Entry is one non-comment line of the watchlist
type Entry struct {
	// Line is the 1-indexed line number in the file
	Line        int
	Name        string
	Annotations []string
}

// Store reads and rewrites a watchlist file
type Store struct {
	path   string
	logger logger.Logger
}

// NewStore creates a Store for the watchlist file at path
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Store{path: path, logger: log}
}

// Path returns the watchlist file location
func (s *Store) Path() string {
	return s.path
}

// Entries returns the tracked entries at or after startLine, in file order
func (s *Store) Entries(startLine int) ([]Entry, error) {
	lines, err := s.readLines()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for i, line := range lines {
		if i+1 < startLine {
			continue
		}
		fields, ok := parseLine(line)
		if !ok {
			continue
		}
		entries = append(entries, Entry{
			Line:        i + 1,
			Name:        fields[0],
			Annotations: fields[1:],
		})
	}

	s.logger.DebugWithFields("Watchlist read", map[string]interface{}{
		"path":       s.path,
		"start_line": startLine,
		"entries":    len(entries),
	})

	return entries, nil
}

// List returns the tracked account names at or after startLine, in file order
func (s *Store) List(startLine int) ([]string, error) {
	entries, err := s.Entries(startLine)
	if err != nil {
		return nil, err
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names, nil
}

// Rename replaces the first entry named oldName with newName, keeping its
// annotations (re-joined by single spaces) and every other line byte for
// byte. The file is replaced atomically. Renaming a name that is not in the
// watchlist is an invariant violation: callers must source oldName from
// this store.
func (s *Store) Rename(oldName, newName string) error {
	if newName == "" || strings.IndexFunc(newName, unicode.IsSpace) >= 0 {
		return errs.New(errs.ErrorTypeInvariant, "invalid watchlist name %q", newName)
	}

	lines, err := s.readLines()
	if err != nil {
		return err
	}

	for i, line := range lines {
		fields, ok := parseLine(line)
		if !ok || fields[0] != oldName {
			continue
		}

		fields[0] = newName
		body := strings.TrimRight(line, "\r\n")
		lines[i] = strings.Join(fields, " ") + line[len(body):]

		if err := archive.WriteFileAtomic(s.path, []byte(strings.Join(lines, "")), 0644); err != nil {
			return errs.Wrap(errs.ErrorTypeIO, err, "rewriting watchlist")
		}

		s.logger.WarnWithFields("Username change", map[string]interface{}{
			"from": oldName,
			"to":   newName,
			"line": i + 1,
		})
		return nil
	}

	return errs.New(errs.ErrorTypeInvariant, "account %q is not in the watchlist", oldName)
}

// readLines returns the file split after each newline, terminators kept
func (s *Store) readLines() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "reading watchlist")
	}
	if len(data) == 0 {
		return nil, nil
	}

	lines := strings.SplitAfter(string(data), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// parseLine returns the tokens of an entry line, or false for comments
func parseLine(line string) ([]string, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || trimmed[0] == '#' {
		return nil, false
	}
	return strings.Fields(trimmed), true
}
