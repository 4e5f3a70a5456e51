package checkpoint

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"time"

	"instarchive/pkg/archive"
	errs "instarchive/pkg/errors"
	"instarchive/pkg/logger"
)

const currentVersion = 1

// Checkpoint records how far a full collection run got through the watchlist
type Checkpoint struct {
	// Line is the watchlist line of the last account that was processed
	Line      int    `json:"line"`
	Account   string `json:"account"`
	StartLine int    `json:"start_line"`
	// RunID lets a resumed run keep the log correlation id of the original
	RunID     string    `json:"run_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

// NextLine returns the watchlist line a resumed run starts from
func (c *Checkpoint) NextLine() int {
	return c.Line + 1
}

// Manager handles checkpoint operations
type Manager struct {
	checkpointPath string
	logger         logger.Logger
	now            func() time.Time
}

// NewManager creates a checkpoint manager for the file at path
func NewManager(path string, log logger.Logger) *Manager {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{
		checkpointPath: path,
		logger:         log,
		now:            time.Now,
	}
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Start returns a fresh checkpoint for a run beginning at startLine. It is
// not written until the first account is recorded.
func (m *Manager) Start(startLine int) *Checkpoint {
	now := m.now()
	return &Checkpoint{
		Line:      startLine - 1,
		StartLine: startLine,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   currentVersion,
	}
}

// Load loads an existing checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := os.ReadFile(m.checkpointPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errs.Wrap(errs.ErrorTypeIO, err, "reading checkpoint")
	}

	var checkpoint Checkpoint
	if err := json.Unmarshal(data, &checkpoint); err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "decoding checkpoint %s", m.checkpointPath)
	}
	if checkpoint.Line < 0 {
		return nil, errs.New(errs.ErrorTypeParsing, "checkpoint has negative line %d", checkpoint.Line)
	}

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"line":       checkpoint.Line,
		"account":    checkpoint.Account,
		"updated_at": checkpoint.UpdatedAt,
	})

	return &checkpoint, nil
}

// Save writes the checkpoint atomically
func (m *Manager) Save(checkpoint *Checkpoint) error {
	checkpoint.UpdatedAt = m.now()

	data, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return errs.Wrap(errs.ErrorTypeParsing, err, "encoding checkpoint")
	}
	if err := archive.WriteFileAtomic(m.checkpointPath, data, 0644); err != nil {
		return errs.Wrap(errs.ErrorTypeIO, err, "writing checkpoint")
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"line":    checkpoint.Line,
		"account": checkpoint.Account,
	})
	return nil
}

// Record marks the account on line as processed
func (m *Manager) Record(checkpoint *Checkpoint, line int, account string) error {
	checkpoint.Line = line
	checkpoint.Account = account
	return m.Save(checkpoint)
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := os.Remove(m.checkpointPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errs.Wrap(errs.ErrorTypeIO, err, "deleting checkpoint")
	}

	m.logger.Debug("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.checkpointPath)
	return err == nil
}

// ResumeLine returns the line to resume from, or fallback when there is
// no checkpoint
func (m *Manager) ResumeLine(fallback int) (int, error) {
	checkpoint, err := m.Load()
	if err != nil {
		return 0, err
	}
	if checkpoint == nil {
		return fallback, nil
	}
	return checkpoint.NextLine(), nil
}
