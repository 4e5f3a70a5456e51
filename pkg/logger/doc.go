// Package logger provides the structured logging interface used across
// instarchive.
//
// It wraps zerolog behind a small Logger interface so components can accept
// a logger in their constructors and tests can substitute a TestLogger that
// captures every message.
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("account", "alice").Warn("Profile is private and non-followed")
//
// Console output is colored only when stdout is a terminal. Setting
// logging.file additionally appends the raw JSON events to that file.
package logger
