// Package ui prints the operator-facing console lines of the command line
// tool: warnings, the end-of-run summary and per-account failures.
package ui
