// Package checkpoint saves the progress of a full collection run so an
// interrupted run can be resumed.
//
// A checkpoint is a small JSON file at the archive root holding the
// watchlist line of the last processed account. It is rewritten after
// every account, saved atomically, and removed once a run reaches the end
// of the watchlist.
package checkpoint
