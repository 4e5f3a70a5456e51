// Package archive manages the directory tree of an archive root: the
// username file, the watchlist location, the data directory with one
// directory per account (each holding a userid file), and the two shared
// staging directories bulk fetches write into.
//
// Account directories are created with their userid file written atomically,
// renamed in place when an account changes its display name, and never
// deleted here.
package archive
