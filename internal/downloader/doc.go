// Package downloader fetches the media files of one archive item
// concurrently.
package downloader
