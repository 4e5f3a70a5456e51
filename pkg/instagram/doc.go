// Package instagram talks to Instagram's web and mobile APIs and downloads
// what it finds into an archive.
//
// The Client carries the session cookies, pacing and retries. Requests to
// the API are paced by the configured rate limiter; media downloads are not.
// Failures are reported as typed errors from pkg/errors, so callers can tell
// a deleted account (not found) from an expired session (auth) or a
// throttled one (rate limit):
//
//	client := instagram.NewClientFromConfig(cfg, session, log)
//	profile, err := client.ProfileByName("alice")
//	if errs.IsNotFound(err) {
//	    // the account was renamed or deleted
//	}
//
// The Loader writes items in the archive layout: media, caption, comments
// and finally the metadata JSON that marks the item complete. Feed posts
// and stories are staged in the feed and stories staging directories until
// they are migrated into their owners' account directories; profile
// downloads go straight to the account directory.
package instagram
