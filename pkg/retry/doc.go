// Package retry provides exponential backoff and retry logic for transient
// failures of Instagram API requests.
//
// Only network, rate limit and server errors are retried; authentication,
// not-found and parsing errors are returned on the first attempt. Rate
// limit responses back off much longer than other failures.
//
//	cfg := retry.FromConfig(appConfig.Retry, log)
//	profile, err := retry.DoWithResult(func() (*Profile, error) {
//		return client.fetchProfile(name)
//	}, cfg)
package retry
