// Package ratelimit paces requests to Instagram's API.
//
// TokenBucket starts full and earns one token every period/capacity, so a
// burst of up to capacity requests is allowed before requests are spread
// evenly across the period:
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
//	limiter.Wait()
//	// send request
//
// Unlimited disables pacing, which tests use against local servers.
package ratelimit
