// Package reconcile maps watchlist entries onto archive account
// directories while accounts rename themselves.
//
// Engine runs full collections: each tracked account is resolved by name,
// then by its recorded numeric id when the name no longer exists, and a
// detected rename is applied to both the account directory and the
// watchlist before the profile is downloaded. FeedCollector runs the
// bulk stories and feed path, accepting items through a rename-aware
// filter and migrating the staging directories afterwards.
//
// Neither is safe to run concurrently against the same archive root.
package reconcile
