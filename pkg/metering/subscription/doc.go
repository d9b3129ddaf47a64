// Package subscription resolves the quota policy that governs an actor.
//
// Policies are configuration: the built-in free policies and any paid plans
// are loaded into a Catalog, never compiled in. A Directory reports which
// policy, if any, is assigned to an actor. The Resolver combines the two and
// is total: if the directory has no assignment, is unreachable, or names a
// policy the catalog does not know, the actor's default policy applies and
// the fallback is logged.
//
// The resolver queries the directory on every call. Wrap the directory in a
// CachedDirectory to trade freshness for fewer lookups.
package subscription
