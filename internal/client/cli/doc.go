// Package cli provides the interactive DairyKeeper entitlement console.
//
// It restores the persisted entitlement snapshot, starts a background
// connectivity watcher that refreshes every cache key whenever the server
// becomes reachable, and runs a REPL over the entitlement cache and the
// purchase service.
//
// Commands:
//   - status / tab / access: inspect subscriptions and tab locks
//   - offers / buy: browse and purchase offers (a purchase clears the cache)
//   - preload / clear / state / stats: cache maintenance and telemetry
//   - stored / reset: inspect or wipe the local store
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
