// Package registry tracks the set of currently open client
// connections, keyed by an opaque generated id.
//
// The registry is the single source of truth for "who is connected"
// and the most contended shared structure in the relay: per-connection
// handlers, the heartbeat sweep, and REST-triggered broadcasts all
// touch it. Enumeration hands out snapshots so that no transport write
// ever happens while the registry lock is held.
package registry
