// Package presence holds ephemeral per-connection voice/chat metadata:
// a display name and a mute flag, keyed by connection id.
//
// An entry exists only while the connection is registered and has
// explicitly joined; all operations on absent ids are best-effort
// no-ops. Entries are removed inside the same closure routine that
// unregisters the connection, never independently.
package presence
