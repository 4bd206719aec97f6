// Package database provides the PostgreSQL connection pool for the
// relay's durable chat history.
//
// The relay keeps all live state (connections, presence) in memory;
// Postgres holds only the append-only messages table.
package database
