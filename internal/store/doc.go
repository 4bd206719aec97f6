// Package store persists chat messages in PostgreSQL.
//
// The messages table is append-only; the relay never updates or
// deletes rows. See configs/schema.sql for the table definition.
package store
