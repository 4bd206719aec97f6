// Package model defines shared data types used across the relay.
//
// Conventions:
//   - Timestamps: int64 milliseconds since Unix epoch (what browser clients emit)
//   - IDs: uuid.UUID for persisted messages, opaque strings for connections
package model
