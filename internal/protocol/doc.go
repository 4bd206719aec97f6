// Package protocol defines the JSON wire format spoken over a relay
// WebSocket and converts it to and from typed events.
//
// Inbound frames are decoded exactly once, at the boundary, into the
// closed Inbound variant; everything past Decode dispatches on
// Inbound.Kind and never touches raw JSON again. Unknown or
// undecodable frames are a representable outcome (ErrUnknownType, or
// the json error), not a silent fall-through.
//
// Outbound frames share a single {type, data} envelope.
package protocol
