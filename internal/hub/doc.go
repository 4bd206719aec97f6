// Package hub implements the broadcast/relay engine: it decodes
// inbound frames into typed events, applies per-kind delivery policy
// (broadcast with sender exclusion, or unicast to an addressed peer),
// persists chat messages, maintains presence, and runs the heartbeat
// sweep that reaps dead connections.
//
// Delivery policy per event kind:
//
//	send        persist, then broadcast (sender included when EchoChat)
//	typing      broadcast, sender excluded
//	voice-join  upsert presence, broadcast, sender excluded
//	voice-leave remove presence, broadcast, sender excluded
//	voice-mute  update presence, broadcast, sender excluded
//	voice-offer / voice-answer / voice-ice
//	            unicast to the addressed peer, dropped if absent
//
// Malformed or unrecognized frames are discarded without a reply:
// peers are unauthenticated, so robustness against garbage input
// matters more than reporting.
package hub
