package protocol

import "encoding/json"

// Outbound frame types (server → client).
const (
	TypeSelfID     = "self-id"
	TypeMessage    = "message"
	TypeVoicePeers = "voice-peers"
)

// envelope is the shared outbound shape.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Peer is one entry of a voice-peers snapshot.
type Peer struct {
	ID    string `json:"id"`
	User  string `json:"user"`
	Muted bool   `json:"muted"`
}

// encode marshals an envelope. The payload types below contain only
// marshalable fields, so the error path is unreachable in practice.
func encode(typ string, data any) []byte {
	b, _ := json.Marshal(envelope{Type: typ, Data: data})
	return b
}

// EncodeSelfID builds the identity-assignment frame sent to a
// connection immediately after it is registered.
func EncodeSelfID(id string) []byte {
	return encode(TypeSelfID, struct {
		ID string `json:"id"`
	}{ID: id})
}

// EncodeMessage builds a chat message broadcast frame. The cid field
// is omitted when the sender supplied no correlation token.
func EncodeMessage(user, text string, ts int64, cid string) []byte {
	return encode(TypeMessage, struct {
		User string `json:"user"`
		Text string `json:"text"`
		TS   int64  `json:"ts"`
		CID  string `json:"cid,omitempty"`
	}{User: user, Text: text, TS: ts, CID: cid})
}

// EncodeTyping builds a typing indicator frame.
func EncodeTyping(id, user string, active bool) []byte {
	return encode(string(KindTyping), struct {
		ID     string `json:"id"`
		User   string `json:"user"`
		Active bool   `json:"active"`
	}{ID: id, User: user, Active: active})
}

// EncodeVoiceJoin builds a voice-join broadcast frame.
func EncodeVoiceJoin(id, user string) []byte {
	return encode(string(KindVoiceJoin), struct {
		ID   string `json:"id"`
		User string `json:"user,omitempty"`
	}{ID: id, User: user})
}

// EncodeVoiceLeave builds a voice-leave broadcast frame. Also used for
// the leave synthesized when a connection closes while present.
func EncodeVoiceLeave(id string) []byte {
	return encode(string(KindVoiceLeave), struct {
		ID string `json:"id"`
	}{ID: id})
}

// EncodeVoiceMute builds a voice-mute broadcast frame.
func EncodeVoiceMute(id string, muted bool) []byte {
	return encode(string(KindVoiceMute), struct {
		ID    string `json:"id"`
		Muted bool   `json:"muted"`
	}{ID: id, Muted: muted})
}

// EncodeSignal builds a relayed offer/answer/ICE frame addressed from
// the originating connection. kind must be one of the signal kinds;
// exactly one of sdp or candidate is set depending on kind.
func EncodeSignal(kind Kind, from string, sdp, candidate json.RawMessage) []byte {
	return encode(string(kind), struct {
		From      string          `json:"from"`
		SDP       json.RawMessage `json:"sdp,omitempty"`
		Candidate json.RawMessage `json:"candidate,omitempty"`
	}{From: from, SDP: sdp, Candidate: candidate})
}

// EncodeVoicePeers builds the presence snapshot frame sent to a newly
// registered connection.
func EncodeVoicePeers(peers []Peer) []byte {
	if peers == nil {
		peers = []Peer{}
	}
	return encode(TypeVoicePeers, struct {
		Peers []Peer `json:"peers"`
	}{Peers: peers})
}
