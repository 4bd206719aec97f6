package protocol

import (
	"encoding/json"
	"errors"
)

// Kind identifies one of the closed set of inbound event kinds.
type Kind string

const (
	KindSend        Kind = "send"
	KindTyping      Kind = "typing"
	KindVoiceJoin   Kind = "voice-join"
	KindVoiceLeave  Kind = "voice-leave"
	KindVoiceMute   Kind = "voice-mute"
	KindVoiceOffer  Kind = "voice-offer"
	KindVoiceAnswer Kind = "voice-answer"
	KindVoiceICE    Kind = "voice-ice"
)

// ErrUnknownType is returned by Decode for a frame whose "type" field
// is not one of the recognized kinds. Callers drop these frames.
var ErrUnknownType = errors.New("protocol: unknown frame type")

// Inbound is a decoded client frame. Kind selects which of the
// remaining fields are meaningful; fields outside the recognized
// shapes are ignored during decoding.
type Inbound struct {
	Kind Kind

	// send
	User string
	Text string
	CID  string

	// typing
	Active bool

	// voice-mute
	Muted bool

	// voice-offer / voice-answer / voice-ice
	To        string
	SDP       json.RawMessage
	Candidate json.RawMessage
}

// IsSignal reports whether the event is an addressed signaling frame
// (offer, answer, or ICE candidate) relayed verbatim to one peer.
func (in Inbound) IsSignal() bool {
	switch in.Kind {
	case KindVoiceOffer, KindVoiceAnswer, KindVoiceICE:
		return true
	}
	return false
}

// inboundWire is the superset wire shape for all inbound frames.
type inboundWire struct {
	Type      string          `json:"type"`
	User      string          `json:"user"`
	Text      string          `json:"text"`
	CID       string          `json:"cid"`
	Active    bool            `json:"active"`
	Muted     bool            `json:"muted"`
	To        string          `json:"to"`
	SDP       json.RawMessage `json:"sdp"`
	Candidate json.RawMessage `json:"candidate"`
}

// Decode parses a raw client frame into an Inbound event.
func Decode(data []byte) (Inbound, error) {
	var wire inboundWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Inbound{}, err
	}

	switch Kind(wire.Type) {
	case KindSend:
		return Inbound{Kind: KindSend, User: wire.User, Text: wire.Text, CID: wire.CID}, nil
	case KindTyping:
		return Inbound{Kind: KindTyping, User: wire.User, Active: wire.Active}, nil
	case KindVoiceJoin:
		return Inbound{Kind: KindVoiceJoin, User: wire.User}, nil
	case KindVoiceLeave:
		return Inbound{Kind: KindVoiceLeave}, nil
	case KindVoiceMute:
		return Inbound{Kind: KindVoiceMute, Muted: wire.Muted}, nil
	case KindVoiceOffer:
		return Inbound{Kind: KindVoiceOffer, To: wire.To, SDP: wire.SDP}, nil
	case KindVoiceAnswer:
		return Inbound{Kind: KindVoiceAnswer, To: wire.To, SDP: wire.SDP}, nil
	case KindVoiceICE:
		return Inbound{Kind: KindVoiceICE, To: wire.To, Candidate: wire.Candidate}, nil
	}

	return Inbound{}, ErrUnknownType
}
