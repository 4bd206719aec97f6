package hub

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mwest/chatrelay/internal/model"
	"github.com/mwest/chatrelay/internal/presence"
	"github.com/mwest/chatrelay/internal/protocol"
)

// Receive decodes one inbound frame from the connection and applies
// the per-kind policy. Any frame counts as a liveness acknowledgment.
// Malformed frames are discarded silently.
func (h *Hub) Receive(id string, data []byte) {
	h.reg.MarkAlive(id)

	h.mu.Lock()
	h.framesIn++
	h.mu.Unlock()

	in, err := protocol.Decode(data)
	if err != nil {
		h.mu.Lock()
		h.malformed++
		h.mu.Unlock()
		h.logger.Debug("discarding frame", "conn_id", id, "error", err)
		return
	}

	switch in.Kind {
	case protocol.KindSend:
		h.handleSend(id, in)
	case protocol.KindTyping:
		h.handleTyping(id, in)
	case protocol.KindVoiceJoin:
		h.handleVoiceJoin(id, in)
	case protocol.KindVoiceLeave:
		h.handleVoiceLeave(id)
	case protocol.KindVoiceMute:
		h.handleVoiceMute(id, in)
	case protocol.KindVoiceOffer, protocol.KindVoiceAnswer, protocol.KindVoiceICE:
		h.handleSignal(id, in)
	}
}

// PostChat injects a chat message from outside any WebSocket
// connection (the REST send endpoint). It persists and broadcasts to
// every connection; there is no sender to exclude or echo.
func (h *Hub) PostChat(user, text, cid string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	user = clip(user, h.cfg.MaxUserLen)
	if user == "" {
		user = presence.DefaultUser
	}
	text = clip(text, h.cfg.MaxTextLen)
	ts := time.Now().UnixMilli()

	h.persist(user, text, ts, cid)
	h.broadcast(protocol.EncodeMessage(user, text, ts, cid), "")
	return true
}

// handleSend persists and fans out a chat message. Persistence is
// awaited before the broadcast, but a failure only logs: chat stays
// live when history is down.
func (h *Hub) handleSend(id string, in protocol.Inbound) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		h.logger.Debug("dropping empty chat message", "conn_id", id)
		return
	}
	text = clip(text, h.cfg.MaxTextLen)

	h.reg.SetUser(id, clip(in.User, h.cfg.MaxUserLen))
	user := h.displayName(id, in.User)
	ts := time.Now().UnixMilli()

	h.persist(user, text, ts, in.CID)

	exclude := id
	if h.cfg.EchoChat {
		exclude = ""
	}
	h.broadcast(protocol.EncodeMessage(user, text, ts, in.CID), exclude)
}

func (h *Hub) handleTyping(id string, in protocol.Inbound) {
	h.reg.SetUser(id, clip(in.User, h.cfg.MaxUserLen))
	user := h.displayName(id, in.User)

	h.broadcast(protocol.EncodeTyping(id, user, in.Active), id)
}

func (h *Hub) handleVoiceJoin(id string, in protocol.Inbound) {
	h.reg.SetUser(id, clip(in.User, h.cfg.MaxUserLen))
	user := h.displayName(id, in.User)

	h.pres.Upsert(id, user)
	h.broadcast(protocol.EncodeVoiceJoin(id, user), id)
}

// handleVoiceLeave removes presence for an explicit leave. The
// connection itself stays open; the Remove result guards the
// broadcast so a later transport close cannot produce a second leave.
func (h *Hub) handleVoiceLeave(id string) {
	if h.pres.Remove(id) {
		h.broadcast(protocol.EncodeVoiceLeave(id), id)
	}
}

func (h *Hub) handleVoiceMute(id string, in protocol.Inbound) {
	if h.pres.SetMuted(id, in.Muted) {
		h.broadcast(protocol.EncodeVoiceMute(id, in.Muted), id)
	}
}

// handleSignal relays an offer/answer/ICE payload to the addressed
// peer, stamped with the sender's id so the receiver can answer.
func (h *Hub) handleSignal(id string, in protocol.Inbound) {
	if in.To == "" {
		h.logger.Debug("signal without target", "conn_id", id, "kind", in.Kind)
		return
	}
	h.unicast(in.To, protocol.EncodeSignal(in.Kind, id, in.SDP, in.Candidate))
}

// persist appends one chat message, logging on failure.
func (h *Hub) persist(user, text string, ts int64, cid string) {
	ctx, cancel := context.WithTimeout(h.storeCtx(), h.cfg.StoreTimeout)
	defer cancel()

	msg := model.ChatMessage{
		ID:   uuid.New(),
		Room: h.cfg.Room,
		CID:  cid,
		User: user,
		Text: text,
		TS:   ts,
	}
	if err := h.store.AppendMessage(ctx, msg); err != nil {
		h.mu.Lock()
		h.storeErrors++
		h.mu.Unlock()
		h.logger.Error("message persist failed", "room", h.cfg.Room, "error", err)
	}
}

// storeCtx returns the hub lifecycle context, or Background before
// Start (REST sends can arrive while the hub is still warming up).
func (h *Hub) storeCtx() context.Context {
	if h.ctx != nil {
		return h.ctx
	}
	return context.Background()
}

// displayName resolves the name to stamp on an outbound frame: the
// event's own user field, else the connection's declared name, else
// the placeholder.
func (h *Hub) displayName(id, eventUser string) string {
	if u := clip(eventUser, h.cfg.MaxUserLen); u != "" {
		return u
	}
	if u := h.reg.User(id); u != "" {
		return u
	}
	return presence.DefaultUser
}

// clip trims whitespace and caps the string at max runes.
func clip(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
