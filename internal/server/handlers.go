package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser clients connect from arbitrary origins; there is no
	// cookie-based auth to protect.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWS upgrades the request and runs the read loop until the peer
// goes away. The read deadline spans two heartbeat periods; any frame
// or pong pushes it forward, matching the hub's two-phase sweep.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	t := newTransport(conn, s.cfg.SendBuffer, s.cfg.WriteTimeout, s.logger)
	go t.writePump()

	id := s.hub.Connect(t)

	readTimeout := 2 * s.cfg.HeartbeatInterval
	conn.SetReadLimit(s.cfg.MaxFrameBytes)
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		s.hub.MarkAlive(id)
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.hub.Disconnect(id)
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		s.hub.Receive(id, data)
	}
}

// historyEntry is one chat line in the history response.
type historyEntry struct {
	ID   string `json:"id"`
	User string `json:"user"`
	Text string `json:"text"`
	TS   int64  `json:"ts"`
	CID  string `json:"cid,omitempty"`
}

// handleHistory serves GET /api/history?limit=N, oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.cfg.HistoryDefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > s.cfg.HistoryMaxLimit {
		limit = s.cfg.HistoryMaxLimit
	}

	msgs, err := s.history.Recent(r.Context(), s.cfg.Room, limit)
	if err != nil {
		s.logger.Error("history query failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}

	out := make([]historyEntry, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, historyEntry{
			ID:   m.ID.String(),
			User: m.User,
			Text: m.Text,
			TS:   m.TS,
			CID:  m.CID,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// sendRequest is the POST /api/send body.
type sendRequest struct {
	User string `json:"user"`
	Text string `json:"text"`
	CID  string `json:"cid"`
}

// handleSend accepts a chat message over REST and feeds it through the
// same persist-then-broadcast path as WebSocket traffic.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		http.Error(w, "text is required", http.StatusBadRequest)
		return
	}

	if !s.hub.PostChat(req.User, req.Text, req.CID) {
		http.Error(w, "message rejected", http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// handleHealth reports liveness plus hub counters. Returns 503 when
// the database is unreachable; the relay keeps serving either way.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK

	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
			s.logger.Warn("health check database ping failed", "error", err)
		}
	}

	stats := s.hub.Stats()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":      status,
		"connections": stats.Connections,
		"present":     stats.Present,
		"frames_in":   stats.FramesIn,
		"broadcasts":  stats.Broadcasts,
		"unicasts":    stats.Unicasts,
	})
}
