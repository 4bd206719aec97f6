package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mwest/chatrelay/internal/model"
	"github.com/mwest/chatrelay/internal/presence"
	"github.com/mwest/chatrelay/internal/protocol"
	"github.com/mwest/chatrelay/internal/registry"
)

// Store is the persistence collaborator for chat messages. Failures
// are logged and never block delivery.
type Store interface {
	AppendMessage(ctx context.Context, msg model.ChatMessage) error
}

// Config holds hub tunables.
type Config struct {
	// Room is the single room name under which messages persist.
	Room string

	// HeartbeatInterval is the sweep period. A connection silent for
	// one full period is marked dead and force-closed on the sweep
	// after that, giving an effective timeout of one to two periods.
	HeartbeatInterval time.Duration

	// Field caps applied before persistence and broadcast.
	MaxUserLen int
	MaxTextLen int

	// EchoChat delivers chat messages back to their sender (clients
	// rely on the echo for delivery confirmation). Typing and voice
	// broadcasts always exclude the sender.
	EchoChat bool

	// StoreTimeout bounds each AppendMessage call.
	StoreTimeout time.Duration
}

// DefaultConfig returns default hub configuration.
func DefaultConfig() Config {
	return Config{
		Room:              "lobby",
		HeartbeatInterval: 30 * time.Second,
		MaxUserLen:        160,
		MaxTextLen:        2000,
		EchoChat:          true,
		StoreTimeout:      5 * time.Second,
	}
}

// Stats contains runtime counters.
type Stats struct {
	Connections   int
	Present       int
	FramesIn      int64
	Malformed     int64
	Broadcasts    int64
	Unicasts      int64
	UnicastMisses int64
	StoreErrors   int64
}

// Hub is the relay core. Each Hub owns its own registry and presence
// table, so multiple independent hubs can coexist in one process.
type Hub struct {
	cfg    Config
	store  Store
	logger *slog.Logger

	reg  *registry.Registry
	pres *presence.Table

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	mu            sync.Mutex
	framesIn      int64
	malformed     int64
	broadcasts    int64
	unicasts      int64
	unicastMisses int64
	storeErrors   int64
}

// New creates a Hub. store may not be nil; use a no-op implementation
// when persistence is disabled.
func New(cfg Config, store Store, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		cfg:    cfg,
		store:  store,
		logger: logger,
		reg:    registry.New(),
		pres:   presence.NewTable(),
	}
}

// Start launches the heartbeat sweep.
func (h *Hub) Start(ctx context.Context) error {
	h.ctx, h.cancel = context.WithCancel(ctx)

	h.wg.Add(1)
	go h.sweepLoop()

	h.logger.Info("hub started",
		"room", h.cfg.Room,
		"heartbeat_interval", h.cfg.HeartbeatInterval,
		"echo_chat", h.cfg.EchoChat,
	)
	return nil
}

// Stop closes all connections and shuts the sweep down.
func (h *Hub) Stop(ctx context.Context) error {
	h.logger.Info("stopping hub", "connections", h.reg.Len())

	if h.cancel != nil {
		h.cancel()
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		h.logger.Warn("hub stop timed out")
	}

	for _, m := range h.reg.Snapshot() {
		h.closeConn(m.ID, "shutdown")
	}

	h.logger.Info("hub stopped")
	return nil
}

// Stats returns current counters.
func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	return Stats{
		Connections:   h.reg.Len(),
		Present:       h.pres.Len(),
		FramesIn:      h.framesIn,
		Malformed:     h.malformed,
		Broadcasts:    h.broadcasts,
		Unicasts:      h.unicasts,
		UnicastMisses: h.unicastMisses,
		StoreErrors:   h.storeErrors,
	}
}

// Connect registers a transport, assigns it an id, and immediately
// unicasts the identity frame plus a presence snapshot so a late
// joiner can render current voice state.
func (h *Hub) Connect(t registry.Transport) string {
	id := h.reg.Register(t)

	if err := t.Send(protocol.EncodeSelfID(id)); err != nil {
		h.logger.Debug("self-id send failed", "conn_id", id, "error", err)
		h.closeConn(id, "send failed")
		return id
	}

	peers := make([]protocol.Peer, 0, h.pres.Len())
	for _, e := range h.pres.Snapshot() {
		peers = append(peers, protocol.Peer{ID: e.ID, User: e.User, Muted: e.Muted})
	}
	if err := t.Send(protocol.EncodeVoicePeers(peers)); err != nil {
		h.closeConn(id, "send failed")
		return id
	}

	h.logger.Info("connection registered", "conn_id", id, "connections", h.reg.Len())
	return id
}

// MarkAlive records a transport-level liveness acknowledgment (a pong
// that carries no frame) for the connection.
func (h *Hub) MarkAlive(id string) {
	h.reg.MarkAlive(id)
}

// Disconnect runs the closure routine for a transport-initiated close
// (read loop ended, peer went away).
func (h *Hub) Disconnect(id string) {
	h.closeConn(id, "transport closed")
}

// broadcast delivers frame to every registered connection except
// exclude. Iteration runs over a registry snapshot, so no send happens
// under the registry lock and a slow peer cannot stall registration.
// A failed send is an implicit disconnect.
func (h *Hub) broadcast(frame []byte, exclude string) {
	h.mu.Lock()
	h.broadcasts++
	h.mu.Unlock()

	for _, m := range h.reg.Snapshot() {
		if m.ID == exclude {
			continue
		}
		if err := m.Transport.Send(frame); err != nil {
			h.logger.Debug("broadcast send failed", "conn_id", m.ID, "error", err)
			h.closeConn(m.ID, "send failed")
		}
	}
}

// unicast delivers frame to exactly one connection. A missing target
// is an expected race, not an error.
func (h *Hub) unicast(to string, frame []byte) {
	t, ok := h.reg.Lookup(to)
	if !ok {
		h.mu.Lock()
		h.unicastMisses++
		h.mu.Unlock()
		h.logger.Debug("unicast target gone", "to", to)
		return
	}

	if err := t.Send(frame); err != nil {
		h.logger.Debug("unicast send failed", "to", to, "error", err)
		h.closeConn(to, "send failed")
		return
	}

	h.mu.Lock()
	h.unicasts++
	h.mu.Unlock()
}

// closeConn is the single closure routine. All three triggers
// (transport close, explicit leave, heartbeat timeout) funnel through
// here; the registry's closing guard makes it run at most once per
// connection. Presence removal happens here and nowhere else on the
// close path, which keeps the two maps consistent.
func (h *Hub) closeConn(id, reason string) {
	if !h.reg.BeginClose(id) {
		return
	}

	t, _ := h.reg.Lookup(id)
	h.reg.Unregister(id)

	if h.pres.Remove(id) {
		h.broadcast(protocol.EncodeVoiceLeave(id), id)
	}

	if t != nil {
		if err := t.Close(); err != nil {
			h.logger.Debug("transport close failed", "conn_id", id, "error", err)
		}
	}

	h.logger.Info("connection closed",
		"conn_id", id,
		"reason", reason,
		"connections", h.reg.Len(),
	)
}

// sweepLoop pings every connection each period and force-closes the
// ones that produced no traffic since the previous sweep.
func (h *Hub) sweepLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return
		case <-ticker.C:
			h.sweep()
		}
	}
}

// sweep runs one heartbeat pass.
func (h *Hub) sweep() {
	for _, m := range h.reg.Expire() {
		h.logger.Warn("heartbeat timeout", "conn_id", m.ID)
		h.closeConn(m.ID, "heartbeat timeout")
	}

	for _, m := range h.reg.Snapshot() {
		if err := m.Transport.Ping(); err != nil {
			h.logger.Debug("ping failed", "conn_id", m.ID, "error", err)
		}
	}
}
