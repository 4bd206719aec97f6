package registry

import (
	"sync"

	"github.com/google/uuid"
)

// Transport is one live bidirectional session with a client. The
// registry owns the transport; everything else refers to it by id.
type Transport interface {
	// Send queues a frame for delivery. It must not block on a slow
	// peer; implementations return an error to report a dead or
	// saturated connection.
	Send(data []byte) error

	// Ping emits a transport-level liveness probe.
	Ping() error

	// Close tears the session down. Safe to call more than once.
	Close() error
}

// Member pairs a connection id with its transport, as handed out by
// Snapshot and Lookup.
type Member struct {
	ID        string
	Transport Transport
}

// entry is the registry's per-connection record. The liveness flag and
// the closing guard live here, next to the transport, rather than on
// the transport itself.
type entry struct {
	transport Transport

	// user is the peer's self-declared display name, set by the first
	// join/typing/send event that carries one. Never authenticated.
	user string

	// alive is cleared by each sweep and set by any traffic from the
	// peer. An entry that stays cleared across a full sweep period is
	// considered dead.
	alive bool

	// closing is set exactly once by BeginClose, whichever closure
	// trigger gets there first.
	closing bool
}

// Registry is a concurrency-safe id → transport table.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		conns: make(map[string]*entry),
	}
}

// Register stores the transport under a freshly generated id and
// returns the id. The id is unique among currently registered
// connections; at 122 bits of randomness collisions are not a failure
// mode the caller needs to handle.
func (r *Registry) Register(t Transport) string {
	id := uuid.NewString()

	r.mu.Lock()
	r.conns[id] = &entry{transport: t, alive: true}
	r.mu.Unlock()

	return id
}

// Unregister removes the id. Removing an absent id is a no-op.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.conns, id)
	r.mu.Unlock()
}

// Lookup returns the transport for id. A false result is a normal
// outcome: the peer disconnected between send-intent and send.
func (r *Registry) Lookup(id string) (Transport, bool) {
	r.mu.RLock()
	e, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.transport, true
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns the current members. Callers iterate the snapshot
// and perform sends outside the registry lock, so concurrent
// Register/Unregister during delivery is safe.
func (r *Registry) Snapshot() []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]Member, 0, len(r.conns))
	for id, e := range r.conns {
		members = append(members, Member{ID: id, Transport: e.transport})
	}
	return members
}

// SetUser records the peer's declared display name. Empty names are
// ignored so a later anonymous event cannot clear an earlier one.
func (r *Registry) SetUser(id, user string) {
	if user == "" {
		return
	}
	r.mu.Lock()
	if e, ok := r.conns[id]; ok {
		e.user = user
	}
	r.mu.Unlock()
}

// User returns the declared display name for id, if any.
func (r *Registry) User(id string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.user
	}
	return ""
}

// MarkAlive records traffic from the peer. Any inbound frame or pong
// counts as a liveness acknowledgment.
func (r *Registry) MarkAlive(id string) {
	r.mu.Lock()
	if e, ok := r.conns[id]; ok {
		e.alive = true
	}
	r.mu.Unlock()
}

// BeginClose sets the closing guard for id and reports whether this
// caller won. Exactly one of the racing closure triggers (transport
// close, explicit leave, heartbeat timeout) observes true; the
// closure routine runs only for that caller.
func (r *Registry) BeginClose(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.conns[id]
	if !ok || e.closing {
		return false
	}
	e.closing = true
	return true
}

// Expire advances every liveness record one sweep period and returns
// the members that produced no traffic since the previous sweep.
// Survivors have their flag cleared, so a connection that stays silent
// is returned by the next Expire call: marked dead after one period,
// force-closed after two.
func (r *Registry) Expire() []Member {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dead []Member
	for id, e := range r.conns {
		if e.closing {
			continue
		}
		if !e.alive {
			dead = append(dead, Member{ID: id, Transport: e.transport})
			continue
		}
		e.alive = false
	}
	return dead
}
