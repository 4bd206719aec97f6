package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/mwest/chatrelay/internal/model"
)

// fakeTransport records delivered frames.
type fakeTransport struct {
	mu     sync.Mutex
	frames [][]byte
	pings  int
	closed bool

	failSends bool
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSends {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeTransport) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// received returns frame types and data payloads delivered so far,
// skipping the registration frames (self-id, voice-peers).
func (f *fakeTransport) received(t *testing.T) []frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []frame
	for _, raw := range f.frames {
		fr := decodeFrame(t, raw)
		if fr.Type == "self-id" || fr.Type == "voice-peers" {
			continue
		}
		out = append(out, fr)
	}
	return out
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type frame struct {
	Type string
	Data map[string]any
}

func decodeFrame(t *testing.T, raw []byte) frame {
	t.Helper()
	var wire struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		t.Fatalf("bad outbound frame %s: %v", raw, err)
	}
	return frame{Type: wire.Type, Data: wire.Data}
}

// memStore collects appended messages.
type memStore struct {
	mu   sync.Mutex
	msgs []model.ChatMessage
	fail bool
}

func (s *memStore) AppendMessage(_ context.Context, msg model.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("storage down")
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func newTestHub(t *testing.T) (*Hub, *memStore) {
	t.Helper()
	store := &memStore{}
	h := New(DefaultConfig(), store, slog.Default())
	return h, store
}

func TestConnect_SelfIDThenSnapshot(t *testing.T) {
	h, _ := newTestHub(t)

	ft := &fakeTransport{}
	id := h.Connect(ft)
	if id == "" {
		t.Fatal("Connect returned empty id")
	}

	ft.mu.Lock()
	defer ft.mu.Unlock()
	if len(ft.frames) != 2 {
		t.Fatalf("got %d frames on connect, want 2", len(ft.frames))
	}

	selfID := decodeFrame(t, ft.frames[0])
	if selfID.Type != "self-id" {
		t.Errorf("first frame type = %s, want self-id", selfID.Type)
	}
	if selfID.Data["id"] != id {
		t.Errorf("self-id carries %v, want %s", selfID.Data["id"], id)
	}

	peers := decodeFrame(t, ft.frames[1])
	if peers.Type != "voice-peers" {
		t.Errorf("second frame type = %s, want voice-peers", peers.Type)
	}
}

func TestConnect_SnapshotListsPresentPeers(t *testing.T) {
	h, _ := newTestHub(t)

	a := &fakeTransport{}
	idA := h.Connect(a)
	h.Receive(idA, []byte(`{"type":"voice-join","user":"alice"}`))

	late := &fakeTransport{}
	h.Connect(late)

	late.mu.Lock()
	defer late.mu.Unlock()
	peers := decodeFrame(t, late.frames[1])
	list, ok := peers.Data["peers"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("peers = %v, want one entry", peers.Data["peers"])
	}
	entry := list[0].(map[string]any)
	if entry["id"] != idA || entry["user"] != "alice" {
		t.Errorf("snapshot entry = %v, want id=%s user=alice", entry, idA)
	}
}

// Three connections register; A joins voice, then B offers to A. The
// concrete scenario from the relay's delivery contract.
func TestScenario_JoinBroadcastAndOfferUnicast(t *testing.T) {
	h, _ := newTestHub(t)

	a, b, c := &fakeTransport{}, &fakeTransport{}, &fakeTransport{}
	idA := h.Connect(a)
	idB := h.Connect(b)
	h.Connect(c)

	h.Receive(idA, []byte(`{"type":"voice-join","user":"alice"}`))

	for name, ft := range map[string]*fakeTransport{"B": b, "C": c} {
		got := ft.received(t)
		if len(got) != 1 || got[0].Type != "voice-join" {
			t.Fatalf("%s received %v, want one voice-join", name, got)
		}
		if got[0].Data["id"] != idA || got[0].Data["user"] != "alice" {
			t.Errorf("%s voice-join data = %v", name, got[0].Data)
		}
	}
	if got := a.received(t); len(got) != 0 {
		t.Errorf("sender A received %v, want nothing", got)
	}

	h.Receive(idB, []byte(`{"type":"voice-offer","to":"`+idA+`","sdp":{"type":"offer"}}`))

	gotA := a.received(t)
	if len(gotA) != 1 || gotA[0].Type != "voice-offer" {
		t.Fatalf("A received %v, want one voice-offer", gotA)
	}
	if gotA[0].Data["from"] != idB {
		t.Errorf("offer from = %v, want %s", gotA[0].Data["from"], idB)
	}
	if got := c.received(t); len(got) != 0 {
		t.Errorf("C received %v, want nothing", got)
	}
}

func TestTyping_ExcludesSender(t *testing.T) {
	h, _ := newTestHub(t)

	a, b := &fakeTransport{}, &fakeTransport{}
	idA := h.Connect(a)
	h.Connect(b)

	h.Receive(idA, []byte(`{"type":"typing","user":"alice","active":true}`))

	if got := a.received(t); len(got) != 0 {
		t.Errorf("sender received own typing event: %v", got)
	}
	got := b.received(t)
	if len(got) != 1 || got[0].Type != "typing" {
		t.Fatalf("peer received %v, want one typing", got)
	}
	if got[0].Data["active"] != true || got[0].Data["user"] != "alice" {
		t.Errorf("typing data = %v", got[0].Data)
	}
}

func TestSend_EchoPolicy(t *testing.T) {
	tests := []struct {
		name       string
		echo       bool
		senderGets int
	}{
		{"echo enabled", true, 1},
		{"echo disabled", false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.EchoChat = tt.echo
			h := New(cfg, &memStore{}, slog.Default())

			a, b := &fakeTransport{}, &fakeTransport{}
			idA := h.Connect(a)
			h.Connect(b)

			h.Receive(idA, []byte(`{"type":"send","user":"alice","text":"hi"}`))

			if got := a.received(t); len(got) != tt.senderGets {
				t.Errorf("sender received %d frames, want %d", len(got), tt.senderGets)
			}
			if got := b.received(t); len(got) != 1 {
				t.Errorf("peer received %d frames, want 1", len(got))
			}
		})
	}
}

func TestSend_OrderPreservedPerSender(t *testing.T) {
	h, _ := newTestHub(t)

	a, b := &fakeTransport{}, &fakeTransport{}
	idA := h.Connect(a)
	h.Connect(b)

	h.Receive(idA, []byte(`{"type":"send","user":"alice","text":"first"}`))
	h.Receive(idA, []byte(`{"type":"send","user":"alice","text":"second"}`))

	got := b.received(t)
	if len(got) != 2 {
		t.Fatalf("peer received %d frames, want 2", len(got))
	}
	if got[0].Data["text"] != "first" || got[1].Data["text"] != "second" {
		t.Errorf("order = %v, %v; want first, second", got[0].Data["text"], got[1].Data["text"])
	}
}

func TestSend_PersistsAndTrims(t *testing.T) {
	h, store := newTestHub(t)

	a := &fakeTransport{}
	idA := h.Connect(a)

	h.Receive(idA, []byte(`{"type":"send","user":"alice","text":"  hello  ","cid":"c-7"}`))
	h.Receive(idA, []byte(`{"type":"send","user":"alice","text":"   "}`)) // blank after trim

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.msgs) != 1 {
		t.Fatalf("persisted %d messages, want 1", len(store.msgs))
	}
	msg := store.msgs[0]
	if msg.Text != "hello" {
		t.Errorf("Text = %q, want hello", msg.Text)
	}
	if msg.CID != "c-7" || msg.User != "alice" || msg.Room != "lobby" {
		t.Errorf("msg = %+v", msg)
	}
	if msg.TS == 0 {
		t.Error("TS not stamped")
	}
}

func TestSend_BroadcastSurvivesStoreFailure(t *testing.T) {
	store := &memStore{fail: true}
	h := New(DefaultConfig(), store, slog.Default())

	a, b := &fakeTransport{}, &fakeTransport{}
	idA := h.Connect(a)
	h.Connect(b)

	h.Receive(idA, []byte(`{"type":"send","user":"alice","text":"still here"}`))

	got := b.received(t)
	if len(got) != 1 || got[0].Data["text"] != "still here" {
		t.Fatalf("peer received %v, want the message despite store failure", got)
	}
	if h.Stats().StoreErrors != 1 {
		t.Errorf("StoreErrors = %d, want 1", h.Stats().StoreErrors)
	}
}

func TestSignal_MissingTargetSilentlyDropped(t *testing.T) {
	h, _ := newTestHub(t)

	a := &fakeTransport{}
	idA := h.Connect(a)

	h.Receive(idA, []byte(`{"type":"voice-offer","to":"gone","sdp":{}}`))

	if got := a.received(t); len(got) != 0 {
		t.Errorf("sender received %v, want nothing", got)
	}
	if h.Stats().UnicastMisses != 1 {
		t.Errorf("UnicastMisses = %d, want 1", h.Stats().UnicastMisses)
	}
}

func TestMalformedFramesDiscarded(t *testing.T) {
	h, _ := newTestHub(t)

	a, b := &fakeTransport{}, &fakeTransport{}
	idA := h.Connect(a)
	h.Connect(b)

	h.Receive(idA, []byte(`{{{`))
	h.Receive(idA, []byte(`{"type":"no-such-kind"}`))

	if got := b.received(t); len(got) != 0 {
		t.Errorf("peer received %v from garbage input", got)
	}
	if h.Stats().Malformed != 2 {
		t.Errorf("Malformed = %d, want 2", h.Stats().Malformed)
	}
	if a.isClosed() {
		t.Error("connection closed by malformed input, want kept open")
	}
}

func TestVoiceMute_AbsentPresenceIsNoop(t *testing.T) {
	h, _ := newTestHub(t)

	a, b := &fakeTransport{}, &fakeTransport{}
	idA := h.Connect(a)
	h.Connect(b)

	// Mute without a prior join: nothing to update, nothing broadcast.
	h.Receive(idA, []byte(`{"type":"voice-mute","muted":true}`))
	if got := b.received(t); len(got) != 0 {
		t.Fatalf("peer received %v, want nothing", got)
	}

	h.Receive(idA, []byte(`{"type":"voice-join","user":"alice"}`))
	h.Receive(idA, []byte(`{"type":"voice-mute","muted":true}`))

	got := b.received(t)
	if len(got) != 2 || got[1].Type != "voice-mute" {
		t.Fatalf("peer received %v, want join then mute", got)
	}
	if got[1].Data["muted"] != true {
		t.Errorf("mute data = %v", got[1].Data)
	}
}

func TestClosure_AtMostOneLeave(t *testing.T) {
	h, _ := newTestHub(t)

	a, b := &fakeTransport{}, &fakeTransport{}
	idA := h.Connect(a)
	h.Connect(b)

	h.Receive(idA, []byte(`{"type":"voice-join","user":"alice"}`))

	// Transport close and explicit disconnect race.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Disconnect(idA)
		}()
	}
	wg.Wait()

	leaves := 0
	for _, fr := range b.received(t) {
		if fr.Type == "voice-leave" {
			leaves++
		}
	}
	if leaves != 1 {
		t.Errorf("peer received %d voice-leave frames, want exactly 1", leaves)
	}
	if !a.isClosed() {
		t.Error("transport not closed")
	}
	if h.Stats().Connections != 1 {
		t.Errorf("Connections = %d, want 1", h.Stats().Connections)
	}
}

func TestExplicitLeaveThenDisconnect_SingleLeave(t *testing.T) {
	h, _ := newTestHub(t)

	a, b := &fakeTransport{}, &fakeTransport{}
	idA := h.Connect(a)
	h.Connect(b)

	h.Receive(idA, []byte(`{"type":"voice-join","user":"alice"}`))
	h.Receive(idA, []byte(`{"type":"voice-leave"}`))
	h.Disconnect(idA)

	leaves := 0
	for _, fr := range b.received(t) {
		if fr.Type == "voice-leave" {
			leaves++
		}
	}
	if leaves != 1 {
		t.Errorf("peer received %d voice-leave frames, want 1", leaves)
	}
}

func TestBrokenPeerRemovedOnBroadcast(t *testing.T) {
	h, _ := newTestHub(t)

	a := &fakeTransport{}
	idA := h.Connect(a)
	broken := &fakeTransport{failSends: true}
	h.reg.Register(broken) // bypass Connect: registration frames would fail it early

	h.Receive(idA, []byte(`{"type":"typing","active":true}`))

	if !broken.isClosed() {
		t.Error("broken transport not closed after failed send")
	}
	if h.Stats().Connections != 1 {
		t.Errorf("Connections = %d, want 1", h.Stats().Connections)
	}
}

func TestPostChat_BroadcastsToAll(t *testing.T) {
	h, store := newTestHub(t)

	a, b := &fakeTransport{}, &fakeTransport{}
	h.Connect(a)
	h.Connect(b)

	if !h.PostChat("ops", "maintenance at noon", "") {
		t.Fatal("PostChat rejected a valid message")
	}
	if h.PostChat("ops", "   ", "") {
		t.Error("PostChat accepted a blank message")
	}

	for name, ft := range map[string]*fakeTransport{"A": a, "B": b} {
		got := ft.received(t)
		if len(got) != 1 || got[0].Data["text"] != "maintenance at noon" {
			t.Errorf("%s received %v", name, got)
		}
	}
	if store.count() != 1 {
		t.Errorf("persisted %d messages, want 1", store.count())
	}
}
