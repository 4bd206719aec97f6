package registry

import (
	"sync"
	"testing"
)

// nopTransport satisfies Transport for registry tests.
type nopTransport struct{}

func (nopTransport) Send([]byte) error { return nil }
func (nopTransport) Ping() error       { return nil }
func (nopTransport) Close() error      { return nil }

func TestRegister_UniqueIDs(t *testing.T) {
	r := New()

	const n = 100
	ids := make(chan string, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- r.Register(nopTransport{})
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}

	if r.Len() != n {
		t.Errorf("Len() = %d, want %d", r.Len(), n)
	}
}

func TestLookup(t *testing.T) {
	r := New()
	id := r.Register(nopTransport{})

	if _, ok := r.Lookup(id); !ok {
		t.Error("Lookup(registered id) = not found")
	}
	if _, ok := r.Lookup("no-such-id"); ok {
		t.Error("Lookup(absent id) = found")
	}
}

func TestSetUser(t *testing.T) {
	r := New()
	id := r.Register(nopTransport{})

	if got := r.User(id); got != "" {
		t.Errorf("User = %q, want empty before SetUser", got)
	}

	r.SetUser(id, "alice")
	if got := r.User(id); got != "alice" {
		t.Errorf("User = %q, want alice", got)
	}

	// Empty names never clear a declared one.
	r.SetUser(id, "")
	if got := r.User(id); got != "alice" {
		t.Errorf("User = %q, want alice after empty SetUser", got)
	}
}

func TestUnregister_Idempotent(t *testing.T) {
	r := New()
	id := r.Register(nopTransport{})

	r.Unregister(id)
	r.Unregister(id) // second removal is a no-op

	if r.Len() != 0 {
		t.Errorf("Len() = %d, want 0", r.Len())
	}
	if _, ok := r.Lookup(id); ok {
		t.Error("Lookup after Unregister = found")
	}
}

func TestBeginClose_ExactlyOneWinner(t *testing.T) {
	r := New()
	id := r.Register(nopTransport{})

	const racers = 16
	wins := make(chan bool, racers)

	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- r.BeginClose(id)
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for w := range wins {
		if w {
			won++
		}
	}
	if won != 1 {
		t.Errorf("BeginClose winners = %d, want 1", won)
	}

	if r.BeginClose("no-such-id") {
		t.Error("BeginClose(absent id) = true, want false")
	}
}

func TestExpire_TwoPhase(t *testing.T) {
	r := New()
	silent := r.Register(nopTransport{})
	chatty := r.Register(nopTransport{})

	// First sweep: everyone was alive at registration, nobody expires.
	if dead := r.Expire(); len(dead) != 0 {
		t.Fatalf("first Expire returned %d members, want 0", len(dead))
	}

	// Only one connection produces traffic between sweeps.
	r.MarkAlive(chatty)

	dead := r.Expire()
	if len(dead) != 1 {
		t.Fatalf("second Expire returned %d members, want 1", len(dead))
	}
	if dead[0].ID != silent {
		t.Errorf("expired id = %s, want %s", dead[0].ID, silent)
	}
}

func TestExpire_SkipsClosing(t *testing.T) {
	r := New()
	id := r.Register(nopTransport{})

	r.Expire() // clears the flag
	if !r.BeginClose(id) {
		t.Fatal("BeginClose failed")
	}

	if dead := r.Expire(); len(dead) != 0 {
		t.Errorf("Expire returned %d members, want 0 (already closing)", len(dead))
	}
}

func TestSnapshot_SafeDuringMutation(t *testing.T) {
	r := New()
	for i := 0; i < 50; i++ {
		r.Register(nopTransport{})
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			r.Register(nopTransport{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			for _, m := range r.Snapshot() {
				r.MarkAlive(m.ID)
			}
		}
	}()
	wg.Wait()

	if r.Len() != 100 {
		t.Errorf("Len() = %d, want 100", r.Len())
	}
}
