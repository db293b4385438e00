package session

import (
	"errors"
	"testing"
	"time"

	"github.com/castlebay/arena/internal/clock"
	"github.com/castlebay/arena/internal/rules"
)

func newTestRegistry(t *testing.T, opts ...RegistryOption) *Registry {
	t.Helper()
	r := NewRegistry(opts...)
	t.Cleanup(r.Close)
	return r
}

func TestRegistryCreateAndGet(t *testing.T) {
	r := newTestRegistry(t, WithSessionDefaults(testConfig()))

	s := r.Create(PlayerInfo{ID: "w1"}, PlayerInfo{ID: "b1"}, Config{})
	got, err := r.Get(s.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != s {
		t.Fatalf("Get returned a different handle")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	r := newTestRegistry(t)
	if _, err := r.Get("no-such-id"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get = %v, want ErrSessionNotFound", err)
	}
}

func TestRegistryDefaultsApplied(t *testing.T) {
	defaults := Config{
		Clock:        clock.Config{Initial: 3 * time.Minute, Increment: time.Second},
		AbandonGrace: time.Minute,
	}
	r := newTestRegistry(t, WithSessionDefaults(defaults))

	s := r.Create(PlayerInfo{ID: "w1"}, PlayerInfo{ID: "b1"}, Config{})
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Clocks.WhiteMillis != int64(3*time.Minute/time.Millisecond) {
		t.Fatalf("white clock = %dms, want default 3m", snap.Clocks.WhiteMillis)
	}
}

func TestRegistryEvict(t *testing.T) {
	r := newTestRegistry(t, WithSessionDefaults(testConfig()))

	var evicted []string
	r.OnEvict(func(id string) { evicted = append(evicted, id) })

	s := r.Create(PlayerInfo{ID: "w1"}, PlayerInfo{ID: "b1"}, Config{})
	if !r.Evict(s.ID()) {
		t.Fatalf("Evict returned false for a live session")
	}
	if _, err := r.Get(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get after evict: %v", err)
	}
	if len(evicted) != 1 || evicted[0] != s.ID() {
		t.Fatalf("hook calls = %v", evicted)
	}
	if r.Evict(s.ID()) {
		t.Fatalf("Evict returned true for an unknown id")
	}
	if len(evicted) != 1 {
		t.Fatalf("hook fired for unknown id: %v", evicted)
	}
}

func TestRegistrySweepNotifiesEvictionHook(t *testing.T) {
	r := newTestRegistry(t, WithSessionDefaults(testConfig()), WithRetention(time.Minute))

	var evicted []string
	r.OnEvict(func(id string) { evicted = append(evicted, id) })

	s := r.Create(PlayerInfo{ID: "w1"}, PlayerInfo{ID: "b1"}, Config{})
	if err := s.Connect(rules.White); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Connect(rules.Black); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Resign(rules.White); err != nil {
		t.Fatalf("Resign: %v", err)
	}

	r.sweep(time.Now())
	if len(evicted) != 0 {
		t.Fatalf("hook fired inside retention window: %v", evicted)
	}
	r.sweep(time.Now().Add(2 * time.Minute))
	if len(evicted) != 1 || evicted[0] != s.ID() {
		t.Fatalf("hook calls = %v, want [%s]", evicted, s.ID())
	}
}

func TestRegistrySweepEvictsFinished(t *testing.T) {
	r := newTestRegistry(t, WithSessionDefaults(testConfig()), WithRetention(time.Minute))

	finished := r.Create(PlayerInfo{ID: "w1"}, PlayerInfo{ID: "b1"}, Config{})
	if err := finished.Connect(rules.White); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := finished.Connect(rules.Black); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := finished.Resign(rules.White); err != nil {
		t.Fatalf("Resign: %v", err)
	}
	live := r.Create(PlayerInfo{ID: "w2"}, PlayerInfo{ID: "b2"}, Config{})

	// inside the retention window both stay resolvable
	r.sweep(time.Now())
	if r.Len() != 2 {
		t.Fatalf("Len after early sweep = %d, want 2", r.Len())
	}

	r.sweep(time.Now().Add(2 * time.Minute))
	if _, err := r.Get(finished.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("finished session still resolvable: %v", err)
	}
	if _, err := r.Get(live.ID()); err != nil {
		t.Fatalf("live session evicted: %v", err)
	}
}
