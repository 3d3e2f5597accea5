package store

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/robalobadob/vault/internal/session"
)

func TestSaveGet(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()
	s := session.New("abc", rand.New(rand.NewPCG(1, 1)), session.Config{})
	if err := st.Save(ctx, s); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := st.Get(ctx, "abc")
	if err != nil || got != s {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if _, err := st.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
	}
}

func TestSweepEvictsIdle(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	m := &memory{sessions: map[string]*session.Session{}, now: now}
	old := session.New("old", rand.New(rand.NewPCG(1, 1)), session.Config{Now: now})
	_ = m.Save(ctx, old)

	clock = clock.Add(20 * time.Minute)
	fresh := session.New("fresh", rand.New(rand.NewPCG(2, 2)), session.Config{Now: now})
	_ = m.Save(ctx, fresh)

	clock = clock.Add(15 * time.Minute)
	if n := m.Sweep(ctx, 30*time.Minute); n != 1 {
		t.Fatalf("Sweep() = %d, want 1", n)
	}
	if _, err := m.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Error("idle session survived the sweep")
	}
	if _, err := m.Get(ctx, "fresh"); err != nil {
		t.Errorf("active session evicted: %v", err)
	}
}
