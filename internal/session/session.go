// internal/session/session.go
//
// A Session binds one vault engine to its presentation state for a single
// browser client.
// Responsibilities:
//   - Serialize every engine call, including the post-unlock timer, behind one mutex.
//   - Fold engine events into the pose and keep a bounded, sequenced event log.
//   - Produce the View returned to the client (never the secret).

package session

import (
	"sync"
	"time"

	"github.com/robalobadob/vault/internal/pose"
	"github.com/robalobadob/vault/internal/vault"
)

// maxEvents bounds the per-session event log.
const maxEvents = 64

// Entry is a logged event with its sequence number.
type Entry struct {
	Seq uint64 `json:"seq"`
	vault.Event
}

// View is the client-facing snapshot of a session.
type View struct {
	SessionID     string            `json:"sessionId"`
	Generation    uint64            `json:"generation"`
	Status        vault.Status      `json:"status"`
	Progress      []vault.DialEntry `json:"progress"`
	Staged        *int              `json:"staged"`
	Pose          pose.Pose         `json:"pose"`
	UnlockDelayMs int64             `json:"unlockDelayMs"`
	LastSeq       uint64            `json:"lastSeq"`
	Events        []Entry           `json:"events"` // events emitted by the request that produced this view
}

// Config carries the engine options shared by every session.
type Config struct {
	EngineOptions []vault.Option
	// Listeners are subscribed after the session's own pose listener.
	Listeners     []func(id string, ev vault.Event)
	Now           func() time.Time
}

// Session is safe for concurrent use.
type Session struct {
	ID string

	mu       sync.Mutex
	engine   *vault.Engine
	pose     pose.Pose
	events   []Entry
	seq      uint64
	lastSeen time.Time
	now      func() time.Time
}

// New creates a session whose engine draws secrets from src.
func New(id string, src vault.Source, cfg Config) *Session {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	s := &Session{ID: id, pose: pose.Initial(), now: now, lastSeen: now()}
	opts := append([]vault.Option{vault.WithScheduler(s)}, cfg.EngineOptions...)
	s.engine = vault.New(src, opts...)
	s.engine.Subscribe(s.record)
	for _, l := range cfg.Listeners {
		l := l
		s.engine.Subscribe(func(ev vault.Event) { l(id, ev) })
	}
	return s
}

// AfterFunc implements vault.Scheduler. The callback runs under the session lock.
func (s *Session) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		f()
	})
	return func() { t.Stop() }
}

// SelectNumber stages n. Out-of-range values are ignored by the engine.
func (s *Session) SelectNumber(n int) View {
	return s.do(func() error {
		s.engine.SelectNumber(n)
		return nil
	})
}

// SubmitDirection records the staged number with d and turns the dial.
func (s *Session) SubmitDirection(d vault.Direction) (View, error) {
	var err error
	v := s.do(func() error {
		before := s.engine.State().Generation
		var progress []vault.DialEntry
		progress, err = s.engine.SubmitDirection(d)
		if err != nil {
			return err
		}
		// Auto-check may already have replaced the round; the reset has fixed the pose then.
		st := s.engine.State()
		if st.Generation != before || len(progress) == 0 {
			return nil
		}
		if st.Status == vault.StatusActive {
			s.pose.Notice = ""
		}
		s.pose.Turn(progress[len(progress)-1])
		return nil
	})
	return v, err
}

// Check runs CheckCombination.
func (s *Session) Check() (vault.MatchResult, View, error) {
	var (
		res vault.MatchResult
		err error
	)
	v := s.do(func() error {
		res, err = s.engine.CheckCombination()
		return err
	})
	return res, v, err
}

// Restart starts a new round immediately.
func (s *Session) Restart() View {
	return s.do(func() error {
		s.engine.Restart()
		return nil
	})
}

// View returns the current snapshot without events.
func (s *Session) View() View {
	return s.do(func() error { return nil })
}

// EventsSince returns logged events with Seq > after, oldest first.
func (s *Session) EventsSince(after uint64) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.now()
	out := []Entry{}
	for _, e := range s.events {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}

// LastSeen reports when the client last touched the session.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// Secret exposes the current secret for diagnostics and tests only.
func (s *Session) Secret() vault.Combination {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.State().Secret
}

// do runs fn under the lock and returns the resulting view with every event fn emitted.
func (s *Session) do(fn func() error) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.now()
	mark := s.seq
	if err := fn(); err != nil {
		s.pose.Prompt(err)
	}
	v := s.viewLocked()
	v.Events = []Entry{}
	for _, e := range s.events {
		if e.Seq > mark {
			v.Events = append(v.Events, e)
		}
	}
	return v
}

func (s *Session) viewLocked() View {
	st := s.engine.State()
	v := View{
		SessionID:     s.ID,
		Generation:    st.Generation,
		Status:        st.Status,
		Progress:      st.Progress,
		Pose:          s.pose,
		UnlockDelayMs: s.engine.UnlockDelay().Milliseconds(),
		LastSeq:       s.seq,
	}
	if n, ok := s.engine.Staged(); ok {
		v.Staged = &n
	}
	return v
}

// record is the pose listener; it runs inside engine calls, so the lock is held.
func (s *Session) record(ev vault.Event) {
	s.pose.Apply(ev)
	s.seq++
	s.events = append(s.events, Entry{Seq: s.seq, Event: ev})
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
}
