// internal/vault/engine.go
//
// Combination engine for a single vault session.
// Responsibilities:
//   - Generate secrets from an injected random Source.
//   - Stage numbers and record (number, direction) entries.
//   - Check the 3-entry progress against the secret (order-sensitive).
//   - Drive the lifecycle: active → won → (delay) → active, active → mismatch → active.
//
// Notes:
//   - The engine has exactly one owner and takes no locks. Callers that share an
//     Engine across goroutines (including the Scheduler callback) must serialize access.
//   - Listeners are invoked synchronously, in subscription order.
package vault

import (
	"time"

	"github.com/rs/zerolog"
)

// Source draws uniform integers in [0, n). *math/rand/v2.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

// Scheduler runs f once after d and returns a function that cancels it.
// The presentation layer owns the timer; the engine only schedules.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (cancel func())
}

// Option configures an Engine.
type Option func(*Engine)

// WithScheduler sets the timer used for the post-unlock restart.
func WithScheduler(s Scheduler) Option { return func(e *Engine) { e.sched = s } }

// WithUnlockDelay overrides DefaultUnlockDelay.
func WithUnlockDelay(d time.Duration) Option { return func(e *Engine) { e.delay = d } }

// WithLogger attaches a logger; secrets are logged at debug level only.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithAutoCheck makes the third accepted entry trigger CheckCombination.
func WithAutoCheck() Option { return func(e *Engine) { e.autoCheck = true } }

// Engine owns the secret combination, the player's progress and the round lifecycle.
type Engine struct {
	src       Source
	sched     Scheduler
	delay     time.Duration
	log       zerolog.Logger
	now       func() time.Time
	autoCheck bool

	state     GameState
	staged    int // 0 = nothing staged
	listeners []func(Event)
	cancel    func() // pending unlock restart, if any
}

// New constructs an engine and starts the first round.
// Listeners subscribed afterwards do not observe that initial reset.
func New(src Source, opts ...Option) *Engine {
	e := &Engine{
		src:   src,
		sched: timerScheduler{},
		delay: DefaultUnlockDelay,
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	e.StartNewGame()
	return e
}

// Subscribe registers fn for every subsequent event.
func (e *Engine) Subscribe(fn func(Event)) {
	e.listeners = append(e.listeners, fn)
}

// StartNewGame replaces the whole GameState with a fresh secret and empty progress.
func (e *Engine) StartNewGame() GameState {
	e.stopPending()
	e.state = GameState{
		Generation: e.state.Generation + 1,
		Secret:     e.generateSecret(),
		Progress:   []DialEntry{},
		Status:     StatusActive,
		StartedAt:  e.now(),
	}
	e.staged = 0
	e.log.Debug().
		Uint64("generation", e.state.Generation).
		Interface("secret", e.state.Secret).
		Msg("generated secret combination")
	e.emit(EventReset)
	return e.State()
}

// Restart abandons the current round, including a pending unlock display.
func (e *Engine) Restart() GameState {
	return e.StartNewGame()
}

// SelectNumber stages n for the next direction. Out-of-range values and input
// while the vault is open are ignored.
func (e *Engine) SelectNumber(n int) {
	if n < MinNumber || n > MaxNumber || e.state.Status != StatusActive {
		return
	}
	e.staged = n
}

// Staged returns the pending number, if any.
func (e *Engine) Staged() (int, bool) {
	return e.staged, e.staged != 0
}

// SubmitDirection records {staged, d} and returns a copy of the updated progress.
// With auto-check enabled the third entry also runs CheckCombination; a
// mismatch then returns the rejected progress and the state has already reset.
func (e *Engine) SubmitDirection(d Direction) ([]DialEntry, error) {
	if !d.Valid() {
		return e.progress(), ErrInvalidDirection
	}
	if e.state.Status != StatusActive {
		return e.progress(), ErrVaultOpen
	}
	if e.staged == 0 {
		return e.progress(), ErrNoNumberSelected
	}
	if len(e.state.Progress) >= CombinationLength {
		return e.progress(), ErrCombinationFull
	}
	e.state.Progress = append(e.state.Progress, DialEntry{Number: e.staged, Direction: d})
	e.staged = 0
	out := e.progress()
	if e.autoCheck && len(out) == CombinationLength {
		_, err := e.CheckCombination()
		return out, err
	}
	return out, nil
}

// CheckCombination compares progress with the secret. It requires exactly
// CombinationLength recorded entries.
func (e *Engine) CheckCombination() (MatchResult, error) {
	if e.state.Status != StatusActive {
		return "", ErrVaultOpen
	}
	if len(e.state.Progress) != CombinationLength {
		return "", ErrIncompleteCombination
	}
	if !e.state.Secret.Matches(e.state.Progress) {
		e.state.Status = StatusLost
		e.log.Info().Uint64("generation", e.state.Generation).Msg("wrong combination")
		e.emit(EventReject)
		e.StartNewGame()
		return Mismatch, nil
	}

	e.state.Status = StatusWon
	e.log.Info().Uint64("generation", e.state.Generation).Msg("vault unlocked")
	e.emit(EventUnlock)
	gen := e.state.Generation
	e.cancel = e.sched.AfterFunc(e.delay, func() { e.finishUnlock(gen) })
	return Match, nil
}

// finishUnlock is the scheduled end of the win display. A timer that
// outlived its round (Restart, or an already fired reset) is a no-op.
func (e *Engine) finishUnlock(gen uint64) {
	if e.state.Generation != gen || e.state.Status != StatusWon {
		return
	}
	e.cancel = nil
	e.StartNewGame()
}

// State returns a snapshot; Progress is a copy.
func (e *Engine) State() GameState {
	s := e.state
	s.Progress = e.progress()
	return s
}

// UnlockDelay reports the configured win display window.
func (e *Engine) UnlockDelay() time.Duration { return e.delay }

func (e *Engine) progress() []DialEntry {
	return append([]DialEntry{}, e.state.Progress...)
}

func (e *Engine) generateSecret() Combination {
	var c Combination
	for i := range c {
		n := e.src.IntN(MaxNumber) + MinNumber
		d := Clockwise
		if e.src.IntN(2) == 1 {
			d = CounterClockwise
		}
		c[i] = DialEntry{Number: n, Direction: d}
	}
	return c
}

func (e *Engine) stopPending() {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) emit(kind EventKind) {
	ev := Event{
		Kind:       kind,
		Generation: e.state.Generation,
		Progress:   e.progress(),
		At:         e.now(),
	}
	ev.Elapsed = ev.At.Sub(e.state.StartedAt)
	for _, fn := range e.listeners {
		fn(ev)
	}
}

// timerScheduler is the default Scheduler, backed by time.AfterFunc.
type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}
