// internal/vault/types.go
//
// Core type definitions for the vault combination engine.
// Defines:
//   - Direction: which way the dial is turned.
//   - DialEntry / Combination: one (number, direction) pair and the 3-entry secret.
//   - Status, MatchResult, Event: lifecycle values observed by the presentation layer.
//   - GameState: snapshot of a single round.

package vault

import (
	"errors"
	"time"
)

const (
	// CombinationLength is the number of entries in every secret.
	CombinationLength = 3

	MinNumber = 1
	MaxNumber = 9

	// DefaultUnlockDelay is how long the open vault is shown before a new round starts.
	DefaultUnlockDelay = 5 * time.Second
)

// Direction is the rotation direction of a single dial turn.
type Direction string

const (
	Clockwise        Direction = "clockwise"
	CounterClockwise Direction = "counterclockwise"
)

// Valid reports whether d is one of the two dial directions.
func (d Direction) Valid() bool {
	return d == Clockwise || d == CounterClockwise
}

// ParseDirection maps the wire string onto a Direction.
func ParseDirection(s string) (Direction, error) {
	d := Direction(s)
	if !d.Valid() {
		return "", ErrInvalidDirection
	}
	return d, nil
}

// DialEntry is one (number, direction) pair.
type DialEntry struct {
	Number    int       `json:"number"`
	Direction Direction `json:"direction"`
}

// Combination is an ordered sequence of exactly CombinationLength entries.
type Combination [CombinationLength]DialEntry

// Matches compares progress against c index-for-index.
func (c Combination) Matches(progress []DialEntry) bool {
	if len(progress) != CombinationLength {
		return false
	}
	for i, e := range progress {
		if e != c[i] {
			return false
		}
	}
	return true
}

// Status is the coarse lifecycle state of a round.
type Status string

const (
	StatusActive Status = "active"
	StatusWon    Status = "won"
	// StatusLost is only observable from reject listeners; a new round replaces it immediately.
	StatusLost Status = "lost"
)

// MatchResult is the outcome of CheckCombination.
type MatchResult string

const (
	Match    MatchResult = "match"
	Mismatch MatchResult = "mismatch"
)

// EventKind enumerates the lifecycle events emitted to listeners.
type EventKind string

const (
	EventReset  EventKind = "reset"  // new secret generated; dial and door return to the initial pose
	EventReject EventKind = "reject" // wrong combination; a reset follows immediately
	EventUnlock EventKind = "unlock" // combination matched; a reset follows after the unlock delay
)

// Event is delivered synchronously to every subscribed listener.
type Event struct {
	Kind       EventKind   `json:"kind"`
	Generation uint64      `json:"generation"`
	Progress   []DialEntry `json:"progress"`
	At         time.Time   `json:"at"`

	// Elapsed is the time since the round started.
	Elapsed time.Duration `json:"-"`
}

// GameState holds a single round. Secret never leaves the process through the presentation.
type GameState struct {
	Generation uint64      // increases on every (re)start
	Secret     Combination // generated at start, never mutated
	Progress   []DialEntry // 0..CombinationLength entries
	Status     Status
	StartedAt  time.Time
}

// Input errors. All are recoverable and leave state unchanged.
var (
	ErrNoNumberSelected      = errors.New("no number selected")
	ErrIncompleteCombination = errors.New("incomplete combination")
	ErrCombinationFull       = errors.New("combination already complete")
	ErrVaultOpen             = errors.New("vault is open")
	ErrInvalidDirection      = errors.New("invalid direction")
)
