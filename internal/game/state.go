package game

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// ErrInvalidTransition is returned for any edge absent from the transition
// table.
var ErrInvalidTransition = errors.New("game: invalid state transition")

// State is a phase in a match's lifecycle.
type State string

// Match lifecycle states. A normal match walks the chain
// WaitingForPlayers -> CollectingChoices -> DrawingNumber -> Evaluating ->
// Finished. Aborted is reachable only from the two phases that depend on
// player cooperation.
const (
	StateWaitingForPlayers State = "waiting_for_players"
	StateCollectingChoices State = "collecting_choices"
	StateDrawingNumber     State = "drawing_number"
	StateEvaluating        State = "evaluating"
	StateFinished          State = "finished"
	StateAborted           State = "aborted"
)

// transitions is the fixed, total transition table. An edge absent from the
// table is a protocol violation, never a silent no-op.
var transitions = map[State][]State{
	StateWaitingForPlayers: {StateCollectingChoices, StateAborted},
	StateCollectingChoices: {StateDrawingNumber, StateAborted},
	StateDrawingNumber:     {StateEvaluating},
	StateEvaluating:        {StateFinished},
	StateFinished:          {},
	StateAborted:           {},
}

// HistoryEntry records one transition for post-hoc audit.
type HistoryEntry struct {
	State State
	At    time.Time
}

// Session is the per-match state machine owned by exactly one orchestrator.
// It validates every phase transition and retains the full transition history
// for the life of the session; history is never trimmed.
//
// Sessions are not safe for concurrent use and never need to be: each match
// is driven by a single orchestrator goroutine, and no two matches share a
// session.
type Session struct {
	MatchID string
	state   State
	history []HistoryEntry
}

// NewSession creates a session in StateWaitingForPlayers with the initial
// state already recorded in history.
func NewSession(matchID string) *Session {
	s := &Session{
		MatchID: matchID,
		state:   StateWaitingForPlayers,
	}
	s.history = append(s.history, HistoryEntry{State: s.state, At: time.Now()})
	return s
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// CanTransition reports whether moving to next is legal from the current
// state.
func (s *Session) CanTransition(next State) bool {
	for _, allowed := range transitions[s.state] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transition moves the session to next, appending to the audit history.
// Illegal edges return an error and leave the session untouched.
func (s *Session) Transition(next State) error {
	if !s.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, next)
	}

	log.WithFields(log.Fields{
		"match_id":   s.MatchID,
		"from_state": s.state,
		"to_state":   next,
	}).Info("State transition")

	s.state = next
	s.history = append(s.history, HistoryEntry{State: next, At: time.Now()})
	return nil
}

// History returns a copy of the transition history, oldest first.
func (s *Session) History() []HistoryEntry {
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}
