package referee

import (
	"fmt"
	"sync"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/game"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
)

// SessionRegistry tracks the matches this referee is currently running.
// Creation is the dedup point: a match id can be active at most once, so a
// re-delivered assignment cannot spawn a second game.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*game.Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*game.Session)}
}

// Create registers a new session for the assignment, failing if the match is
// already active.
func (r *SessionRegistry) Create(a protocol.MatchAssignment) (*game.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[a.MatchID]; exists {
		return nil, fmt.Errorf("match %s already in progress", a.MatchID)
	}
	session := game.NewSession(a.MatchID)
	r.sessions[a.MatchID] = session
	return session, nil
}

// Get returns the live session for a match, if any.
func (r *SessionRegistry) Get(matchID string) (*game.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[matchID]
	return s, ok
}

// Close drops a finished or aborted session from the registry.
func (r *SessionRegistry) Close(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, matchID)
}

// Active reports how many matches are currently running.
func (r *SessionRegistry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
