// Package league implements the coordinator side of the tournament: agent
// registration, round/tournament lifecycle, result bookkeeping, and
// persistence of league documents.
package league

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	log "github.com/sirupsen/logrus"
)

const tokenLength = 16

// Registration capacity defaults.
const (
	DefaultMaxPlayers  = 100
	DefaultMaxReferees = 10
)

// AgentInfo describes one registered player or referee.
//
// Endpoint is the agent's base URL; callers append the protocol paths when
// addressing it. AuthToken is the opaque bearer token issued at registration,
// the only credential this league knows about.
type AgentInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Endpoint    string `json:"endpoint"`
	AuthToken   string `json:"-"`
}

// Registry assigns ids and tokens to registering agents and serves as the
// authoritative list of league participants.
//
// Concurrency: read operations take the read lock and return copies, so no
// caller can mutate registry state from outside; registration takes the
// exclusive lock. No locks are held during external calls.
type Registry struct {
	players     []AgentInfo
	referees    []AgentInfo
	maxPlayers  int
	maxReferees int
	mu          sync.RWMutex
}

// NewRegistry creates a registry with the given capacity limits;
// non-positive limits fall back to the defaults.
func NewRegistry(maxPlayers, maxReferees int) *Registry {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	if maxReferees <= 0 {
		maxReferees = DefaultMaxReferees
	}
	return &Registry{maxPlayers: maxPlayers, maxReferees: maxReferees}
}

// RegisterPlayer admits a player, assigning the next sequential id ("P01",
// "P02", ...) and a fresh bearer token. Registering an endpoint that is
// already known updates it in place and re-issues nothing.
func (r *Registry) RegisterPlayer(displayName, endpoint string) (AgentInfo, error) {
	if displayName == "" || endpoint == "" {
		return AgentInfo{}, errors.New("league: registration requires display_name and endpoint")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if idx := slices.IndexFunc(r.players, func(a AgentInfo) bool { return a.Endpoint == endpoint }); idx >= 0 {
		r.players[idx].DisplayName = displayName
		return r.players[idx], nil
	}
	if len(r.players) >= r.maxPlayers {
		return AgentInfo{}, fmt.Errorf("league: full, maximum %d players allowed", r.maxPlayers)
	}

	id := fmt.Sprintf("P%02d", len(r.players)+1)
	token, err := generateAuthToken(id, tokenLength)
	if err != nil {
		return AgentInfo{}, err
	}
	agent := AgentInfo{ID: id, DisplayName: displayName, Endpoint: endpoint, AuthToken: token}
	r.players = append(r.players, agent)

	log.WithFields(log.Fields{"player_id": id, "display_name": displayName}).Info("Player registered")
	return agent, nil
}

// RegisterReferee admits a referee with ids "REF01", "REF02", ...
func (r *Registry) RegisterReferee(displayName, endpoint string) (AgentInfo, error) {
	if displayName == "" || endpoint == "" {
		return AgentInfo{}, errors.New("league: registration requires display_name and endpoint")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if idx := slices.IndexFunc(r.referees, func(a AgentInfo) bool { return a.Endpoint == endpoint }); idx >= 0 {
		r.referees[idx].DisplayName = displayName
		return r.referees[idx], nil
	}
	if len(r.referees) >= r.maxReferees {
		return AgentInfo{}, fmt.Errorf("league: maximum %d referees allowed", r.maxReferees)
	}

	id := fmt.Sprintf("REF%02d", len(r.referees)+1)
	token, err := generateAuthToken(id, tokenLength)
	if err != nil {
		return AgentInfo{}, err
	}
	agent := AgentInfo{ID: id, DisplayName: displayName, Endpoint: endpoint, AuthToken: token}
	r.referees = append(r.referees, agent)

	log.WithFields(log.Fields{"referee_id": id, "display_name": displayName}).Info("Referee registered")
	return agent, nil
}

// Players returns a copy of all registered players in registration order.
func (r *Registry) Players() []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]AgentInfo(nil), r.players...)
}

// Referees returns a copy of all registered referees in registration order.
func (r *Registry) Referees() []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]AgentInfo(nil), r.referees...)
}

// PlayerByID looks up a player, returning false if unknown.
func (r *Registry) PlayerByID(id string) (AgentInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx := slices.IndexFunc(r.players, func(a AgentInfo) bool { return a.ID == id }); idx >= 0 {
		return r.players[idx], true
	}
	return AgentInfo{}, false
}

// RefereeByID looks up a referee, returning false if unknown.
func (r *Registry) RefereeByID(id string) (AgentInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if idx := slices.IndexFunc(r.referees, func(a AgentInfo) bool { return a.ID == id }); idx >= 0 {
		return r.referees[idx], true
	}
	return AgentInfo{}, false
}

// ValidateToken checks a presented bearer token against the token issued to
// the given agent id (player or referee).
func (r *Registry) ValidateToken(agentID, token string) bool {
	if token == "" {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, list := range [][]AgentInfo{r.players, r.referees} {
		if idx := slices.IndexFunc(list, func(a AgentInfo) bool { return a.ID == agentID }); idx >= 0 {
			return list[idx].AuthToken == token
		}
	}
	return false
}
