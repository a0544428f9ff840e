// Package standings accumulates match results into the league table and
// produces the ranked, deterministically tie-broken leaderboard.
package standings

import (
	"fmt"
	"time"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
)

// Head-to-head outcomes recorded per ordered player pair.
const (
	h2hWin  = "W"
	h2hLoss = "L"
	h2hTie  = "T"
)

// MatchResult is one recorded outcome, kept for audit.
type MatchResult struct {
	MatchID    string    `json:"match_id"`
	PlayerAID  string    `json:"player_A_id"`
	PlayerBID  string    `json:"player_B_id"`
	WinnerID   string    `json:"winner_id,omitempty"`
	ResultType string    `json:"result_type"`
	Timestamp  time.Time `json:"timestamp"`
}

// Tracker records every match outcome and maintains head-to-head records
// between player pairs for tiebreaking.
type Tracker struct {
	matches    []MatchResult
	headToHead map[[2]string]string
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{headToHead: make(map[[2]string]string)}
}

// Record stores a match outcome and updates the head-to-head table. winnerID
// empty means a tie. resultType is WIN, TIE or ABORTED; aborted matches stay
// in the audit trail but leave the head-to-head table untouched.
func (t *Tracker) Record(matchID, playerA, playerB, winnerID, resultType string) error {
	if winnerID != "" && winnerID != playerA && winnerID != playerB {
		return fmt.Errorf("standings: winner %s not in match players", winnerID)
	}

	t.matches = append(t.matches, MatchResult{
		MatchID:    matchID,
		PlayerAID:  playerA,
		PlayerBID:  playerB,
		WinnerID:   winnerID,
		ResultType: resultType,
		Timestamp:  time.Now().UTC(),
	})

	if resultType == protocol.StatusAborted {
		return nil
	}

	switch winnerID {
	case playerA:
		t.headToHead[[2]string{playerA, playerB}] = h2hWin
		t.headToHead[[2]string{playerB, playerA}] = h2hLoss
	case playerB:
		t.headToHead[[2]string{playerA, playerB}] = h2hLoss
		t.headToHead[[2]string{playerB, playerA}] = h2hWin
	default:
		t.headToHead[[2]string{playerA, playerB}] = h2hTie
		t.headToHead[[2]string{playerB, playerA}] = h2hTie
	}
	return nil
}

// HeadToHead returns "W" if playerID beat opponentID, "L" if it lost, "T" if
// they tied, or "" if they never played.
func (t *Tracker) HeadToHead(playerID, opponentID string) string {
	return t.headToHead[[2]string{playerID, opponentID}]
}

// Matches returns a copy of all recorded results, oldest first.
func (t *Tracker) Matches() []MatchResult {
	out := make([]MatchResult, len(t.matches))
	copy(out, t.matches)
	return out
}
