package standings

import (
	"fmt"
	"sort"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
)

// PlayerStanding is one player's accumulated record. Everything except
// PlayerID and DisplayName is mutated only through RecordMatchResult; Rank is
// derived, recomputed on every read rather than stored authoritatively.
type PlayerStanding struct {
	PlayerID      string `json:"player_id"`
	DisplayName   string `json:"display_name"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	Ties          int    `json:"ties"`
	Points        int    `json:"points"`
	MatchesPlayed int    `json:"matches_played"`
	Rank          int    `json:"rank"`
}

// Entry converts the standing to its wire representation.
func (p PlayerStanding) Entry() protocol.StandingEntry {
	return protocol.StandingEntry{
		PlayerID:      p.PlayerID,
		DisplayName:   p.DisplayName,
		Rank:          p.Rank,
		Points:        p.Points,
		Wins:          p.Wins,
		Losses:        p.Losses,
		Ties:          p.Ties,
		MatchesPlayed: p.MatchesPlayed,
	}
}

// Engine accumulates win/loss/tie counts and points for every admitted player
// and produces the ranked leaderboard.
//
// Scoring: win = 3 points, tie = 1, loss = 0, so points == 3*wins + ties is
// an invariant for every player at all times.
//
// The engine is not internally synchronized: result application must be
// serialized by the owner (the league manager holds it behind the tournament
// lock) so two referees reporting near-simultaneously cannot race.
type Engine struct {
	players map[string]*PlayerStanding
	order   []string
	tracker *Tracker
}

// NewEngine returns an engine with no players admitted.
func NewEngine() *Engine {
	return &Engine{
		players: make(map[string]*PlayerStanding),
		tracker: NewTracker(),
	}
}

// AddPlayer admits a player to the standings before any of its matches.
func (e *Engine) AddPlayer(playerID, displayName string) {
	if _, ok := e.players[playerID]; ok {
		return
	}
	e.players[playerID] = &PlayerStanding{PlayerID: playerID, DisplayName: displayName}
	e.order = append(e.order, playerID)
}

// RecordMatchResult applies one decided or tied match. winnerID nil means a
// tie: both players get a tie and 1 point. A decisive result gives the winner
// a win and 3 points and the other player a loss. Both players' matches_played
// always increments.
func (e *Engine) RecordMatchResult(matchID, playerA, playerB string, winnerID *string) error {
	a, ok := e.players[playerA]
	if !ok {
		return fmt.Errorf("standings: player %s not in standings", playerA)
	}
	b, ok := e.players[playerB]
	if !ok {
		return fmt.Errorf("standings: player %s not in standings", playerB)
	}

	winner := ""
	resultType := protocol.StatusTie
	if winnerID != nil {
		winner = *winnerID
		resultType = protocol.StatusWin
	}
	if err := e.tracker.Record(matchID, playerA, playerB, winner, resultType); err != nil {
		return err
	}

	a.MatchesPlayed++
	b.MatchesPlayed++

	switch {
	case winnerID == nil:
		a.Ties++
		a.Points++
		b.Ties++
		b.Points++
	case *winnerID == playerA:
		a.Wins++
		a.Points += 3
		b.Losses++
	default:
		b.Wins++
		b.Points += 3
		a.Losses++
	}
	return nil
}

// Standings returns the ranked leaderboard. Sort key: points descending, then
// the head-to-head tiebreak value, then player id ascending; ranks are
// assigned from the sorted order. Repeated calls with no new results return
// the same ranking.
//
// The head-to-head tiebreak applies only when exactly one other player shares
// a player's point total: 0 if the player won that head-to-head, 1 if it
// lost, 0 if they tied or never met. Three or more players on the same total
// fall through to alphabetical order, an inherited simplification that is
// preserved deliberately.
func (e *Engine) Standings() []PlayerStanding {
	out := make([]PlayerStanding, 0, len(e.players))
	for _, id := range e.order {
		out = append(out, *e.players[id])
	}

	tiebreak := make(map[string]int, len(out))
	for _, p := range out {
		tiebreak[p.PlayerID] = e.tiebreakValue(p, out)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if tiebreak[out[i].PlayerID] != tiebreak[out[j].PlayerID] {
			return tiebreak[out[i].PlayerID] < tiebreak[out[j].PlayerID]
		}
		return out[i].PlayerID < out[j].PlayerID
	})

	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Entries returns the current standings in wire form.
func (e *Engine) Entries() []protocol.StandingEntry {
	ranked := e.Standings()
	entries := make([]protocol.StandingEntry, len(ranked))
	for i, p := range ranked {
		entries[i] = p.Entry()
	}
	return entries
}

// PlayerStandingFor returns a copy of one player's standing, or false if the
// player was never admitted.
func (e *Engine) PlayerStandingFor(playerID string) (PlayerStanding, bool) {
	p, ok := e.players[playerID]
	if !ok {
		return PlayerStanding{}, false
	}
	return *p, true
}

// Tracker exposes the underlying match audit trail.
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

func (e *Engine) tiebreakValue(player PlayerStanding, all []PlayerStanding) int {
	var tied []PlayerStanding
	for _, p := range all {
		if p.Points == player.Points && p.PlayerID != player.PlayerID {
			tied = append(tied, p)
		}
	}
	if len(tied) != 1 {
		return 0
	}
	switch e.tracker.HeadToHead(player.PlayerID, tied[0].PlayerID) {
	case h2hLoss:
		return 1
	default:
		return 0
	}
}
