// Package schedule builds the complete tournament plan: a round-robin match
// schedule with load-balanced referee assignments.
//
// The scheduler is pure computation. It performs no network calls and no I/O;
// bad input (fewer than 2 players, no referees) is a configuration error
// surfaced immediately and never retried.
package schedule

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Errors returned for invalid scheduler input.
var (
	ErrNotEnoughPlayers = errors.New("schedule: need at least 2 players for a tournament")
	ErrNoReferees       = errors.New("schedule: need at least 1 referee for a tournament")
)

// MatchStatus tracks a scheduled match's single status mutation.
type MatchStatus string

const (
	MatchPending    MatchStatus = "PENDING"
	MatchInProgress MatchStatus = "IN_PROGRESS"
	MatchCompleted  MatchStatus = "COMPLETED"
	MatchAborted    MatchStatus = "ABORTED"
)

// RefereeInfo is the referee metadata the scheduler needs for assignment.
type RefereeInfo struct {
	RefereeID string `json:"referee_id"`
	Endpoint  string `json:"endpoint"`
}

// Match is one fixture in the plan. Identity fields are immutable once
// created; Status is the only mutable field and is written exactly once when
// the match completes or aborts.
type Match struct {
	MatchID         string      `json:"match_id"`
	RoundNumber     int         `json:"round_number"`
	PlayerAID       string      `json:"player_A_id"`
	PlayerBID       string      `json:"player_B_id"`
	RefereeID       string      `json:"referee_id"`
	RefereeEndpoint string      `json:"referee_endpoint"`
	Status          MatchStatus `json:"status"`
}

// Plan is the full tournament schedule, built once and never resharded.
type Plan struct {
	LeagueID     string    `json:"league_id"`
	Rounds       [][]Match `json:"rounds"`
	TotalMatches int       `json:"total_matches"`
}

// MatchID derives the reproducible match identifier for (league, round, seq).
// Format: "{league_id}_R{round}_M{seq:03}", e.g. "L1_R1_M001". Because the id
// is a pure function of its inputs there is no separate id generator to keep
// in sync with the plan.
func MatchID(leagueID string, round, seq int) string {
	return fmt.Sprintf("%s_R%d_M%03d", leagueID, round, seq)
}

// BuildSchedule produces the complete round-robin plan for the given players
// with a referee assigned to every match.
//
// Pairing uses the standard rotation scheme: n-1 rounds for even n, n rounds
// for odd n (a phantom bye sits out each round), every unordered pair
// scheduled exactly once, no player double-booked within a round.
//
// Referee assignment visits matches in (round, position) order and picks the
// referee with the smallest workload so far, ties broken by input-list order.
// A greedy balance, not a globally optimal one; when the match count divides
// evenly by the referee count the workloads come out equal. The workload
// counter is local to this call and discarded with it, not tournament state.
func BuildSchedule(leagueID string, playerIDs []string, referees []RefereeInfo) (*Plan, error) {
	if len(playerIDs) < 2 {
		return nil, ErrNotEnoughPlayers
	}
	if len(referees) == 0 {
		return nil, ErrNoReferees
	}

	rounds := pairRounds(playerIDs)

	workload := make(map[string]int, len(referees))
	total := 0
	planned := make([][]Match, len(rounds))
	for roundIdx, pairs := range rounds {
		roundNumber := roundIdx + 1
		matches := make([]Match, 0, len(pairs))
		for seq, pair := range pairs {
			ref := leastLoaded(referees, workload)
			workload[ref.RefereeID]++
			matches = append(matches, Match{
				MatchID:         MatchID(leagueID, roundNumber, seq+1),
				RoundNumber:     roundNumber,
				PlayerAID:       pair[0],
				PlayerBID:       pair[1],
				RefereeID:       ref.RefereeID,
				RefereeEndpoint: ref.Endpoint,
				Status:          MatchPending,
			})
			total++
		}
		planned[roundIdx] = matches
	}

	log.WithFields(log.Fields{
		"league_id":     leagueID,
		"total_rounds":  len(planned),
		"total_matches": total,
	}).Info("Tournament schedule created")

	return &Plan{LeagueID: leagueID, Rounds: planned, TotalMatches: total}, nil
}

// pairRounds builds the round-robin pairings with the circle rotation: one
// player stays fixed while the rest rotate one seat per round. Odd player
// counts get a phantom bye slot, so each round one real player sits out and
// the round count is n instead of n-1. Naive first-fit packing of the C(n,2)
// pairs cannot pack within that round count from n=5 up, which is why the
// rotation is used instead.
func pairRounds(playerIDs []string) [][][2]string {
	ids := append([]string(nil), playerIDs...)
	if len(ids)%2 == 1 {
		ids = append(ids, "") // bye slot
	}
	n := len(ids)
	numRounds := n - 1

	rounds := make([][][2]string, 0, numRounds)
	for r := 0; r < numRounds; r++ {
		round := make([][2]string, 0, n/2)
		for i := 0; i < n/2; i++ {
			a, b := ids[i], ids[n-1-i]
			if a == "" || b == "" {
				continue // the bye's opponent sits out this round
			}
			round = append(round, [2]string{a, b})
		}
		rounds = append(rounds, round)

		// Rotate everything but ids[0] one position clockwise.
		last := ids[n-1]
		copy(ids[2:], ids[1:n-1])
		ids[1] = last
	}
	return rounds
}

// leastLoaded returns the referee with the fewest assigned matches, preferring
// earlier list positions on ties.
func leastLoaded(referees []RefereeInfo, workload map[string]int) RefereeInfo {
	selected := referees[0]
	for _, ref := range referees[1:] {
		if workload[ref.RefereeID] < workload[selected.RefereeID] {
			selected = ref
		}
	}
	return selected
}
