package game

import "github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"

// Points awarded per match outcome.
const (
	WinPoints  = 3
	TiePoints  = 1
	LossPoints = 0
)

// DetermineWinner computes the outcome of a match from the drawn number and
// both players' choices. It is a pure function: same inputs, same result, no
// side effects.
//
// The parity of drawn decides the winning symbol. Players are evaluated in
// (playerA, playerB) order and the first whose choice matches the parity wins.
// When both players pick the same symbol and it matches, player A is therefore
// awarded the win. That first-match rule is inherited league behavior, not a
// tie: exactly one symbol matches any draw, but two-same-choice collisions do
// occur and the first-listed player is favored. Kept deterministic here so the
// quirk is at least reproducible and auditable.
//
// When neither choice matches the parity the match is a tie: the winner is
// empty and both players take TiePoints. Otherwise the winner receives
// WinPoints and the other player LossPoints.
func DetermineWinner(drawn int, playerA, playerB string, choices map[string]protocol.Parity) protocol.GameResult {
	parity := protocol.ParityOdd
	if drawn%2 == 0 {
		parity = protocol.ParityEven
	}

	var winner string
	for _, id := range []string{playerA, playerB} {
		if choices[id] == parity {
			winner = id
			break
		}
	}

	status := protocol.StatusWin
	scores := make(map[string]int, 2)
	if winner == "" {
		status = protocol.StatusTie
		scores[playerA] = TiePoints
		scores[playerB] = TiePoints
	} else {
		for _, id := range []string{playerA, playerB} {
			if id == winner {
				scores[id] = WinPoints
			} else {
				scores[id] = LossPoints
			}
		}
	}

	return protocol.GameResult{
		Status:         status,
		WinnerPlayerID: winner,
		DrawnNumber:    drawn,
		NumberParity:   parity,
		Choices:        choices,
		Scores:         scores,
	}
}
