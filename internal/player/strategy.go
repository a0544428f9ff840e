// Package player implements a league participant: it answers invitations,
// picks a parity each match, and consumes league notifications.
package player

import (
	"math/rand"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/protocol"
)

// MatchContext is what a strategy may look at when choosing.
type MatchContext struct {
	MatchID    string
	OpponentID string
	RoundID    int
}

// Strategy decides a player's parity choice. Implementations must be safe for
// concurrent use; a player can sit in several matches across rounds.
type Strategy interface {
	Name() string
	ChooseParity(ctx MatchContext) protocol.Parity
}

// RandomStrategy picks even or odd uniformly at random.
type RandomStrategy struct{}

func (RandomStrategy) Name() string { return "random" }

func (RandomStrategy) ChooseParity(MatchContext) protocol.Parity {
	if rand.Intn(2) == 0 {
		return protocol.ParityEven
	}
	return protocol.ParityOdd
}

// FixedStrategy always answers the same parity. Handy for predictable
// opponents in tests and demos.
type FixedStrategy struct {
	Choice protocol.Parity
}

func (s FixedStrategy) Name() string { return "always_" + string(s.Choice) }

func (s FixedStrategy) ChooseParity(MatchContext) protocol.Parity { return s.Choice }

// StrategyByName maps a config value to a strategy, defaulting to random.
func StrategyByName(name string) Strategy {
	switch name {
	case "always_even":
		return FixedStrategy{Choice: protocol.ParityEven}
	case "always_odd":
		return FixedStrategy{Choice: protocol.ParityOdd}
	default:
		return RandomStrategy{}
	}
}
