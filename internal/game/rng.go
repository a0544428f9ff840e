// Package game implements the even/odd game itself: the cryptographic number
// draw, winner determination, and the per-match state machine that keeps a
// referee's orchestration honest.
package game

import (
	"crypto/rand"
	"math/big"
)

// DrawNumber returns a uniformly random integer in [1, 10].
//
// The draw uses crypto/rand rather than a seeded PRNG: outcomes must be
// unpredictable and non-replayable to either player, since a player who could
// anticipate the draw would win every match.
func DrawNumber() int {
	n, err := rand.Int(rand.Reader, big.NewInt(10))
	if err != nil {
		// crypto/rand failing means the OS entropy source is broken;
		// there is no meaningful fallback for a fairness-critical draw.
		panic("game: crypto rand unavailable: " + err.Error())
	}
	return int(n.Int64()) + 1
}
