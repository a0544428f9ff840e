package league

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// generateAuthToken builds an opaque bearer token for a registered agent,
// e.g. "tok_p01_4q7x...". The random suffix comes from a CSPRNG so tokens are
// not guessable from registration order.
func generateAuthToken(agentID string, length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("league: token generation failed: %w", err)
	}
	var b strings.Builder
	for _, c := range buf {
		b.WriteByte(tokenAlphabet[int(c)%len(tokenAlphabet)])
	}
	return fmt.Sprintf("tok_%s_%s", strings.ToLower(agentID), b.String()), nil
}
