// Package fingerprint computes the canonical identity of a trade loop
// (§3 Data Model, Trade loop): a SHA-256 digest over the
// lexicographically minimal rotation of the loop's (wallet, nft)
// sequence. Two cyclic rotations of the same loop hash identically; a
// reversed loop does not (§8 invariant 7), since reversal changes which
// wallet gives which nft on each step.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rawblock/barter-engine/pkg/models"
)

// Compute returns the hex-encoded fingerprint for steps.
func Compute(steps []models.LoopStep) string {
	if len(steps) == 0 {
		return ""
	}

	best := canonicalString(steps, 0)
	for rotation := 1; rotation < len(steps); rotation++ {
		candidate := canonicalString(steps, rotation)
		if candidate < best {
			best = candidate
		}
	}

	sum := sha256.Sum256([]byte(best))
	return hex.EncodeToString(sum[:])
}

// canonicalString serializes steps starting at the given rotation as
// "from:nft|from:nft|...", preserving step order (direction) so a
// reversed loop serializes differently.
func canonicalString(steps []models.LoopStep, rotation int) string {
	n := len(steps)
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		s := steps[(rotation+i)%n]
		parts[i] = s.From + ":" + s.NFT
	}
	return strings.Join(parts, "|")
}
