package game

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// CrashPoint derives the crash multiplier for a round from its seed pair and
// nonce. The derivation is deterministic so players can recompute it after the
// server seed is revealed; unpredictability comes from the server seed itself.
//
// HMAC-SHA256(serverSeed, clientSeed:nonce) yields a uniform 64-bit value,
// mapped to r in (0, 1]. The 1/r transform makes the probability of busting
// above any multiplier m proportional to 1/m, with houseEdge shaving the
// operator's cut. The result is rounded to 2 decimals and clamped to
// [minMult, maxMult].
func CrashPoint(serverSeed, clientSeed string, nonce int, houseEdge, minMult, maxMult float64) float64 {
	data := fmt.Sprintf("%s:%d", clientSeed, nonce)
	h := hmac.New(sha256.New, []byte(serverSeed))
	h.Write([]byte(data))
	hashBytes := h.Sum(nil)

	// First 8 bytes as uint64, mapped to (0, 1]: +1 excludes zero, which
	// would blow up the 1/r transform.
	u := binary.BigEndian.Uint64(hashBytes[:8])
	const maxUint64F = 18446744073709551616.0 // 2^64
	r := (float64(u) + 1.0) / maxUint64F

	raw := (1.0 - houseEdge) / r
	crash := math.Round(raw*100) / 100

	if crash < minMult {
		return minMult
	}
	if crash > maxMult {
		return maxMult
	}
	return crash
}

// GenerateSeed creates a cryptographically secure random seed
func GenerateSeed() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// HashCommitment creates a SHA256 hash of the seed for commitment
func HashCommitment(seed string) string {
	h := sha256.New()
	h.Write([]byte(seed))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyCommitment checks that a revealed server seed matches the commitment
// published before the round started.
func VerifyCommitment(serverSeed, commitment string) bool {
	return HashCommitment(serverSeed) == commitment
}

// VerifyCrashPoint allows players to verify the fairness of a crashed round.
func VerifyCrashPoint(serverSeed, clientSeed string, nonce int, houseEdge, minMult, maxMult, claimed float64) bool {
	calculated := CrashPoint(serverSeed, clientSeed, nonce, houseEdge, minMult, maxMult)
	diff := calculated - claimed
	if diff < 0 {
		diff = -diff
	}
	return diff < 0.01
}
