// internal/game/teamcode.go
package game

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

const teamCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const teamCodeLength = 6

// DeriveTeamCode deterministically derives a 6-character alphanumeric
// invite code from a seed (session id + team discriminator). The same
// seed always yields the same code, so codes can be re-derived and
// verified without a lookup table.
func DeriveTeamCode(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	hexDigest := hex.EncodeToString(sum[:])

	code := make([]byte, teamCodeLength)
	for i := 0; i < teamCodeLength; i++ {
		segment := hexDigest[i*2 : i*2+2]
		n, _ := strconv.ParseUint(segment, 16, 8)
		code[i] = teamCodeAlphabet[int(n)%len(teamCodeAlphabet)]
	}
	return string(code)
}
