// internal/auth/session.go
package auth

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// privateKey and publicKey sign and verify seat-resume tokens.
var (
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey

	// TOKEN_EXPIRE_TIME_SEC indicates how many seconds until token expiration (0 => never).
	TOKEN_EXPIRE_TIME_SEC int
)

// SeatClaims identify one seat in one session for reconnection: the
// transport presents a token instead of re-sending name+team.
type SeatClaims struct {
	SessionID uuid.UUID
	SeatIndex int
	Name      string
}

// parseTokenExpireTime reads the TOKEN_EXPIRE_TIME env var and sets TOKEN_EXPIRE_TIME_SEC accordingly.
func parseTokenExpireTime() {
	duration := os.Getenv("TOKEN_EXPIRE_TIME")
	if duration == "never" || duration == "0" || duration == "" {
		TOKEN_EXPIRE_TIME_SEC = 0
	} else {
		d, err := time.ParseDuration(duration)
		if err != nil {
			fmt.Printf("failed to parse token expire time: %v\n", err)
			os.Exit(1)
		}
		TOKEN_EXPIRE_TIME_SEC = int(d.Seconds())
	}
}

// Init generates a fresh ed25519 key pair at runtime and sets the token
// expiration. Tokens issued before a restart become invalid, which is
// acceptable: a stale token degrades to the ordinary join-by-name path.
func Init() {
	var err error
	publicKey, privateKey, err = ed25519.GenerateKey(nil)
	if err != nil {
		fmt.Printf("failed to generate ed25519 key pair: %v\n", err)
		os.Exit(1)
	}
	parseTokenExpireTime()
}

// CreateSeatToken issues a signed token binding a session id, a seat
// index and the player's name.
func CreateSeatToken(sessionID uuid.UUID, seatIndex int, name string) (string, error) {
	claims := jwt.MapClaims{
		"sid":  sessionID.String(),
		"seat": seatIndex,
		"name": name,
	}
	if TOKEN_EXPIRE_TIME_SEC > 0 {
		claims["exp"] = time.Now().Add(time.Duration(TOKEN_EXPIRE_TIME_SEC) * time.Second).Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(privateKey)
}

// VerifySeatToken validates a token and returns its seat claims.
func VerifySeatToken(tokenString string) (SeatClaims, error) {
	t, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodEd25519); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return SeatClaims{}, fmt.Errorf("jwt parse error: %w", err)
	}
	if !t.Valid {
		return SeatClaims{}, fmt.Errorf("invalid token")
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return SeatClaims{}, fmt.Errorf("invalid jwt claims")
	}
	sidStr, _ := claims["sid"].(string)
	sid, err := uuid.Parse(sidStr)
	if err != nil {
		return SeatClaims{}, fmt.Errorf("invalid session id claim: %w", err)
	}
	seatFloat, ok := claims["seat"].(float64)
	if !ok || seatFloat < 0 || seatFloat > 3 {
		return SeatClaims{}, fmt.Errorf("invalid seat claim")
	}
	name, _ := claims["name"].(string)
	if name == "" {
		return SeatClaims{}, fmt.Errorf("missing name claim")
	}

	return SeatClaims{SessionID: sid, SeatIndex: int(seatFloat), Name: name}, nil
}
