// internal/state/codec.go

// Package state serializes sessions to a flat encrypted record for
// save-and-resume. The key is derived from a player's name with PBKDF2
// over a fixed server-side salt, and the record is encrypted with
// AES-256-CTR under a fixed server-side IV. A wrong password therefore
// doesn't fail decryption, it yields bytes that fail to parse.
package state

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/crypto/pbkdf2"

	"github.com/hokm-live/hokm/internal/game"
)

const (
	pbkdf2Iterations = 100_000
	keyLength        = 32
	ivLength         = 16
)

// Codec encrypts and decrypts session snapshots. Salt and IV are fixed
// per server so any instance can decode any blob it issued.
type Codec struct {
	salt []byte
	iv   []byte
}

// NewCodec reads GAME_STATE_SALT and GAME_STATE_IV (hex) from the
// environment, generating random values when unset. Randomly generated
// values make blobs unreadable across restarts, which is fine for
// development but means production must pin both.
func NewCodec() (*Codec, error) {
	salt, err := hexEnvOrRandom("GAME_STATE_SALT", ivLength)
	if err != nil {
		return nil, err
	}
	iv, err := hexEnvOrRandom("GAME_STATE_IV", ivLength)
	if err != nil {
		return nil, err
	}
	return NewCodecWithSecrets(salt, iv)
}

// NewCodecWithSecrets builds a codec with explicit salt and IV. The IV
// must be one AES block long.
func NewCodecWithSecrets(salt, iv []byte) (*Codec, error) {
	if len(iv) != ivLength {
		return nil, fmt.Errorf("iv must be %d bytes, got %d", ivLength, len(iv))
	}
	return &Codec{salt: salt, iv: iv}, nil
}

// Export serializes the session and encrypts it with a key derived from
// the requesting seat's name. Fails with ErrTrickInProgress when the
// current trick holds 1-3 cards: a mid-trick snapshot could not be
// resumed without corrupting the turn invariants. Returns a hex blob.
func (c *Codec) Export(s *game.Session, requestingIdentity string) (string, error) {
	s.Mu.Lock()
	defer s.Mu.Unlock()

	if s.IsTrickInProgress() {
		return "", game.ErrTrickInProgress
	}
	seatIndex := s.SeatIndexByIdentity(requestingIdentity)
	if seatIndex == -1 {
		return "", game.ErrSeatNotFound
	}

	plain, err := json.Marshal(s.Snapshot())
	if err != nil {
		return "", fmt.Errorf("marshal session snapshot: %w", err)
	}
	encrypted, err := c.applyCTR(plain, s.Players[seatIndex].Name)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(encrypted), nil
}

// Import decrypts a blob with a key derived from claimedName and
// rehydrates the session: same id, codes, hands, scores and history,
// every seat disconnected, claimedName as the new manager. A wrong name
// (or a tampered blob) surfaces as ErrInvalidSaveOrPasskey.
func (c *Codec) Import(blob, claimedName string) (*game.Session, error) {
	encrypted, err := hex.DecodeString(blob)
	if err != nil {
		return nil, game.ErrInvalidSaveOrPasskey
	}
	plain, err := c.applyCTR(encrypted, claimedName)
	if err != nil {
		return nil, err
	}

	var snap game.Snapshot
	if err := json.Unmarshal(plain, &snap); err != nil {
		return nil, game.ErrInvalidSaveOrPasskey
	}
	if snap.SessionID == uuid.Nil || snap.TeamCodes[0] == "" {
		return nil, game.ErrInvalidSaveOrPasskey
	}
	claimantSeated := false
	for _, seat := range snap.Seats {
		if seat.Name == claimedName {
			claimantSeated = true
			break
		}
	}
	if !claimantSeated {
		return nil, game.ErrInvalidSaveOrPasskey
	}

	return game.RestoreSession(snap, claimedName), nil
}

// applyCTR runs AES-256-CTR over data with a password-derived key. CTR
// is symmetric, so the same call encrypts and decrypts.
func (c *Codec) applyCTR(data []byte, password string) ([]byte, error) {
	key := pbkdf2.Key([]byte(password), c.salt, pbkdf2Iterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	out := make([]byte, len(data))
	cipher.NewCTR(block, c.iv).XORKeyStream(out, data)
	return out, nil
}

func hexEnvOrRandom(key string, n int) ([]byte, error) {
	if v := os.Getenv(key); v != "" {
		b, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("%s is not valid hex: %w", key, err)
		}
		return b, nil
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}
