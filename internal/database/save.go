// internal/database/save.go
package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Saved-game blobs are stored opaque: the server keeps a copy of every
// exported save so a client that lost its download can re-fetch it, but
// the blob stays encrypted with the player-derived key.
//
//	CREATE TABLE saved_games (
//	    session_id  uuid PRIMARY KEY,
//	    owner_name  text NOT NULL,
//	    blob        text NOT NULL,
//	    updated_at  timestamptz NOT NULL DEFAULT now()
//	);

// UpsertSavedGame stores (or replaces) the encrypted blob for a session.
func UpsertSavedGame(ctx context.Context, sessionID uuid.UUID, ownerName, blob string) error {
	if DB == nil {
		return nil
	}
	q := `
		INSERT INTO saved_games (session_id, owner_name, blob, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (session_id)
		DO UPDATE SET owner_name=$2, blob=$3, updated_at=now()
	`
	if _, err := DB.Exec(ctx, q, sessionID, ownerName, blob); err != nil {
		return fmt.Errorf("upsert saved game %s: %w", sessionID, err)
	}
	return nil
}

// GetSavedGame fetches the stored blob for a session, or "" if none.
func GetSavedGame(ctx context.Context, sessionID uuid.UUID) (string, error) {
	if DB == nil {
		return "", nil
	}
	var blob string
	q := `SELECT blob FROM saved_games WHERE session_id = $1`
	if err := DB.QueryRow(ctx, q, sessionID).Scan(&blob); err != nil {
		return "", fmt.Errorf("fetch saved game %s: %w", sessionID, err)
	}
	return blob, nil
}

// DeleteSavedGame drops the stored blob when a session is destroyed.
func DeleteSavedGame(ctx context.Context, sessionID uuid.UUID) error {
	if DB == nil {
		return nil
	}
	if _, err := DB.Exec(ctx, `DELETE FROM saved_games WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete saved game %s: %w", sessionID, err)
	}
	return nil
}
