// internal/game/errors.go
package game

import "errors"

// Every rejection of a single action maps to exactly one of these
// sentinels. None of them is fatal to the session: validation happens
// before any mutation, so a returned error means the session state is
// untouched.

// Structural join errors.
var (
	ErrInvalidName       = errors.New("player name must start with a letter and be at least 3 characters long")
	ErrDuplicateName     = errors.New("a player with this name is already in the session")
	ErrDuplicateIdentity = errors.New("this connection has already joined the session")
	ErrManagerMustJoin   = errors.New("the session manager must join team 1 first")
	ErrTeamFull          = errors.New("team has reached its capacity")
	ErrInvalidTeamCode   = errors.New("invalid team code")
)

// Turn-order errors.
var (
	ErrRoundNotStarted = errors.New("round has not started yet")
	ErrNotYourTurn     = errors.New("it's not your turn")
)

// Round lifecycle errors.
var (
	ErrRoundAlreadyActive = errors.New("a round is already active")
	ErrNotAllSeatsReady   = errors.New("all four seats must be filled and connected")
)

// Rule violations.
var (
	ErrCardNotInHand   = errors.New("card is not in your hand")
	ErrMustFollowSuit  = errors.New("you must follow the led suit")
	ErrInvalidSuit     = errors.New("invalid trump suit")
	ErrTrumpAlreadySet = errors.New("trump suit has already been set")
	ErrNotLeader       = errors.New("only the hakem may select the trump suit")
)

// Capacity and session-lookup errors.
var (
	ErrCapacityExceeded = errors.New("server reached maximum session capacity, try again later")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSeatNotFound     = errors.New("no seat matches this identity")
)

// Persistence errors.
var (
	ErrTrickInProgress      = errors.New("cannot export state while a trick is in progress")
	ErrInvalidSaveOrPasskey = errors.New("saved game is corrupt or the password is wrong")
)
