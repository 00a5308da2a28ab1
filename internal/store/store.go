// Package store persists games, auth tokens and users. Backends are
// pluggable: in-memory maps, Postgres, and (for auth tokens) Redis.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/castlegate/chessd/pkg/model"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrAlreadyTaken = errors.New("already taken")
)

// Seat selects which part of a game record an Update rewrites: one of
// the player seats, the terminal latch, or (SeatNone) the game body.
type Seat string

const (
	SeatWhite    Seat = "WHITE"
	SeatBlack    Seat = "BLACK"
	SeatGameOver Seat = "GAME_OVER"
	SeatNone     Seat = ""
)

// GameStore is the catalog of games. Ids are monotonic and never reused.
type GameStore interface {
	// Create allocates the next id and a fresh game in the opening
	// position with both seats empty.
	Create(ctx context.Context, name string) (*model.GameRecord, error)
	Get(ctx context.Context, id int) (*model.GameRecord, error)
	// List returns catalog entries without game bodies.
	List(ctx context.Context) ([]model.GameInfo, error)
	// Update atomically replaces part of the stored record. SeatWhite
	// and SeatBlack rewrite that seat to actingUser (empty clears it);
	// SeatGameOver and SeatNone persist the game body.
	Update(ctx context.Context, rec *model.GameRecord, actingUser string, seat Seat) error
	Clear(ctx context.Context) error
}

// AuthStore maps bearer tokens to usernames.
type AuthStore interface {
	CreateAuth(ctx context.Context, username string) (string, error)
	// GetAuth returns the username for a token, or ErrNotFound.
	GetAuth(ctx context.Context, token string) (string, error)
	DeleteAuth(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// UserStore holds registered users with hashed passwords.
type UserStore interface {
	// CreateUser returns ErrAlreadyTaken when the username exists.
	CreateUser(ctx context.Context, user *model.UserRecord) error
	GetUser(ctx context.Context, username string) (*model.UserRecord, error)
	Clear(ctx context.Context) error
}

// NewToken returns a fresh opaque bearer token (UUIDv4, 122 random
// bits).
func NewToken() string { return uuid.NewString() }
