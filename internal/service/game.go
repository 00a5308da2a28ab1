package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/castlegate/chessd/internal/obslog"
	"github.com/castlegate/chessd/internal/store"
	"github.com/castlegate/chessd/pkg/chess"
	"github.com/castlegate/chessd/pkg/model"
)

// GameService handles the game catalog: create, list, join.
type GameService struct {
	games store.GameStore
}

func NewGameService(games store.GameStore) *GameService {
	return &GameService{games: games}
}

func (s *GameService) Create(ctx context.Context, name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, fmt.Errorf("%w: empty game name", ErrBadRequest)
	}
	rec, err := s.games.Create(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("create game: %w", err)
	}
	obslog.L().Info("game_created", zap.Int("game_id", rec.ID), zap.String("name", name))
	return rec.ID, nil
}

func (s *GameService) List(ctx context.Context) ([]model.GameInfo, error) {
	infos, err := s.games.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	return infos, nil
}

// Join seats username at the requested color. Joining a seat the user
// already holds is a no-op; a seat held by someone else is
// ErrAlreadyTaken, an unknown game or bad color ErrBadRequest.
func (s *GameService) Join(ctx context.Context, username string, color chess.Color, gameID int) error {
	var seat store.Seat
	switch color {
	case chess.White:
		seat = store.SeatWhite
	case chess.Black:
		seat = store.SeatBlack
	default:
		return fmt.Errorf("%w: bad player color", ErrBadRequest)
	}
	rec, err := s.games.Get(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: unknown game", ErrBadRequest)
	}
	if err != nil {
		return fmt.Errorf("get game: %w", err)
	}
	occupant := rec.WhiteUsername
	if seat == store.SeatBlack {
		occupant = rec.BlackUsername
	}
	if occupant == username {
		return nil
	}
	if occupant != "" {
		return ErrAlreadyTaken
	}
	if err := s.games.Update(ctx, rec, username, seat); err != nil {
		return fmt.Errorf("claim seat: %w", err)
	}
	obslog.L().Info("seat_claimed",
		zap.Int("game_id", gameID),
		zap.String("username", username),
		zap.String("color", string(color)))
	return nil
}

// Clear wipes all persistent state. Used by tests and the admin endpoint.
func Clear(ctx context.Context, games store.GameStore, auths store.AuthStore, users store.UserStore) error {
	if err := games.Clear(ctx); err != nil {
		return fmt.Errorf("clear games: %w", err)
	}
	if err := auths.Clear(ctx); err != nil {
		return fmt.Errorf("clear auths: %w", err)
	}
	if err := users.Clear(ctx); err != nil {
		return fmt.Errorf("clear users: %w", err)
	}
	obslog.L().Warn("database_cleared")
	return nil
}
