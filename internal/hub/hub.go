// Package hub couples the rules engine to the stores and fans game
// state out to every session watching a game.
package hub

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/castlegate/chessd/internal/obslog"
	"github.com/castlegate/chessd/internal/store"
	"github.com/castlegate/chessd/pkg/chess"
	"github.com/castlegate/chessd/pkg/model"
	"github.com/castlegate/chessd/pkg/protocol"
)

// Role is a session's relation to a game, derived from the record's
// seats at the time of inspection.
type Role string

const (
	RoleWhite    Role = "white"
	RoleBlack    Role = "black"
	RoleObserver Role = "observer"
)

// Hub dispatches websocket commands. All mutations of one game are
// serialized by a per-game mutex held from dispatch until just before
// the broadcast.
type Hub struct {
	auths    store.AuthStore
	games    store.GameStore
	registry *Registry

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func New(auths store.AuthStore, games store.GameStore) *Hub {
	return &Hub{
		auths:    auths,
		games:    games,
		registry: NewRegistry(),
		locks:    make(map[int]*sync.Mutex),
	}
}

func (h *Hub) gameLock(gameID int) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()
	l, ok := h.locks[gameID]
	if !ok {
		l = &sync.Mutex{}
		h.locks[gameID] = l
	}
	return l
}

// delivery is the outbound plan assembled under the game lock and
// executed after it is released.
type delivery struct {
	toOrigin []*protocol.ServerMessage
	toOthers []*protocol.ServerMessage
}

// HandleCommand processes one inbound frame. Errors are reported to
// the originating session only; a nil return means the command was
// fully handled, including any error reply.
func (h *Hub) HandleCommand(ctx context.Context, sess *Session, cmd *protocol.UserGameCommand) {
	username, err := h.auths.GetAuth(ctx, cmd.AuthToken)
	if err != nil {
		h.sendError(ctx, sess, "invalid authorization")
		return
	}

	// LEAVE stays a silent no-op on an unbound session so repeating it
	// is always safe.
	_, _, joined := sess.binding()
	if cmd.CommandType == protocol.CommandLeave && !joined {
		return
	}
	if cmd.CommandType != protocol.CommandConnect && !joined {
		h.sendError(ctx, sess, "not connected to a game")
		return
	}

	lock := h.gameLock(cmd.GameID)
	lock.Lock()

	var plan *delivery
	switch cmd.CommandType {
	case protocol.CommandConnect:
		plan, err = h.connect(ctx, sess, username, cmd.GameID)
	case protocol.CommandMakeMove:
		plan, err = h.makeMove(ctx, sess, username, cmd)
	case protocol.CommandResign:
		plan, err = h.resign(ctx, username, cmd.GameID)
	case protocol.CommandLeave:
		plan, err = h.leave(ctx, sess, username, cmd.GameID)
	default:
		err = fmt.Errorf("unknown command %q", cmd.CommandType)
	}
	lock.Unlock()

	if err != nil {
		h.sendError(ctx, sess, err.Error())
		return
	}
	if plan != nil {
		h.broadcast(ctx, sess, cmd.GameID, plan)
	}
}

// Disconnect evicts a session after its websocket dies. Seats are left
// untouched; a seated player who vanishes can reconnect.
func (h *Hub) Disconnect(sess *Session) {
	username, gameID, joined := sess.binding()
	if !joined {
		return
	}
	sess.unbind()
	h.registry.Remove(gameID, sess)
	obslog.L().Debug("ws_disconnect",
		zap.Int("game_id", gameID), zap.String("username", username))
}

func (h *Hub) connect(ctx context.Context, sess *Session, username string, gameID int) (*delivery, error) {
	rec, err := h.games.Get(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("game not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}

	_, prevGame, wasJoined := sess.binding()
	rejoin := wasJoined && prevGame == gameID
	if wasJoined && !rejoin {
		h.registry.Remove(prevGame, sess)
	}
	sess.bind(username, gameID)
	h.registry.Add(gameID, sess)

	plan := &delivery{toOrigin: []*protocol.ServerMessage{protocol.LoadGame(rec)}}
	if !rejoin {
		role := roleOf(rec, username)
		plan.toOthers = []*protocol.ServerMessage{
			protocol.Notification(fmt.Sprintf("%s has joined the game as %s", username, role)),
		}
	}
	obslog.L().Info("ws_connect",
		zap.Int("game_id", gameID),
		zap.String("username", username),
		zap.String("role", string(roleOf(rec, username))))
	return plan, nil
}

func (h *Hub) makeMove(ctx context.Context, sess *Session, username string, cmd *protocol.UserGameCommand) (*delivery, error) {
	if cmd.Move == nil {
		return nil, errors.New("missing move")
	}
	rec, err := h.games.Get(ctx, cmd.GameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("game not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	if rec.Game.Over() {
		return nil, errors.New("game is over")
	}

	role := roleOf(rec, username)
	mover := rec.Game.TurnColor()
	if role == RoleObserver || Role(strings.ToLower(string(mover))) != role {
		return nil, errors.New("not your turn")
	}
	piece := rec.Game.Board().At(cmd.Move.Start)
	if piece.IsEmpty() || piece.Color != mover {
		return nil, errors.New("not your piece")
	}

	if err := rec.Game.MakeMove(*cmd.Move); err != nil {
		switch {
		case errors.Is(err, chess.ErrGameOver):
			return nil, errors.New("game is over")
		case errors.Is(err, chess.ErrWrongTurn):
			return nil, errors.New("not your turn")
		default:
			return nil, errors.New("invalid move")
		}
	}
	if err := h.games.Update(ctx, rec, "", store.SeatNone); err != nil {
		return nil, fmt.Errorf("persist game: %w", err)
	}

	load := protocol.LoadGame(rec)
	narration := []*protocol.ServerMessage{
		protocol.Notification(fmt.Sprintf("%s moved %s", username, cmd.Move.Describe())),
	}
	opponent := mover.Opponent()
	switch {
	case rec.Game.InCheckmate(opponent):
		narration = append(narration,
			protocol.Notification(fmt.Sprintf("%s has been checkmated", seatName(rec, opponent))))
	case rec.Game.InStalemate(opponent):
		narration = append(narration,
			protocol.Notification(fmt.Sprintf("%s has been stalemated", seatName(rec, opponent))))
	case rec.Game.InCheck(opponent):
		narration = append(narration,
			protocol.Notification(fmt.Sprintf("%s is in check", seatName(rec, opponent))))
	}

	obslog.L().Info("move_applied",
		zap.Int("game_id", cmd.GameID),
		zap.String("username", username),
		zap.String("move", cmd.Move.Describe()),
		zap.String("turn", string(rec.Game.Turn())))
	return &delivery{
		toOrigin: append([]*protocol.ServerMessage{load}, narration...),
		toOthers: append([]*protocol.ServerMessage{load}, narration...),
	}, nil
}

func (h *Hub) resign(ctx context.Context, username string, gameID int) (*delivery, error) {
	rec, err := h.games.Get(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("game not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	if roleOf(rec, username) == RoleObserver {
		return nil, errors.New("observers cannot resign")
	}
	if rec.Game.Over() {
		return nil, errors.New("game is over")
	}

	rec.Game.EndGame()
	if err := h.games.Update(ctx, rec, "", store.SeatGameOver); err != nil {
		return nil, fmt.Errorf("persist game: %w", err)
	}

	msg := protocol.Notification(fmt.Sprintf("%s has resigned", username))
	obslog.L().Info("game_resigned",
		zap.Int("game_id", gameID), zap.String("username", username))
	return &delivery{
		toOrigin: []*protocol.ServerMessage{msg},
		toOthers: []*protocol.ServerMessage{msg},
	}, nil
}

func (h *Hub) leave(ctx context.Context, sess *Session, username string, gameID int) (*delivery, error) {
	rec, err := h.games.Get(ctx, gameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errors.New("game not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}

	var seat store.Seat
	switch username {
	case rec.WhiteUsername:
		seat = store.SeatWhite
	case rec.BlackUsername:
		seat = store.SeatBlack
	}
	if seat != store.SeatNone && seat != "" {
		if err := h.games.Update(ctx, rec, "", seat); err != nil {
			return nil, fmt.Errorf("vacate seat: %w", err)
		}
	}

	sess.unbind()
	h.registry.Remove(gameID, sess)
	obslog.L().Info("ws_leave",
		zap.Int("game_id", gameID), zap.String("username", username))
	return &delivery{
		toOthers: []*protocol.ServerMessage{
			protocol.Notification(fmt.Sprintf("%s has left", username)),
		},
	}, nil
}

// broadcast delivers a plan to the current subscriber snapshot. Each
// recipient gets its messages in order; a failed send evicts the
// session.
func (h *Hub) broadcast(ctx context.Context, origin *Session, gameID int, plan *delivery) {
	originSeen := false
	for _, s := range h.registry.Subscribers(gameID) {
		msgs := plan.toOthers
		if s == origin {
			msgs = plan.toOrigin
			originSeen = true
		}
		for _, msg := range msgs {
			if err := s.send(ctx, msg); err != nil {
				h.registry.Remove(gameID, s)
				obslog.L().Debug("session_evicted",
					zap.Int("game_id", gameID), zap.Error(err))
				break
			}
		}
	}
	// An origin outside the registry (it just left, or was evicted
	// earlier) still gets its replies exactly once.
	if origin != nil && !originSeen {
		for _, msg := range plan.toOrigin {
			if err := origin.send(ctx, msg); err != nil {
				break
			}
		}
	}
}

func (h *Hub) sendError(ctx context.Context, sess *Session, reason string) {
	if err := sess.send(ctx, protocol.Error(reason)); err != nil {
		obslog.L().Debug("error_send_failed", zap.Error(err))
	}
}

func roleOf(rec *model.GameRecord, username string) Role {
	switch username {
	case rec.WhiteUsername:
		if username != "" {
			return RoleWhite
		}
	case rec.BlackUsername:
		if username != "" {
			return RoleBlack
		}
	}
	return RoleObserver
}

// seatName names a side for narration: the seated player's username,
// or the color itself when the seat is empty.
func seatName(rec *model.GameRecord, c chess.Color) string {
	name := rec.WhiteUsername
	if c == chess.Black {
		name = rec.BlackUsername
	}
	if name == "" {
		return strings.ToLower(string(c))
	}
	return name
}
