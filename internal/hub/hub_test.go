package hub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/castlegate/chessd/internal/store"
	"github.com/castlegate/chessd/pkg/chess"
	"github.com/castlegate/chessd/pkg/protocol"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []*protocol.ServerMessage
	fail bool
}

func (r *recordingSender) Send(ctx context.Context, msg *protocol.ServerMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("connection closed")
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingSender) all() []*protocol.ServerMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*protocol.ServerMessage, len(r.msgs))
	copy(out, r.msgs)
	return out
}

func (r *recordingSender) reset() {
	r.mu.Lock()
	r.msgs = nil
	r.mu.Unlock()
}

type fixture struct {
	hub    *Hub
	games  store.GameStore
	auths  store.AuthStore
	gameID int
	tokens map[string]string
}

// newFixture builds a hub over memory stores with one game and three
// authenticated users: alice (white seat), bob (black seat), carol
// (no seat).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	games := store.NewMemoryGames()
	auths := store.NewMemoryAuths()

	rec, err := games.Create(ctx, "arena")
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if err := games.Update(ctx, rec, "alice", store.SeatWhite); err != nil {
		t.Fatalf("seat alice: %v", err)
	}
	if err := games.Update(ctx, rec, "bob", store.SeatBlack); err != nil {
		t.Fatalf("seat bob: %v", err)
	}

	tokens := make(map[string]string)
	for _, name := range []string{"alice", "bob", "carol"} {
		token, err := auths.CreateAuth(ctx, name)
		if err != nil {
			t.Fatalf("auth %s: %v", name, err)
		}
		tokens[name] = token
	}
	return &fixture{
		hub:    New(auths, games),
		games:  games,
		auths:  auths,
		gameID: rec.ID,
		tokens: tokens,
	}
}

func (f *fixture) connect(t *testing.T, user string) (*Session, *recordingSender) {
	t.Helper()
	sender := &recordingSender{}
	sess := NewSession(sender)
	f.hub.HandleCommand(context.Background(), sess, &protocol.UserGameCommand{
		CommandType: protocol.CommandConnect,
		AuthToken:   f.tokens[user],
		GameID:      f.gameID,
	})
	msgs := sender.all()
	if len(msgs) == 0 || msgs[0].Type != protocol.MessageLoadGame {
		t.Fatalf("connect %s: got %+v, want LOAD_GAME", user, msgs)
	}
	sender.reset()
	return sess, sender
}

func (f *fixture) command(sess *Session, user string, kind protocol.CommandType, move *chess.Move) {
	f.hub.HandleCommand(context.Background(), sess, &protocol.UserGameCommand{
		CommandType: kind,
		AuthToken:   f.tokens[user],
		GameID:      f.gameID,
		Move:        move,
	})
}

func mv(t *testing.T, from, to string) *chess.Move {
	t.Helper()
	start, err := chess.ParseSquare(from)
	if err != nil {
		t.Fatalf("parse %s: %v", from, err)
	}
	end, err := chess.ParseSquare(to)
	if err != nil {
		t.Fatalf("parse %s: %v", to, err)
	}
	return &chess.Move{Start: start, End: end}
}

func onlyError(t *testing.T, sender *recordingSender) string {
	t.Helper()
	msgs := sender.all()
	if len(msgs) != 1 || msgs[0].Type != protocol.MessageError {
		t.Fatalf("got %+v, want a single ERROR", msgs)
	}
	return msgs[0].ErrorMessage
}

func TestInvalidAuthorization(t *testing.T) {
	f := newFixture(t)
	sender := &recordingSender{}
	sess := NewSession(sender)

	f.hub.HandleCommand(context.Background(), sess, &protocol.UserGameCommand{
		CommandType: protocol.CommandConnect,
		AuthToken:   "bogus",
		GameID:      f.gameID,
	})
	if msg := onlyError(t, sender); !strings.Contains(msg, "invalid authorization") {
		t.Fatalf("error = %q", msg)
	}
}

func TestCommandBeforeConnect(t *testing.T) {
	f := newFixture(t)
	sender := &recordingSender{}
	sess := NewSession(sender)

	f.command(sess, "alice", protocol.CommandMakeMove, mv(t, "e2", "e4"))
	if msg := onlyError(t, sender); !strings.Contains(msg, "not connected") {
		t.Fatalf("error = %q", msg)
	}
}

func TestConnectUnknownGame(t *testing.T) {
	f := newFixture(t)
	sender := &recordingSender{}
	sess := NewSession(sender)

	f.hub.HandleCommand(context.Background(), sess, &protocol.UserGameCommand{
		CommandType: protocol.CommandConnect,
		AuthToken:   f.tokens["alice"],
		GameID:      999,
	})
	if msg := onlyError(t, sender); !strings.Contains(msg, "game not found") {
		t.Fatalf("error = %q", msg)
	}
}

func TestJoinBroadcast(t *testing.T) {
	f := newFixture(t)
	_, bobOut := f.connect(t, "bob")

	aliceSender := &recordingSender{}
	aliceSess := NewSession(aliceSender)
	f.hub.HandleCommand(context.Background(), aliceSess, &protocol.UserGameCommand{
		CommandType: protocol.CommandConnect,
		AuthToken:   f.tokens["alice"],
		GameID:      f.gameID,
	})

	aliceMsgs := aliceSender.all()
	if len(aliceMsgs) != 1 || aliceMsgs[0].Type != protocol.MessageLoadGame {
		t.Fatalf("alice got %+v, want LOAD_GAME only", aliceMsgs)
	}
	bobMsgs := bobOut.all()
	if len(bobMsgs) != 1 || bobMsgs[0].Type != protocol.MessageNotification {
		t.Fatalf("bob got %+v, want one NOTIFICATION", bobMsgs)
	}
	if want := "alice has joined the game as white"; bobMsgs[0].Message != want {
		t.Fatalf("notification = %q, want %q", bobMsgs[0].Message, want)
	}
}

func TestObserverJoinRole(t *testing.T) {
	f := newFixture(t)
	_, bobOut := f.connect(t, "bob")
	f.connect(t, "carol")

	bobMsgs := bobOut.all()
	if len(bobMsgs) != 1 {
		t.Fatalf("bob got %+v", bobMsgs)
	}
	if want := "carol has joined the game as observer"; bobMsgs[0].Message != want {
		t.Fatalf("notification = %q, want %q", bobMsgs[0].Message, want)
	}
}

func TestMoveBroadcastOrdering(t *testing.T) {
	f := newFixture(t)
	aliceSess, aliceOut := f.connect(t, "alice")
	_, bobOut := f.connect(t, "bob")
	aliceOut.reset() // drop bob's join notification

	f.command(aliceSess, "alice", protocol.CommandMakeMove, mv(t, "e2", "e4"))

	for name, out := range map[string]*recordingSender{"alice": aliceOut, "bob": bobOut} {
		msgs := out.all()
		if len(msgs) < 2 {
			t.Fatalf("%s got %d messages, want at least 2", name, len(msgs))
		}
		if msgs[0].Type != protocol.MessageLoadGame {
			t.Fatalf("%s: first message is %s, want LOAD_GAME", name, msgs[0].Type)
		}
		if msgs[1].Type != protocol.MessageNotification {
			t.Fatalf("%s: second message is %s, want NOTIFICATION", name, msgs[1].Type)
		}
		if !strings.Contains(msgs[1].Message, "e2e4") {
			t.Fatalf("%s: narration = %q", name, msgs[1].Message)
		}
		loads := 0
		for _, m := range msgs {
			if m.Type == protocol.MessageLoadGame {
				loads++
			}
		}
		if loads != 1 {
			t.Fatalf("%s received LOAD_GAME %d times, want exactly once", name, loads)
		}
	}
}

func TestMovePersists(t *testing.T) {
	f := newFixture(t)
	aliceSess, _ := f.connect(t, "alice")

	f.command(aliceSess, "alice", protocol.CommandMakeMove, mv(t, "e2", "e4"))

	rec, err := f.games.Get(context.Background(), f.gameID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Game.TurnColor() != chess.Black {
		t.Fatalf("persisted turn = %v, want BLACK", rec.Game.TurnColor())
	}
}

func TestMoveRejections(t *testing.T) {
	f := newFixture(t)
	aliceSess, aliceOut := f.connect(t, "alice")
	bobSess, bobOut := f.connect(t, "bob")
	carolSess, carolOut := f.connect(t, "carol")
	aliceOut.reset()
	bobOut.reset()
	carolOut.reset()

	// Observer moving.
	f.command(carolSess, "carol", protocol.CommandMakeMove, mv(t, "e2", "e4"))
	if msg := onlyError(t, carolOut); !strings.Contains(msg, "not your turn") {
		t.Fatalf("observer move error = %q", msg)
	}
	carolOut.reset()

	// Black moving on white's turn.
	f.command(bobSess, "bob", protocol.CommandMakeMove, mv(t, "e7", "e5"))
	if msg := onlyError(t, bobOut); !strings.Contains(msg, "not your turn") {
		t.Fatalf("out of turn error = %q", msg)
	}
	bobOut.reset()

	// White moving a black piece.
	f.command(aliceSess, "alice", protocol.CommandMakeMove, mv(t, "e7", "e5"))
	if msg := onlyError(t, aliceOut); !strings.Contains(msg, "not your piece") {
		t.Fatalf("wrong piece error = %q", msg)
	}
	aliceOut.reset()

	// Geometrically impossible move.
	f.command(aliceSess, "alice", protocol.CommandMakeMove, mv(t, "e2", "e6"))
	if msg := onlyError(t, aliceOut); !strings.Contains(msg, "invalid move") {
		t.Fatalf("illegal move error = %q", msg)
	}

	// No rejected command mutated the game.
	rec, err := f.games.Get(context.Background(), f.gameID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Game.TurnColor() != chess.White {
		t.Fatalf("turn = %v after rejected moves, want WHITE", rec.Game.TurnColor())
	}
	// Errors never reached the other subscribers.
	if msgs := bobOut.all(); len(msgs) != 0 {
		t.Fatalf("bob got %+v during rejected moves", msgs)
	}
}

func TestCheckNotification(t *testing.T) {
	f := newFixture(t)
	aliceSess, _ := f.connect(t, "alice")
	bobSess, bobOut := f.connect(t, "bob")

	f.command(aliceSess, "alice", protocol.CommandMakeMove, mv(t, "e2", "e4"))
	f.command(bobSess, "bob", protocol.CommandMakeMove, mv(t, "f7", "f6"))
	bobOut.reset()
	// Qh5+ checks the black king through the hole on f6.
	f.command(aliceSess, "alice", protocol.CommandMakeMove, mv(t, "d1", "h5"))

	var sawCheck bool
	for _, m := range bobOut.all() {
		if m.Type == protocol.MessageNotification && strings.Contains(m.Message, "bob is in check") {
			sawCheck = true
		}
	}
	if !sawCheck {
		t.Fatalf("no check notification in %+v", bobOut.all())
	}
}

func TestCheckmateNotificationAndLatch(t *testing.T) {
	f := newFixture(t)
	aliceSess, aliceOut := f.connect(t, "alice")
	bobSess, _ := f.connect(t, "bob")

	// Fool's mate: black checkmates white on move two.
	f.command(aliceSess, "alice", protocol.CommandMakeMove, mv(t, "f2", "f3"))
	f.command(bobSess, "bob", protocol.CommandMakeMove, mv(t, "e7", "e5"))
	f.command(aliceSess, "alice", protocol.CommandMakeMove, mv(t, "g2", "g4"))
	aliceOut.reset()
	f.command(bobSess, "bob", protocol.CommandMakeMove, mv(t, "d8", "h4"))

	var sawMate bool
	for _, m := range aliceOut.all() {
		if m.Type == protocol.MessageNotification && strings.Contains(m.Message, "alice has been checkmated") {
			sawMate = true
		}
	}
	if !sawMate {
		t.Fatalf("no checkmate notification in %+v", aliceOut.all())
	}

	rec, err := f.games.Get(context.Background(), f.gameID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Game.Turn() != chess.TurnGameOver {
		t.Fatalf("persisted turn = %v, want GAME_OVER", rec.Game.Turn())
	}

	// Any further move is refused.
	aliceOut.reset()
	f.command(aliceSess, "alice", protocol.CommandMakeMove, mv(t, "a2", "a3"))
	if msg := onlyError(t, aliceOut); !strings.Contains(msg, "game is over") {
		t.Fatalf("post-mate move error = %q", msg)
	}
}

func TestResignBroadcastsToAll(t *testing.T) {
	f := newFixture(t)
	aliceSess, aliceOut := f.connect(t, "alice")
	_, bobOut := f.connect(t, "bob")
	aliceOut.reset()
	bobOut.reset()

	f.command(aliceSess, "alice", protocol.CommandResign, nil)

	for name, out := range map[string]*recordingSender{"alice": aliceOut, "bob": bobOut} {
		msgs := out.all()
		if len(msgs) != 1 || msgs[0].Type != protocol.MessageNotification {
			t.Fatalf("%s got %+v, want one NOTIFICATION", name, msgs)
		}
		if want := "alice has resigned"; msgs[0].Message != want {
			t.Fatalf("%s notification = %q, want %q", name, msgs[0].Message, want)
		}
	}

	rec, err := f.games.Get(context.Background(), f.gameID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !rec.Game.Over() {
		t.Fatal("resignation did not latch the game")
	}
}

func TestResignObserverRefused(t *testing.T) {
	f := newFixture(t)
	carolSess, carolOut := f.connect(t, "carol")

	f.command(carolSess, "carol", protocol.CommandResign, nil)
	if msg := onlyError(t, carolOut); !strings.Contains(msg, "observers cannot resign") {
		t.Fatalf("error = %q", msg)
	}
	rec, err := f.games.Get(context.Background(), f.gameID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Game.Over() {
		t.Fatal("observer resign latched the game")
	}
}

func TestLeaveVacatesSeatAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	aliceSess, aliceOut := f.connect(t, "alice")
	_, bobOut := f.connect(t, "bob")
	aliceOut.reset()
	bobOut.reset()

	f.command(aliceSess, "alice", protocol.CommandLeave, nil)

	rec, err := f.games.Get(context.Background(), f.gameID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.WhiteUsername != "" {
		t.Fatalf("white seat = %q after leave, want empty", rec.WhiteUsername)
	}
	bobMsgs := bobOut.all()
	if len(bobMsgs) != 1 || bobMsgs[0].Message != "alice has left" {
		t.Fatalf("bob got %+v", bobMsgs)
	}
	if msgs := aliceOut.all(); len(msgs) != 0 {
		t.Fatalf("leaver got %+v, want nothing", msgs)
	}

	// Repeating LEAVE is a silent no-op.
	bobOut.reset()
	f.command(aliceSess, "alice", protocol.CommandLeave, nil)
	if msgs := aliceOut.all(); len(msgs) != 0 {
		t.Fatalf("second leave replied %+v", msgs)
	}
	if msgs := bobOut.all(); len(msgs) != 0 {
		t.Fatalf("second leave broadcast %+v", msgs)
	}
}

func TestGameContinuesAfterLeave(t *testing.T) {
	f := newFixture(t)
	aliceSess, _ := f.connect(t, "alice")
	f.command(aliceSess, "alice", protocol.CommandLeave, nil)

	// The vacated seat can be claimed by someone else.
	ctx := context.Background()
	rec, err := f.games.Get(ctx, f.gameID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := f.games.Update(ctx, rec, "carol", store.SeatWhite); err != nil {
		t.Fatalf("reseat: %v", err)
	}
	carolSess, carolOut := f.connect(t, "carol")
	f.command(carolSess, "carol", protocol.CommandMakeMove, mv(t, "e2", "e4"))
	msgs := carolOut.all()
	if len(msgs) == 0 || msgs[0].Type != protocol.MessageLoadGame {
		t.Fatalf("carol got %+v, want LOAD_GAME", msgs)
	}
}

func TestFailedSendEvictsSession(t *testing.T) {
	f := newFixture(t)
	aliceSess, _ := f.connect(t, "alice")
	_, bobOut := f.connect(t, "bob")
	bobOut.mu.Lock()
	bobOut.fail = true
	bobOut.mu.Unlock()

	f.command(aliceSess, "alice", protocol.CommandMakeMove, mv(t, "e2", "e4"))

	subs := f.hub.registry.Subscribers(f.gameID)
	for _, s := range subs {
		if s != aliceSess {
			t.Fatalf("dead session still registered")
		}
	}
	if len(subs) != 1 {
		t.Fatalf("registry has %d sessions, want 1", len(subs))
	}
}

func TestDisconnectEvictsWithoutTouchingSeats(t *testing.T) {
	f := newFixture(t)
	aliceSess, _ := f.connect(t, "alice")

	f.hub.Disconnect(aliceSess)

	if subs := f.hub.registry.Subscribers(f.gameID); len(subs) != 0 {
		t.Fatalf("registry has %d sessions after disconnect", len(subs))
	}
	rec, err := f.games.Get(context.Background(), f.gameID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.WhiteUsername != "alice" {
		t.Fatalf("disconnect vacated the seat: %q", rec.WhiteUsername)
	}
	// Disconnecting twice is safe.
	f.hub.Disconnect(aliceSess)
}
