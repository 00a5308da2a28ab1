package store

import (
	"context"
	"errors"
	"testing"

	"github.com/castlegate/chessd/pkg/chess"
	"github.com/castlegate/chessd/pkg/model"
)

func TestMemoryGamesCreateAssignsMonotonicIDs(t *testing.T) {
	games := NewMemoryGames()
	ctx := context.Background()

	first, err := games.Create(ctx, "first")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := games.Create(ctx, "second")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID != 1 || second.ID != 2 {
		t.Fatalf("ids = %d, %d, want 1, 2", first.ID, second.ID)
	}
	if first.Game == nil || first.Game.TurnColor() != chess.White {
		t.Fatalf("new game should start with white to move")
	}
	if first.WhiteUsername != "" || first.BlackUsername != "" {
		t.Fatalf("new game should have empty seats")
	}
}

func TestMemoryGamesSeatUpdates(t *testing.T) {
	games := NewMemoryGames()
	ctx := context.Background()

	rec, err := games.Create(ctx, "seats")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := games.Update(ctx, rec, "alice", SeatWhite); err != nil {
		t.Fatalf("claim white: %v", err)
	}
	if err := games.Update(ctx, rec, "bob", SeatBlack); err != nil {
		t.Fatalf("claim black: %v", err)
	}
	got, err := games.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.WhiteUsername != "alice" || got.BlackUsername != "bob" {
		t.Fatalf("seats = %q, %q, want alice, bob", got.WhiteUsername, got.BlackUsername)
	}

	// An empty acting user vacates the seat.
	if err := games.Update(ctx, rec, "", SeatWhite); err != nil {
		t.Fatalf("vacate white: %v", err)
	}
	got, err = games.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.WhiteUsername != "" {
		t.Fatalf("white seat = %q, want empty", got.WhiteUsername)
	}
}

func TestMemoryGamesUpdatePersistsBody(t *testing.T) {
	games := NewMemoryGames()
	ctx := context.Background()

	rec, err := games.Create(ctx, "body")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	move := chess.Move{
		Start: chess.Position{Row: 2, Col: 5},
		End:   chess.Position{Row: 4, Col: 5},
	}
	if err := rec.Game.MakeMove(move); err != nil {
		t.Fatalf("make move: %v", err)
	}
	if err := games.Update(ctx, rec, "", SeatNone); err != nil {
		t.Fatalf("persist body: %v", err)
	}
	got, err := games.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Game.TurnColor() != chess.Black {
		t.Fatalf("turn = %v, want BLACK after one move", got.Game.TurnColor())
	}
}

func TestMemoryGamesGetReturnsCopies(t *testing.T) {
	games := NewMemoryGames()
	ctx := context.Background()

	rec, err := games.Create(ctx, "isolated")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := games.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Mutating the returned record must not leak into the store.
	got.WhiteUsername = "mallory"
	move := chess.Move{
		Start: chess.Position{Row: 2, Col: 5},
		End:   chess.Position{Row: 3, Col: 5},
	}
	if err := got.Game.MakeMove(move); err != nil {
		t.Fatalf("make move: %v", err)
	}

	fresh, err := games.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if fresh.WhiteUsername != "" {
		t.Fatalf("store record mutated through a copy")
	}
	if fresh.Game.TurnColor() != chess.White {
		t.Fatalf("stored game mutated through a copy")
	}
}

func TestMemoryGamesListAndClear(t *testing.T) {
	games := NewMemoryGames()
	ctx := context.Background()

	for _, name := range []string{"a", "b", "c"} {
		if _, err := games.Create(ctx, name); err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
	}
	infos, err := games.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("list returned %d games, want 3", len(infos))
	}
	for i, info := range infos {
		if info.GameID != i+1 {
			t.Fatalf("list order: got id %d at index %d", info.GameID, i)
		}
	}

	if err := games.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	infos, err = games.List(ctx)
	if err != nil {
		t.Fatalf("list after clear: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("list after clear returned %d games", len(infos))
	}
	if _, err := games.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after clear: %v, want ErrNotFound", err)
	}
}

func TestMemoryGamesUpdateUnknownID(t *testing.T) {
	games := NewMemoryGames()
	rec := &model.GameRecord{ID: 99, Game: chess.NewGame()}
	if err := games.Update(context.Background(), rec, "alice", SeatWhite); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update unknown id: %v, want ErrNotFound", err)
	}
}

func TestMemoryAuthsLifecycle(t *testing.T) {
	auths := NewMemoryAuths()
	ctx := context.Background()

	token, err := auths.CreateAuth(ctx, "alice")
	if err != nil {
		t.Fatalf("create auth: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}
	username, err := auths.GetAuth(ctx, token)
	if err != nil {
		t.Fatalf("get auth: %v", err)
	}
	if username != "alice" {
		t.Fatalf("username = %q, want alice", username)
	}

	if err := auths.DeleteAuth(ctx, token); err != nil {
		t.Fatalf("delete auth: %v", err)
	}
	if _, err := auths.GetAuth(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted auth: %v, want ErrNotFound", err)
	}
	if err := auths.DeleteAuth(ctx, token); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: %v, want ErrNotFound", err)
	}
}

func TestTokensAreUnique(t *testing.T) {
	auths := NewMemoryAuths()
	ctx := context.Background()

	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		token, err := auths.CreateAuth(ctx, "alice")
		if err != nil {
			t.Fatalf("create auth: %v", err)
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = struct{}{}
	}
}

func TestMemoryUsersLifecycle(t *testing.T) {
	users := NewMemoryUsers()
	ctx := context.Background()

	alice := &model.UserRecord{Username: "alice", HashedPassword: "x", Email: "a@b.c"}
	if err := users.CreateUser(ctx, alice); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := users.CreateUser(ctx, alice); !errors.Is(err, ErrAlreadyTaken) {
		t.Fatalf("duplicate user: %v, want ErrAlreadyTaken", err)
	}

	got, err := users.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Email != "a@b.c" {
		t.Fatalf("email = %q", got.Email)
	}
	if _, err := users.GetUser(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get unknown user: %v, want ErrNotFound", err)
	}

	if err := users.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := users.GetUser(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get after clear: %v, want ErrNotFound", err)
	}
}
