package store

import (
	"context"
	"sort"
	"sync"

	"github.com/castlegate/chessd/pkg/chess"
	"github.com/castlegate/chessd/pkg/model"
)

// MemoryGames is the in-memory game store used when no database is
// configured, and by tests.
type MemoryGames struct {
	mu     sync.RWMutex
	nextID int
	games  map[int]*model.GameRecord
}

func NewMemoryGames() *MemoryGames {
	return &MemoryGames{games: make(map[int]*model.GameRecord)}
}

func (m *MemoryGames) Create(ctx context.Context, name string) (*model.GameRecord, error) {
	game := chess.NewGame()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	rec := &model.GameRecord{ID: m.nextID, GameName: name, Game: game}
	m.games[rec.ID] = rec
	return rec.Clone(), nil
}

func (m *MemoryGames) Get(ctx context.Context, id int) (*model.GameRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (m *MemoryGames) List(ctx context.Context) ([]model.GameInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	infos := make([]model.GameInfo, 0, len(m.games))
	for _, rec := range m.games {
		infos = append(infos, model.GameInfo{
			GameID:        rec.ID,
			WhiteUsername: rec.WhiteUsername,
			BlackUsername: rec.BlackUsername,
			GameName:      rec.GameName,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].GameID < infos[j].GameID })
	return infos, nil
}

func (m *MemoryGames) Update(ctx context.Context, rec *model.GameRecord, actingUser string, seat Seat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.games[rec.ID]
	if !ok {
		return ErrNotFound
	}
	switch seat {
	case SeatWhite:
		cur.WhiteUsername = actingUser
	case SeatBlack:
		cur.BlackUsername = actingUser
	default: // SeatGameOver, SeatNone: persist the game body
		cur.Game = rec.Game.Clone()
	}
	return nil
}

func (m *MemoryGames) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games = make(map[int]*model.GameRecord)
	return nil
}

// MemoryAuths is the in-memory auth token store.
type MemoryAuths struct {
	mu     sync.RWMutex
	tokens map[string]string
}

func NewMemoryAuths() *MemoryAuths {
	return &MemoryAuths{tokens: make(map[string]string)}
}

func (m *MemoryAuths) CreateAuth(ctx context.Context, username string) (string, error) {
	token := NewToken()
	m.mu.Lock()
	m.tokens[token] = username
	m.mu.Unlock()
	return token, nil
}

func (m *MemoryAuths) GetAuth(ctx context.Context, token string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	username, ok := m.tokens[token]
	if !ok {
		return "", ErrNotFound
	}
	return username, nil
}

func (m *MemoryAuths) DeleteAuth(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token]; !ok {
		return ErrNotFound
	}
	delete(m.tokens, token)
	return nil
}

func (m *MemoryAuths) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.tokens = make(map[string]string)
	m.mu.Unlock()
	return nil
}

// MemoryUsers is the in-memory user store.
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]*model.UserRecord
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]*model.UserRecord)}
}

func (m *MemoryUsers) CreateUser(ctx context.Context, user *model.UserRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return ErrAlreadyTaken
	}
	cp := *user
	m.users[user.Username] = &cp
	return nil
}

func (m *MemoryUsers) GetUser(ctx context.Context, username string) (*model.UserRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *MemoryUsers) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.users = make(map[string]*model.UserRecord)
	m.mu.Unlock()
	return nil
}
