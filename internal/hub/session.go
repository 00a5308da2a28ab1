package hub

import (
	"context"
	"sync"

	"github.com/castlegate/chessd/pkg/protocol"
)

// Sender delivers one server message to a client connection. The
// websocket layer implements it; tests substitute an in-memory sink.
type Sender interface {
	Send(ctx context.Context, msg *protocol.ServerMessage) error
}

// Session is one live websocket connection. A session is bound to a
// single game by its first successful CONNECT.
type Session struct {
	sender Sender

	mu       sync.Mutex
	username string
	gameID   int
	joined   bool
}

func NewSession(sender Sender) *Session {
	return &Session{sender: sender}
}

func (s *Session) send(ctx context.Context, msg *protocol.ServerMessage) error {
	return s.sender.Send(ctx, msg)
}

func (s *Session) bind(username string, gameID int) {
	s.mu.Lock()
	s.username = username
	s.gameID = gameID
	s.joined = true
	s.mu.Unlock()
}

func (s *Session) unbind() {
	s.mu.Lock()
	s.joined = false
	s.mu.Unlock()
}

// binding reports the game this session is attached to, if any.
func (s *Session) binding() (username string, gameID int, joined bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username, s.gameID, s.joined
}
