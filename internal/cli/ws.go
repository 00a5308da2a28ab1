package cli

import (
	"context"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/castlegate/chessd/pkg/protocol"
)

// MessageCallback receives every server push in arrival order.
type MessageCallback func(*protocol.ServerMessage)

// GameSocket is the client side of the /ws protocol: one connection,
// a listen goroutine feeding the callback, and sends guarded for
// concurrent use with the REPL loop.
type GameSocket struct {
	url      string
	onMsg    MessageCallback
	onClosed func(error)

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	wg sync.WaitGroup
}

func NewGameSocket(url string, onMsg MessageCallback, onClosed func(error)) *GameSocket {
	return &GameSocket{url: url, onMsg: onMsg, onClosed: onClosed}
}

func (g *GameSocket) Connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, g.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.conn = conn
	g.closed = false
	g.mu.Unlock()

	g.wg.Add(1)
	go g.listen()
	return nil
}

func (g *GameSocket) listen() {
	defer g.wg.Done()
	for {
		g.mu.Lock()
		conn := g.conn
		g.mu.Unlock()
		if conn == nil {
			return
		}

		var msg protocol.ServerMessage
		if err := wsjson.Read(context.Background(), conn, &msg); err != nil {
			g.mu.Lock()
			wasClosed := g.closed
			g.conn = nil
			g.mu.Unlock()
			if !wasClosed && g.onClosed != nil {
				g.onClosed(err)
			}
			return
		}
		if g.onMsg != nil {
			g.onMsg(&msg)
		}
	}
}

func (g *GameSocket) Send(ctx context.Context, cmd *protocol.UserGameCommand) error {
	g.mu.Lock()
	conn := g.conn
	g.mu.Unlock()
	if conn == nil {
		return websocket.CloseError{Code: websocket.StatusGoingAway, Reason: "not connected"}
	}
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, conn, cmd)
}

func (g *GameSocket) Close() {
	g.mu.Lock()
	conn := g.conn
	g.closed = true
	g.conn = nil
	g.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
	g.wg.Wait()
}
