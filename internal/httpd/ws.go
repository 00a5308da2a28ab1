package httpd

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/castlegate/chessd/internal/hub"
	"github.com/castlegate/chessd/internal/obslog"
	"github.com/castlegate/chessd/pkg/protocol"
)

const wsWriteTimeout = 10 * time.Second

// wsSender adapts a websocket connection to the hub's Sender.
type wsSender struct {
	conn *websocket.Conn
}

func (s *wsSender) Send(ctx context.Context, msg *protocol.ServerMessage) error {
	ctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, s.conn, msg)
}

// handleWS upgrades the request and pumps commands into the hub until
// the peer goes away. The read loop exiting performs the implicit
// disconnect: registry eviction only, seats untouched.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	if err != nil {
		obslog.L().Debug("ws_accept_failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "closing")

	sess := hub.NewSession(&wsSender{conn: conn})
	defer s.hub.Disconnect(sess)

	ctx := r.Context()
	for {
		var cmd protocol.UserGameCommand
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			obslog.L().Debug("ws_read_closed", zap.Error(err))
			return
		}
		s.hub.HandleCommand(ctx, sess, &cmd)
	}
}
