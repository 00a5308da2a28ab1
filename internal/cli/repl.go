package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/castlegate/chessd/pkg/chess"
	"github.com/castlegate/chessd/pkg/model"
	"github.com/castlegate/chessd/pkg/protocol"
)

// REPL is the single-threaded command loop. Server pushes arrive on the
// websocket goroutine and are printed on their own lines, followed by a
// fresh prompt.
type REPL struct {
	client *ServerClient
	in     *bufio.Scanner
	out    io.Writer

	printMu sync.Mutex

	username string

	sock   *GameSocket
	gameID int
	color  chess.Color // empty while observing

	stateMu sync.Mutex
	record  *model.GameRecord
}

func NewREPL(client *ServerClient, in io.Reader, out io.Writer) *REPL {
	return &REPL{client: client, in: bufio.NewScanner(in), out: out}
}

// Run reads commands until quit or EOF.
func (r *REPL) Run(ctx context.Context) error {
	r.println("Welcome to chessd. Type help for commands.")
	for {
		r.printPrompt()
		if !r.in.Scan() {
			r.teardownSocket(ctx)
			return r.in.Err()
		}
		fields := strings.Fields(r.in.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := strings.ToLower(fields[0]), fields[1:]
		if cmd == "quit" {
			r.teardownSocket(ctx)
			return nil
		}
		r.dispatch(ctx, cmd, args)
	}
}

func (r *REPL) dispatch(ctx context.Context, cmd string, args []string) {
	switch {
	case r.sock != nil:
		r.dispatchInGame(ctx, cmd, args)
	case r.username != "":
		r.dispatchLoggedIn(ctx, cmd, args)
	default:
		r.dispatchLoggedOut(ctx, cmd, args)
	}
}

func (r *REPL) dispatchLoggedOut(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "register":
		if len(args) != 3 {
			r.println("usage: register <username> <password> <email>")
			return
		}
		resp, err := r.client.Register(ctx, args[0], args[1], args[2])
		if err != nil {
			r.println(err.Error())
			return
		}
		r.username = resp.Username
		r.printf("registered and logged in as %s\n", r.username)
	case "login":
		if len(args) != 2 {
			r.println("usage: login <username> <password>")
			return
		}
		resp, err := r.client.Login(ctx, args[0], args[1])
		if err != nil {
			r.println(err.Error())
			return
		}
		r.username = resp.Username
		r.printf("logged in as %s\n", r.username)
	case "help":
		r.println("commands: register <user> <pass> <email>, login <user> <pass>, quit, help")
	default:
		r.println("unknown command; type help")
	}
}

func (r *REPL) dispatchLoggedIn(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "create":
		if len(args) < 1 {
			r.println("usage: create <name>")
			return
		}
		id, err := r.client.CreateGame(ctx, strings.Join(args, " "))
		if err != nil {
			r.println(err.Error())
			return
		}
		r.printf("created game %d\n", id)
	case "list":
		games, err := r.client.ListGames(ctx)
		if err != nil {
			r.println(err.Error())
			return
		}
		if len(games) == 0 {
			r.println("no games yet")
			return
		}
		for _, g := range games {
			r.printf("%4d  %-20s  white=%s black=%s\n",
				g.GameID, g.GameName, orDash(g.WhiteUsername), orDash(g.BlackUsername))
		}
	case "join":
		if len(args) != 2 {
			r.println("usage: join <id> WHITE|BLACK")
			return
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			r.println("game id must be a number")
			return
		}
		color := chess.Color(strings.ToUpper(args[1]))
		if color != chess.White && color != chess.Black {
			r.println("color must be WHITE or BLACK")
			return
		}
		if err := r.client.JoinGame(ctx, id, color); err != nil {
			r.println(err.Error())
			return
		}
		if err := r.attach(ctx, id, color); err != nil {
			r.println(err.Error())
		}
	case "observe":
		if len(args) != 1 {
			r.println("usage: observe <id>")
			return
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			r.println("game id must be a number")
			return
		}
		if err := r.attach(ctx, id, ""); err != nil {
			r.println(err.Error())
		}
	case "logout":
		if err := r.client.Logout(ctx); err != nil {
			r.println(err.Error())
		}
		r.username = ""
		r.println("logged out")
	case "help":
		r.println("commands: create <name>, list, join <id> WHITE|BLACK, observe <id>, logout, quit, help")
	default:
		r.println("unknown command; type help")
	}
}

func (r *REPL) dispatchInGame(ctx context.Context, cmd string, args []string) {
	playing := r.color != ""
	switch cmd {
	case "redraw":
		r.redraw(nil)
	case "highlight":
		if len(args) != 1 {
			r.println("usage: highlight <square>")
			return
		}
		square, err := chess.ParseSquare(args[0])
		if err != nil {
			r.println(err.Error())
			return
		}
		rec := r.currentRecord()
		if rec == nil {
			r.println("no game loaded yet")
			return
		}
		r.redraw(HighlightsFor(rec.Game, square))
	case "move":
		if !playing {
			r.println("observers cannot move")
			return
		}
		move, err := parseMoveArgs(args)
		if err != nil {
			r.println(err.Error())
			return
		}
		r.sendCommand(ctx, protocol.CommandMakeMove, move)
	case "resign":
		if !playing {
			r.println("observers cannot resign")
			return
		}
		r.sendCommand(ctx, protocol.CommandResign, nil)
	case "leave":
		r.sendCommand(ctx, protocol.CommandLeave, nil)
		r.teardownSocket(ctx)
		r.println("left the game")
	case "help":
		if playing {
			r.println("commands: redraw, highlight <square>, move <from> <to> [promotion], resign, leave, help")
		} else {
			r.println("commands: redraw, highlight <square>, leave, help")
		}
	default:
		r.println("unknown command; type help")
	}
}

// attach dials the websocket and sends CONNECT. An empty color means
// observing.
func (r *REPL) attach(ctx context.Context, gameID int, color chess.Color) error {
	sock := NewGameSocket(r.client.WebsocketURL(), r.onServerMessage, r.onSocketClosed)
	if err := sock.Connect(ctx); err != nil {
		return fmt.Errorf("connect websocket: %w", err)
	}
	r.sock = sock
	r.gameID = gameID
	r.color = color
	if err := sock.Send(ctx, &protocol.UserGameCommand{
		CommandType: protocol.CommandConnect,
		AuthToken:   r.client.Token(),
		GameID:      gameID,
	}); err != nil {
		r.teardownSocket(ctx)
		return fmt.Errorf("send connect: %w", err)
	}
	return nil
}

func (r *REPL) sendCommand(ctx context.Context, kind protocol.CommandType, move *chess.Move) {
	if r.sock == nil {
		return
	}
	err := r.sock.Send(ctx, &protocol.UserGameCommand{
		CommandType: kind,
		AuthToken:   r.client.Token(),
		GameID:      r.gameID,
		Move:        move,
	})
	if err != nil {
		r.printf("send failed: %v\n", err)
	}
}

func (r *REPL) teardownSocket(context.Context) {
	if r.sock != nil {
		r.sock.Close()
		r.sock = nil
	}
	r.gameID = 0
	r.color = ""
	r.setRecord(nil)
}

// onServerMessage runs on the websocket goroutine.
func (r *REPL) onServerMessage(msg *protocol.ServerMessage) {
	switch msg.Type {
	case protocol.MessageLoadGame:
		r.setRecord(msg.Game)
		r.println("")
		r.redraw(nil)
	case protocol.MessageNotification:
		r.println("\n" + msg.Message)
	case protocol.MessageError:
		r.println("\n" + msg.ErrorMessage)
	}
	r.printPrompt()
}

func (r *REPL) onSocketClosed(error) {
	r.println("\nconnection to the game lost")
	r.printPrompt()
}

func (r *REPL) redraw(hl *Highlights) {
	rec := r.currentRecord()
	if rec == nil || rec.Game == nil {
		r.println("no game loaded yet")
		return
	}
	perspective := chess.White
	if r.color == chess.Black {
		perspective = chess.Black
	}
	r.printMu.Lock()
	fmt.Fprintln(r.out, RenderBoard(rec.Game.Board(), perspective, hl))
	r.printMu.Unlock()
}

func (r *REPL) setRecord(rec *model.GameRecord) {
	r.stateMu.Lock()
	r.record = rec
	r.stateMu.Unlock()
}

func (r *REPL) currentRecord() *model.GameRecord {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.record
}

func (r *REPL) printPrompt() {
	prompt := "[logged out] >>> "
	switch {
	case r.sock != nil && r.color != "":
		prompt = fmt.Sprintf("[game %d, %s] >>> ", r.gameID, strings.ToLower(string(r.color)))
	case r.sock != nil:
		prompt = fmt.Sprintf("[game %d, observing] >>> ", r.gameID)
	case r.username != "":
		prompt = fmt.Sprintf("[%s] >>> ", r.username)
	}
	r.printMu.Lock()
	fmt.Fprint(r.out, prompt)
	r.printMu.Unlock()
}

func (r *REPL) println(s string) {
	r.printMu.Lock()
	fmt.Fprintln(r.out, s)
	r.printMu.Unlock()
}

func (r *REPL) printf(format string, args ...any) {
	r.printMu.Lock()
	fmt.Fprintf(r.out, format, args...)
	r.printMu.Unlock()
}

func parseMoveArgs(args []string) (*chess.Move, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, fmt.Errorf("usage: move <from> <to> [promotion]")
	}
	start, err := chess.ParseSquare(args[0])
	if err != nil {
		return nil, err
	}
	end, err := chess.ParseSquare(args[1])
	if err != nil {
		return nil, err
	}
	move := &chess.Move{Start: start, End: end}
	if len(args) == 3 {
		promo, ok := chess.ParsePromotion(args[2])
		if !ok {
			return nil, fmt.Errorf("promotion must be queen, rook, bishop or knight")
		}
		move.Promotion = promo
	}
	return move, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
