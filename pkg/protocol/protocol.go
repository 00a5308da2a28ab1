// Package protocol defines the websocket envelopes and HTTP bodies
// exchanged between the server and the terminal client.
package protocol

import (
	"github.com/castlegate/chessd/pkg/chess"
	"github.com/castlegate/chessd/pkg/model"
)

// CommandType enumerates client-to-server websocket commands.
type CommandType string

const (
	CommandConnect  CommandType = "CONNECT"
	CommandMakeMove CommandType = "MAKE_MOVE"
	CommandLeave    CommandType = "LEAVE"
	CommandResign   CommandType = "RESIGN"
)

// UserGameCommand is the client-to-server websocket frame. Move is
// present iff CommandType is MAKE_MOVE.
type UserGameCommand struct {
	CommandType CommandType `json:"commandType"`
	AuthToken   string      `json:"authToken"`
	GameID      int         `json:"gameID"`
	Move        *chess.Move `json:"move,omitempty"`
}

// MessageType enumerates server-to-client websocket messages.
type MessageType string

const (
	MessageLoadGame     MessageType = "LOAD_GAME"
	MessageNotification MessageType = "NOTIFICATION"
	MessageError        MessageType = "ERROR"
)

// ServerMessage is the server-to-client websocket frame.
type ServerMessage struct {
	Type         MessageType       `json:"serverMessageType"`
	Game         *model.GameRecord `json:"game,omitempty"`
	Message      string            `json:"message,omitempty"`
	ErrorMessage string            `json:"errorMessage,omitempty"`
}

func LoadGame(rec *model.GameRecord) *ServerMessage {
	return &ServerMessage{Type: MessageLoadGame, Game: rec}
}

func Notification(message string) *ServerMessage {
	return &ServerMessage{Type: MessageNotification, Message: message}
}

// Error wraps a reason in the wire error format "Error: <reason>".
func Error(reason string) *ServerMessage {
	return &ServerMessage{Type: MessageError, ErrorMessage: "Error: " + reason}
}

// HTTP request and response bodies.

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Username  string `json:"username"`
	AuthToken string `json:"authToken"`
}

type CreateGameRequest struct {
	GameName string `json:"gameName"`
}

type CreateGameResponse struct {
	GameID int `json:"gameID"`
}

type JoinGameRequest struct {
	PlayerColor chess.Color `json:"playerColor"`
	GameID      int         `json:"gameID"`
}

type ListGamesResponse struct {
	Games []model.GameInfo `json:"games"`
}

// ErrorResponse is the HTTP error body; Message carries the
// "Error: <reason>" form, the status code is the primary signal.
type ErrorResponse struct {
	Message string `json:"message"`
}
