// Package model holds the records shared by the server and the client.
package model

import "github.com/castlegate/chessd/pkg/chess"

// GameRecord is a catalog entry plus the full game body. White and black
// seats are empty strings when unoccupied.
type GameRecord struct {
	ID            int         `json:"gameID"`
	WhiteUsername string      `json:"whiteUsername,omitempty"`
	BlackUsername string      `json:"blackUsername,omitempty"`
	GameName      string      `json:"gameName"`
	Game          *chess.Game `json:"game"`
}

// Clone deep-copies the record so store reads never alias live state.
func (r *GameRecord) Clone() *GameRecord {
	cp := *r
	if r.Game != nil {
		cp.Game = r.Game.Clone()
	}
	return &cp
}

// GameInfo is a catalog listing entry; the game body is excluded.
type GameInfo struct {
	GameID        int    `json:"gameID"`
	WhiteUsername string `json:"whiteUsername,omitempty"`
	BlackUsername string `json:"blackUsername,omitempty"`
	GameName      string `json:"gameName"`
}

// AuthRecord maps a bearer token to a username.
type AuthRecord struct {
	Token    string `json:"authToken"`
	Username string `json:"username"`
}

// UserRecord stores a registered user. The password is a bcrypt hash.
type UserRecord struct {
	Username       string `json:"username"`
	HashedPassword string `json:"-"`
	Email          string `json:"email"`
}
