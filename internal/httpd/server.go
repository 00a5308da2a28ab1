// Package httpd exposes the service over HTTP and upgrades /ws to the
// game websocket.
package httpd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/castlegate/chessd/internal/hub"
	"github.com/castlegate/chessd/internal/obslog"
	"github.com/castlegate/chessd/internal/service"
	"github.com/castlegate/chessd/internal/store"
	"github.com/castlegate/chessd/pkg/protocol"
)

type Server struct {
	users *service.UserService
	games *service.GameService
	hub   *hub.Hub

	gameStore store.GameStore
	authStore store.AuthStore
	userStore store.UserStore
}

func NewServer(users *service.UserService, games *service.GameService, h *hub.Hub,
	gameStore store.GameStore, authStore store.AuthStore, userStore store.UserStore) *Server {
	return &Server{
		users:     users,
		games:     games,
		hub:       h,
		gameStore: gameStore,
		authStore: authStore,
		userStore: userStore,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", s.handleUser)
	mux.HandleFunc("/session", s.handleSession)
	mux.HandleFunc("/game", s.handleGame)
	mux.HandleFunc("/db", s.handleDB)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req protocol.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	resp, err := s.users.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, resp)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req protocol.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		resp, err := s.users.Login(r.Context(), req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, resp)
	case http.MethodDelete:
		if err := s.users.Logout(r.Context(), bearerToken(r)); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	username, err := s.users.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var req protocol.CreateGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request")
			return
		}
		id, err := s.games.Create(r.Context(), req.GameName)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, protocol.CreateGameResponse{GameID: id})
	case http.MethodPut:
		var req protocol.JoinGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad request")
			return
		}
		if err := s.games.Join(r.Context(), username, req.PlayerColor, req.GameID); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, struct{}{})
	case http.MethodGet:
		infos, err := s.games.List(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, protocol.ListGamesResponse{Games: infos})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleDB(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := service.Clear(r.Context(), s.gameStore, s.authStore, s.userStore); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, struct{}{})
}

// bearerToken extracts the token from the Authorization header. Both a
// raw token and the "Bearer <token>" form are accepted.
func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(rest)
	}
	return auth
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		obslog.L().Warn("response_encode_failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(protocol.ErrorResponse{Message: "Error: " + reason})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad request")
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, service.ErrAlreadyTaken):
		writeError(w, http.StatusForbidden, "already taken")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusBadRequest, "bad request")
	default:
		obslog.L().Error("request_failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
