// Package cli implements the terminal client: the server facade, the
// game websocket, board rendering and the REPL.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/castlegate/chessd/pkg/chess"
	"github.com/castlegate/chessd/pkg/model"
	"github.com/castlegate/chessd/pkg/protocol"
)

// APIError carries the status code and the server's display message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("server returned status %d", e.Status)
}

// ServerClient talks to the chessd HTTP API. The auth token, once set
// by Register or Login, rides along on every request.
type ServerClient struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration

	token string
}

func NewServerClient(baseURL string) *ServerClient {
	return &ServerClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &fasthttp.Client{
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxConnsPerHost: 8,
		},
		timeout: 10 * time.Second,
	}
}

func (c *ServerClient) Token() string     { return c.token }
func (c *ServerClient) SetToken(t string) { c.token = t }

func (c *ServerClient) Register(ctx context.Context, username, password, email string) (*protocol.AuthResponse, error) {
	req := protocol.RegisterRequest{Username: username, Password: password, Email: email}
	var resp protocol.AuthResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/user", req, &resp); err != nil {
		return nil, err
	}
	c.token = resp.AuthToken
	return &resp, nil
}

func (c *ServerClient) Login(ctx context.Context, username, password string) (*protocol.AuthResponse, error) {
	req := protocol.LoginRequest{Username: username, Password: password}
	var resp protocol.AuthResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/session", req, &resp); err != nil {
		return nil, err
	}
	c.token = resp.AuthToken
	return &resp, nil
}

func (c *ServerClient) Logout(ctx context.Context) error {
	err := c.doJSON(ctx, fasthttp.MethodDelete, "/session", nil, nil)
	c.token = ""
	return err
}

func (c *ServerClient) CreateGame(ctx context.Context, name string) (int, error) {
	req := protocol.CreateGameRequest{GameName: name}
	var resp protocol.CreateGameResponse
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/game", req, &resp); err != nil {
		return 0, err
	}
	return resp.GameID, nil
}

func (c *ServerClient) JoinGame(ctx context.Context, gameID int, color chess.Color) error {
	req := protocol.JoinGameRequest{PlayerColor: color, GameID: gameID}
	return c.doJSON(ctx, fasthttp.MethodPut, "/game", req, nil)
}

func (c *ServerClient) ListGames(ctx context.Context) ([]model.GameInfo, error) {
	var resp protocol.ListGamesResponse
	if err := c.doJSON(ctx, fasthttp.MethodGet, "/game", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Games, nil
}

func (c *ServerClient) ClearDB(ctx context.Context) error {
	return c.doJSON(ctx, fasthttp.MethodDelete, "/db", nil, nil)
}

// WebsocketURL derives the /ws address from the HTTP base URL.
func (c *ServerClient) WebsocketURL() string {
	url := c.baseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/ws"
}

func (c *ServerClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	if c.token != "" {
		req.Header.Set("Authorization", c.token)
	}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		var body protocol.ErrorResponse
		_ = json.Unmarshal(resp.Body(), &body)
		return &APIError{Status: status, Message: body.Message}
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *ServerClient) deadline(ctx context.Context) time.Time {
	mine := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(mine) {
		return dl
	}
	return mine
}
