package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/castlegate/chessd/internal/obslog"
	"github.com/castlegate/chessd/internal/store"
	"github.com/castlegate/chessd/pkg/model"
	"github.com/castlegate/chessd/pkg/protocol"
)

const (
	minUsernameLen = 3
	minPasswordLen = 3
	minEmailLen    = 7
)

// UserService handles registration, login and logout.
type UserService struct {
	users store.UserStore
	auths store.AuthStore
}

func NewUserService(users store.UserStore, auths store.AuthStore) *UserService {
	return &UserService{users: users, auths: auths}
}

// Register creates a user and logs them in. Validation failures come
// back as ErrBadRequest, a duplicate username as ErrAlreadyTaken.
func (s *UserService) Register(ctx context.Context, req protocol.RegisterRequest) (*protocol.AuthResponse, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &model.UserRecord{
		Username:       req.Username,
		HashedPassword: string(hash),
		Email:          req.Email,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyTaken) {
			return nil, ErrAlreadyTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	token, err := s.auths.CreateAuth(ctx, req.Username)
	if err != nil {
		return nil, fmt.Errorf("create auth: %w", err)
	}
	obslog.L().Info("user_registered", zap.String("username", req.Username))
	return &protocol.AuthResponse{Username: req.Username, AuthToken: token}, nil
}

// Login verifies the password and issues a fresh token. Unknown users
// and wrong passwords are both ErrUnauthorized, never distinguished.
func (s *UserService) Login(ctx context.Context, req protocol.LoginRequest) (*protocol.AuthResponse, error) {
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.users.GetUser(ctx, req.Username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
		return nil, ErrUnauthorized
	}
	token, err := s.auths.CreateAuth(ctx, user.Username)
	if err != nil {
		return nil, fmt.Errorf("create auth: %w", err)
	}
	obslog.L().Info("user_logged_in", zap.String("username", user.Username))
	return &protocol.AuthResponse{Username: user.Username, AuthToken: token}, nil
}

// Logout revokes the token. An unknown token is ErrUnauthorized.
func (s *UserService) Logout(ctx context.Context, token string) error {
	err := s.auths.DeleteAuth(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return ErrUnauthorized
	}
	if err != nil {
		return fmt.Errorf("delete auth: %w", err)
	}
	return nil
}

// Authenticate resolves a bearer token to a username.
func (s *UserService) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}
	username, err := s.auths.GetAuth(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("get auth: %w", err)
	}
	return username, nil
}

func validateRegistration(req protocol.RegisterRequest) error {
	if req.Username == "" || req.Password == "" || req.Email == "" {
		return fmt.Errorf("%w: missing field", ErrBadRequest)
	}
	if len(req.Username) < minUsernameLen {
		return fmt.Errorf("%w: username too short", ErrBadRequest)
	}
	if len(req.Password) < minPasswordLen {
		return fmt.Errorf("%w: password too short", ErrBadRequest)
	}
	if len(req.Email) < minEmailLen || !strings.Contains(req.Email, "@") {
		return fmt.Errorf("%w: malformed email", ErrBadRequest)
	}
	return nil
}
