// Package service implements the HTTP-facing application logic: user
// registration and login, the game catalog, and the administrative
// clear. Handlers translate the sentinel errors here into status codes.
package service

import "errors"

var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrAlreadyTaken = errors.New("already taken")
	ErrNotFound     = errors.New("not found")
)
