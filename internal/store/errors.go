package store

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrAccountTaken    = errors.New("account already attached to another team")
	ErrAccountAssigned = errors.New("team already has an account")
	ErrInvalidInput    = errors.New("invalid input")
)
