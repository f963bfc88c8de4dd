package domain

import "errors"

// Sentinel errors used across layers.
var (
	ErrNotFound         = errors.New("not found")
	ErrMalformedRecipe  = errors.New("malformed recipe")
	ErrSessionNotActive = errors.New("session is not active")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotImplemented   = errors.New("not implemented")
	ErrEmptyResult      = errors.New("empty result")
)
