package services

import "errors"

// NotFound and invalid-input are expected outcomes the HTTP layer maps to
// 404/400; anything else bubbling out of a service is a storage failure.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrCycle        = errors.New("cannot move a folder into itself or its descendants")
)
