package storyboard

import "errors"

var (
	// ErrValidation marks input the board refuses without touching the network.
	ErrValidation = errors.New("validation error")
	// ErrClosed is returned by operations on a closed board.
	ErrClosed = errors.New("storyboard closed")
)
