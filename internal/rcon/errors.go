package rcon

import "errors"

// Command-specific error kinds. Each wraps a transport.Err* sentinel for the
// underlying-I/O case via the standard %w chain produced by the functions
// that return them.
var (
	ErrPlayerNotFound  = errors.New("player not found")
	ErrSoldierNotAlive = errors.New("soldier not alive")
	ErrMessageTooLong  = errors.New("message too long")
	ErrBanListFull     = errors.New("ban list full")
)
