package websocket

import "errors"

var (
	ErrClientQueueFull = errors.New("client message queue is full")
	ErrInvalidFrame    = errors.New("invalid frame format")
	ErrUnknownFrame    = errors.New("unknown frame type")
)
