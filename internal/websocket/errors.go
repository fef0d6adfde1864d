package websocket

import "errors"

var (
	ErrDuplicateConnection = errors.New("connection already admitted")
	ErrUnknownConnection   = errors.New("unknown connection")
	ErrConnectionClosed    = errors.New("connection closed")
	ErrImplicitRoom        = errors.New("implicit rooms cannot be left")
)
