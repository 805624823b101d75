package client

import "errors"

var (
	ErrUnavailable  = errors.New("remote unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadResponse  = errors.New("bad response from remote")
)
