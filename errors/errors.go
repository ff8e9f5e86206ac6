// Package errors defines the sentinel errors shared across the service.
//
// The taxonomy mirrors how failures are surfaced: validation errors go back
// to the originating connection, not-found errors cause the event to be
// dropped at the router, and persistence errors are reported to the caller
// so it may retry.
package errors

import "fmt"

var (
	ErrEmptyContent      = fmt.Errorf("message content is empty")
	ErrBlankRoomName     = fmt.Errorf("room name is blank")
	ErrRoomAlreadyExists = fmt.Errorf("room already exists")
	ErrRoomNotFound      = fmt.Errorf("room not found")
	ErrUserNotFound      = fmt.Errorf("user not found")
	ErrUnknownConnection = fmt.Errorf("unknown connection")
	ErrNotIdentified     = fmt.Errorf("connection has no identified user")
	ErrRouterSaturated   = fmt.Errorf("room command channel is full")
	ErrEmptyWords        = fmt.Errorf("censored words list is empty")
	ErrMissingQuery      = fmt.Errorf("missing query parameter q")
	ErrWorkerPanic       = fmt.Errorf("worker panic")
)
