// Package domain contains core concepts of the chat system.
// This file defines User identity attributes. The persistent part lives in
// the user directory; the runtime only mutates the transient online flag
// and last-known connection.
package domain

type User struct {
	ID           string
	Username     string
	Online       bool
	ConnectionID string
}
