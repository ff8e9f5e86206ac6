package domain

// RoomID identifies a broadcast domain. Rooms are created through the room
// directory; the runtime only tracks live membership for ids it is handed.
type RoomID string

// GlobalRoom is the pseudo room id carried by events addressed to every
// connected client (e.g. a user going offline), as opposed to room-scoped
// broadcasts.
const GlobalRoom RoomID = ""

type Room struct {
	ID   RoomID
	Name string
}
