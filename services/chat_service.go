// Package services holds the application facade between the transport
// layer and the runtime. It resolves identities, applies membership
// changes, and hands room-scoped work to the dispatcher.
package services

import (
	"context"
	"log/slog"
	"time"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/errors"
	"chat-hub/repositories"
	"chat-hub/runtime"
	"chat-hub/search"
)

// ChatService implements the user-facing operations. Every room-scoped
// mutation goes through the dispatcher so per-room ordering holds; reads
// hit the repositories directly.
type ChatService struct {
	log        *slog.Logger
	registry   *runtime.Registry
	dispatcher contract.IDispatcher
	router     *runtime.Orchestrator
	typing     contract.ITypingCoordinator
	users      repositories.IUserDirectory
	rooms      repositories.IRoomDirectory
	messages   repositories.IMessageRepository
	index      *search.Index
}

func NewChatService(log *slog.Logger, registry *runtime.Registry,
	router *runtime.Orchestrator, typing contract.ITypingCoordinator,
	users repositories.IUserDirectory, rooms repositories.IRoomDirectory,
	messages repositories.IMessageRepository, index *search.Index) *ChatService {
	return &ChatService{
		log:        log,
		registry:   registry,
		dispatcher: router,
		router:     router,
		typing:     typing,
		users:      users,
		rooms:      rooms,
		messages:   messages,
		index:      index,
	}
}

// JoinRoom binds the connection to a username and moves it into the room.
// A connection sits in at most one room; joining a new room silently
// leaves the previous one. The join is announced to the room's members,
// newcomer included.
func (s *ChatService) JoinRoom(connectionID, username string, roomID domain.RoomID) (domain.User, error) {
	exists, err := s.rooms.Exists(roomID)
	if err != nil {
		return domain.User{}, err
	}
	if !exists {
		return domain.User{}, errors.ErrRoomNotFound
	}

	user, err := s.users.FindOrCreate(username)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.users.SetOnline(user.ID, true, connectionID); err != nil {
		return domain.User{}, err
	}
	user.Online = true
	user.ConnectionID = connectionID

	if err := s.registry.Identify(connectionID, user); err != nil {
		return domain.User{}, err
	}
	if err := s.registry.Join(connectionID, roomID); err != nil {
		return domain.User{}, err
	}

	s.router.EnsureRoom(roomID)
	s.router.Publish(event.UserJoined{Room: roomID, User: user, At: time.Now()})

	s.log.Info("User joined room",
		"username", username, "room_id", roomID, "connection_id", connectionID)
	return user, nil
}

// PostMessage sends a message into the sender's room pipeline and waits
// for the persistence outcome. A message is only ever broadcast after it
// is durably stored, so a non-nil error here means nobody saw it.
func (s *ChatService) PostMessage(ctx context.Context, connectionID, content string) (domain.Message, error) {
	user, roomID, err := s.identifiedIn(connectionID)
	if err != nil {
		return domain.Message{}, err
	}

	reply := make(chan domain.PostResult, 1)
	cmd := domain.PostMessageCommand{
		Room:       roomID,
		SenderID:   user.ID,
		SenderName: user.Username,
		Content:    content,
		CreatedAt:  time.Now(),
		Reply:      reply,
	}
	if err := s.dispatcher.Dispatch(cmd); err != nil {
		return domain.Message{}, err
	}

	select {
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	case result := <-reply:
		return result.Message, result.Err
	}
}

// Typing signals that the connection's user is composing. The broadcast
// decision (fresh start vs refresh) belongs to the room worker.
func (s *ChatService) Typing(connectionID string) error {
	user, roomID, err := s.identifiedIn(connectionID)
	if err != nil {
		return err
	}
	return s.dispatcher.Dispatch(domain.StartTypingCommand{Room: roomID, Username: user.Username})
}

// StopTyping clears the composing state explicitly.
func (s *ChatService) StopTyping(connectionID string) error {
	user, roomID, err := s.identifiedIn(connectionID)
	if err != nil {
		return err
	}
	return s.dispatcher.Dispatch(domain.StopTypingCommand{Room: roomID, Username: user.Username})
}

// MarkSeen acknowledges every message of the connection's room for its
// user and waits for the receipts to be persisted.
func (s *ChatService) MarkSeen(ctx context.Context, connectionID string) error {
	user, roomID, err := s.identifiedIn(connectionID)
	if err != nil {
		return err
	}

	reply := make(chan error, 1)
	cmd := domain.MarkSeenCommand{Room: roomID, UserID: user.ID, Reply: reply}
	if err := s.dispatcher.Dispatch(cmd); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-reply:
		return err
	}
}

// Disconnect tears down one connection. Typing state is cleared with a
// broadcast if needed, and only the user's last connection flips them
// offline and announces it globally.
func (s *ChatService) Disconnect(connectionID string) {
	released, ok := s.registry.Release(connectionID)
	if !ok {
		return
	}
	if !released.Identified {
		return
	}

	if released.InRoom {
		if s.typing.Stop(released.Room, released.User.Username) {
			s.router.Publish(event.TypingStopped{
				Room:     released.Room,
				Username: released.User.Username,
			})
		}
	}

	if released.LastConnection {
		if err := s.users.SetOnline(released.User.ID, false, ""); err != nil {
			s.log.Error("Failed to mark user offline",
				"username", released.User.Username, "error", err)
		}
		s.router.Publish(event.UserOffline{Username: released.User.Username})
		s.log.Info("User went offline", "username", released.User.Username)
	}
}

// GetMessages pages through a room's history, newest first. Pass the
// returned cursor back in to fetch the next page.
func (s *ChatService) GetMessages(roomID domain.RoomID, cursor *string) ([]repositories.DiskMessage, *string, error) {
	exists, err := s.rooms.Exists(roomID)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, errors.ErrRoomNotFound
	}
	return s.messages.GetMessages(roomID, cursor)
}

// SearchMessages runs a full-text query scoped to one room.
func (s *ChatService) SearchMessages(ctx context.Context, roomID domain.RoomID, terms string, limit int) ([]search.Hit, error) {
	exists, err := s.rooms.Exists(roomID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.ErrRoomNotFound
	}
	return s.index.Search(ctx, roomID, terms, limit)
}

// CreateRoom registers a new named room.
func (s *ChatService) CreateRoom(name string) (domain.Room, error) {
	room, err := s.rooms.Create(name)
	if err != nil {
		return domain.Room{}, err
	}
	s.log.Info("Room created", "room_id", room.ID, "name", room.Name)
	return room, nil
}

// ListRooms returns every known room.
func (s *ChatService) ListRooms() ([]domain.Room, error) {
	return s.rooms.List()
}

// MembersOf lists the usernames currently connected to a room.
func (s *ChatService) MembersOf(roomID domain.RoomID) []string {
	return s.registry.MembersOf(roomID)
}

func (s *ChatService) identifiedIn(connectionID string) (domain.User, domain.RoomID, error) {
	user, ok := s.registry.UserOf(connectionID)
	if !ok {
		return domain.User{}, domain.GlobalRoom, errors.ErrNotIdentified
	}
	roomID, ok := s.registry.RoomOf(connectionID)
	if !ok {
		return domain.User{}, domain.GlobalRoom, errors.ErrRoomNotFound
	}
	return user, roomID, nil
}
