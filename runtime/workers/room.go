package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"

	"chat-hub/contract"
	"chat-hub/domain"
	"chat-hub/domain/event"
	"chat-hub/moderation"
	"chat-hub/repositories"
)

// Ensure *RoomWorker implements the contract.Worker interface at compile time.
var _ contract.Worker = (*RoomWorker)(nil)

// RoomWorker is the serialization point of one room. It drains the room's
// command channel in arrival order, so membership of the message pipeline,
// receipt updates, and typing transitions for that room never interleave.
// Distinct rooms run their own worker and proceed fully in parallel.
//
// Persistence is the only blocking step; a later send can never broadcast
// before an earlier one completes because both pass through this loop.
type RoomWorker struct {
	roomID     domain.RoomID
	commands   chan domain.Command
	events     chan<- event.DomainEvent
	repository repositories.IMessageRepository
	moderator  moderation.Moderator
	typing     contract.ITypingCoordinator
	log        *slog.Logger
}

func NewRoomWorker(
	roomID domain.RoomID,
	commands chan domain.Command,
	events chan<- event.DomainEvent,
	repository repositories.IMessageRepository,
	moderator moderation.Moderator,
	typing contract.ITypingCoordinator,
	log *slog.Logger) *RoomWorker {
	return &RoomWorker{
		roomID:     roomID,
		commands:   commands,
		events:     events,
		repository: repository,
		moderator:  moderator,
		typing:     typing,
		log:        log,
	}
}

func (w *RoomWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker", "room_id", w.roomID)
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Channel is closed", "room_id", w.roomID)
				return nil
			}
			w.handle(ctx, cmd)
		}
	}
}

func (w *RoomWorker) handle(ctx context.Context, cmd domain.Command) {
	switch c := cmd.(type) {
	case domain.PostMessageCommand:
		w.postMessage(ctx, c)
	case domain.MarkSeenCommand:
		w.markSeen(ctx, c)
	case domain.StartTypingCommand:
		if w.typing.Start(c.Room, c.Username) {
			w.emit(ctx, event.TypingStarted{Room: c.Room, Username: c.Username})
		}
	case domain.StopTypingCommand:
		if w.typing.Stop(c.Room, c.Username) {
			w.emit(ctx, event.TypingStopped{Room: c.Room, Username: c.Username})
		}
	default:
		w.log.Debug(fmt.Sprintf("Unhandled command : %T", cmd))
	}
}

// postMessage runs the pipeline: validate, censor, persist, broadcast.
// Broadcast happens strictly after successful persistence; a failed store
// replies with the error and emits nothing.
func (w *RoomWorker) postMessage(ctx context.Context, cmd domain.PostMessageCommand) {
	if err := domain.ValidateContent(cmd.Content); err != nil {
		reply(cmd.Reply, domain.PostResult{Err: err})
		return
	}

	content, censoredWords := w.moderator.Censor(cmd.Content)
	if len(censoredWords) > 0 {
		w.log.Info("Censored message content",
			"room_id", cmd.Room,
			"sender_id", cmd.SenderID,
			"words", len(censoredWords))
	}

	info := whatlanggo.Detect(content)

	message := domain.Message{
		ID:         uuid.New(),
		Room:       cmd.Room,
		SenderID:   cmd.SenderID,
		SenderName: cmd.SenderName,
		Content:    content,
		Lang:       info.Lang.Iso6391(),
		CreatedAt:  cmd.CreatedAt,
		Delivered:  true,
	}

	if err := w.repository.StoreMessage(toDiskMessage(message)); err != nil {
		w.log.Error("Failed to persist message",
			"room_id", cmd.Room, "error", err)
		reply(cmd.Reply, domain.PostResult{Err: err})
		return
	}

	reply(cmd.Reply, domain.PostResult{Message: message})
	w.emit(ctx, event.MessagePosted{Message: message})
}

// markSeen appends the user to the seen-by set of every unseen message of
// the room and emits a single summary event for the whole batch.
func (w *RoomWorker) markSeen(ctx context.Context, cmd domain.MarkSeenCommand) {
	_, err := w.repository.MarkAllSeen(cmd.Room, cmd.UserID)
	if err != nil {
		w.log.Error("Failed to update seen messages",
			"room_id", cmd.Room, "user_id", cmd.UserID, "error", err)
		replyErr(cmd.Reply, err)
		return
	}
	replyErr(cmd.Reply, nil)
	w.emit(ctx, event.MessagesSeen{Room: cmd.Room, UserID: cmd.UserID})
}

func (w *RoomWorker) emit(ctx context.Context, evt event.DomainEvent) {
	select {
	case <-ctx.Done():
	case w.events <- evt:
	}
}

func reply(ch chan<- domain.PostResult, result domain.PostResult) {
	if ch == nil {
		return
	}
	select {
	case ch <- result:
	default:
	}
}

func replyErr(ch chan<- error, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

func toDiskMessage(message domain.Message) repositories.DiskMessage {
	return repositories.DiskMessage{
		ID:        message.ID,
		Room:      string(message.Room),
		Author:    message.SenderID,
		Username:  message.SenderName,
		Content:   message.Content,
		Lang:      message.Lang,
		At:        message.CreatedAt,
		Delivered: message.Delivered,
		SeenBy:    message.SeenBy,
	}
}
