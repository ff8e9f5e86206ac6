//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-hub/domain"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetMessages(room domain.RoomID, cursor *string) ([]DiskMessage, *string, error)
	MarkAllSeen(room domain.RoomID, userID string) (int, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// DiskMessage is the storage representation of a message. Values are stored
// as JSON so the seen-by set can be rewritten in place when receipts land.
type DiskMessage struct {
	ID        uuid.UUID `json:"id"`
	Room      string    `json:"room"`
	Author    string    `json:"author"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	Lang      string    `json:"lang,omitempty"`
	At        time.Time `json:"at"`
	Delivered bool      `json:"delivered"`
	SeenBy    []string  `json:"seen_by,omitempty"`
}

// messageKey formats the badger key as "msg:{room}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two
//     messages arrive at the same nanosecond.
func messageKey(message DiskMessage) []byte {
	return fmt.Appendf(nil, "msg:%s:%019d:%s",
		message.Room,
		message.At.UnixNano(),
		message.ID,
	)
}

func roomPrefix(room domain.RoomID) []byte {
	return fmt.Appendf(nil, "msg:%s:", room)
}

// StoreMessage persists a message in BadgerDB.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	bytes, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(message), bytes)
	})
}

// GetMessages retrieves messages for a specific room using a reverse prefix
// scan, most recent first. Thanks to the padded timestamp in the key,
// messages are naturally sorted by time. It stops collecting once the
// configured limitMessages is reached and returns an opaque cursor for the
// next page.
func (m MessageRepository) GetMessages(room domain.RoomID, cursor *string) ([]DiskMessage, *string, error) {
	var byteMessages [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := roomPrefix(room)
		prefixLen := len(prefix)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past the most recent possible timestamp, then walk back.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(byteMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// An empty page means the history is exhausted; no cursor to hand back.
	if len(byteMessages) == 0 {
		return nil, nil, nil
	}

	diskMessages := make([]DiskMessage, 0, len(byteMessages))
	for _, b := range byteMessages {
		var message DiskMessage
		if err = json.Unmarshal(b, &message); err != nil {
			return nil, nil, err
		}
		diskMessages = append(diskMessages, message)
	}
	return diskMessages, &lastKey, nil
}

// MarkAllSeen appends userID to the seen-by set of every message in the room
// that doesn't carry it yet, within a single transaction. Messages already
// seen by the user are left untouched, which makes the operation idempotent.
// It returns the number of messages actually updated.
func (m MessageRepository) MarkAllSeen(room domain.RoomID, userID string) (int, error) {
	updated := 0
	err := m.db.Update(func(txn *badger.Txn) error {
		prefix := roomPrefix(room)
		options := badger.DefaultIteratorOptions
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()...)

			var message DiskMessage
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &message)
			})
			if err != nil {
				return err
			}

			if seen(message, userID) {
				continue
			}
			message.SeenBy = append(message.SeenBy, userID)

			bytes, err := json.Marshal(message)
			if err != nil {
				return err
			}
			if err := txn.Set(key, bytes); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func seen(message DiskMessage, userID string) bool {
	for _, id := range message.SeenBy {
		if id == userID {
			return true
		}
	}
	return false
}
