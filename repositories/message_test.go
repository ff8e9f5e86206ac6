package repositories

import (
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"chat-hub/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Record_And_Get_Sorted_Messages(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	room := domain.RoomID("general")
	content := "this message will self destruct in 5 seconds"
	at := time.Now().UTC().Truncate(time.Millisecond)
	diskMessages := []DiskMessage{
		{ID: uuid.New(), Room: "general", Author: "u1", Username: "Alice", Content: content, At: at, Delivered: true},
		{ID: uuid.New(), Room: "general", Author: "u2", Username: "Bob", Content: content, At: at.Add(1 * time.Minute), Delivered: true},
		{ID: uuid.New(), Room: "general", Author: "u3", Username: "Clara", Content: content, At: at.Add(2 * time.Minute), Delivered: true},
	}

	sortedDiskMessages := make([]DiskMessage, len(diskMessages))
	copy(sortedDiskMessages, diskMessages)
	sort.Slice(sortedDiskMessages, func(i, j int) bool {
		return sortedDiskMessages[i].At.After(sortedDiskMessages[j].At)
	})
	for _, dm := range diskMessages {
		req.NoError(repository.StoreMessage(dm))
	}

	// When fetching messages
	fetchedMessages, _, err := repository.GetMessages(room, nil)
	req.NoError(err)

	// Then the messages come back newest first
	req.Len(fetchedMessages, len(sortedDiskMessages))
	for i := range sortedDiskMessages {
		req.Equal(sortedDiskMessages[i].ID, fetchedMessages[i].ID)
		req.True(sortedDiskMessages[i].At.Equal(fetchedMessages[i].At))
	}
}

func Test_Get_Messages_With_Cursor_Pagination(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	limit := 2
	repository := NewMessageRepository(db, slog.Default(), &limit)
	at := time.Now().UTC()

	total := 5
	for i := 0; i < total; i++ {
		req.NoError(repository.StoreMessage(DiskMessage{
			ID: uuid.New(), Room: "general", Author: "u1", Username: "Alice",
			Content: "msg", At: at.Add(time.Duration(i) * time.Minute), Delivered: true,
		}))
	}

	// When paging through the full history
	var fetched []DiskMessage
	var cursor *string
	for {
		page, next, err := repository.GetMessages("general", cursor)
		req.NoError(err)
		if len(page) == 0 {
			break
		}
		req.LessOrEqual(len(page), limit)
		fetched = append(fetched, page...)
		cursor = next
	}

	// Then every message is seen exactly once, newest first
	req.Len(fetched, total)
	for i := 1; i < len(fetched); i++ {
		req.True(fetched[i].At.Before(fetched[i-1].At))
	}
}

func Test_Get_Messages_End_Of_History_Has_No_Cursor(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)

	// Given an empty room
	page, cursor, err := repository.GetMessages("general", nil)
	req.NoError(err)
	req.Empty(page)
	req.Nil(cursor)

	// Given one stored message
	req.NoError(repository.StoreMessage(DiskMessage{
		ID: uuid.New(), Room: "general", Author: "u1", Username: "Alice",
		Content: "only one", At: time.Now().UTC(), Delivered: true,
	}))

	page, cursor, err = repository.GetMessages("general", nil)
	req.NoError(err)
	req.Len(page, 1)
	req.NotNil(cursor)

	// When paging past the last message
	page, cursor, err = repository.GetMessages("general", cursor)

	// Then the empty page carries no cursor
	req.NoError(err)
	req.Empty(page)
	req.Nil(cursor)
}

func Test_Messages_Scoped_By_Room(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	at := time.Now().UTC()
	req.NoError(repository.StoreMessage(DiskMessage{
		ID: uuid.New(), Room: "roomA", Author: "u1", Username: "Alice", Content: "in A", At: at,
	}))
	req.NoError(repository.StoreMessage(DiskMessage{
		ID: uuid.New(), Room: "roomB", Author: "u2", Username: "Bob", Content: "in B", At: at,
	}))

	// When fetching one room's history
	fetched, _, err := repository.GetMessages("roomA", nil)
	req.NoError(err)

	// Then the other room's messages never leak in
	req.Len(fetched, 1)
	req.Equal("in A", fetched[0].Content)
}

func Test_MarkAllSeen_Appends_And_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)

	repository := NewMessageRepository(db, slog.Default(), nil)
	at := time.Now().UTC()
	for i := 0; i < 3; i++ {
		req.NoError(repository.StoreMessage(DiskMessage{
			ID: uuid.New(), Room: "general", Author: "u1", Username: "Alice",
			Content: "msg", At: at.Add(time.Duration(i) * time.Second), Delivered: true,
		}))
	}

	// When bob acknowledges the room
	updated, err := repository.MarkAllSeen("general", "bob")
	req.NoError(err)
	req.Equal(3, updated)

	// Then every message carries bob exactly once
	fetched, _, err := repository.GetMessages("general", nil)
	req.NoError(err)
	for _, message := range fetched {
		req.Equal([]string{"bob"}, message.SeenBy)
	}

	// And re-acknowledging changes nothing
	updated, err = repository.MarkAllSeen("general", "bob")
	req.NoError(err)
	req.Equal(0, updated)

	// And a second user appends without clobbering bob
	updated, err = repository.MarkAllSeen("general", "clara")
	req.NoError(err)
	req.Equal(3, updated)

	fetched, _, err = repository.GetMessages("general", nil)
	req.NoError(err)
	for _, message := range fetched {
		req.ElementsMatch([]string{"bob", "clara"}, message.SeenBy)
	}
}
