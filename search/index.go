// Package search maintains a full-text index over stored messages.
// Indexing is best-effort and happens after broadcast; losing an index
// entry never loses the message itself.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"

	"chat-hub/domain"
)

// Hit is one search result, carrying the stored fields of the match.
type Hit struct {
	MessageID string
	Room      string
	Username  string
	Content   string
	At        time.Time
}

type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// IndexMessage adds or replaces the document for a message. The censored
// content is what gets indexed, so search never resurfaces masked words.
func (i *Index) IndexMessage(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField("room", string(message.Room)).StoreValue()).
		AddField(bluge.NewKeywordField("username", message.SenderName).StoreValue()).
		AddField(bluge.NewTextField("content", message.Content).StoreValue()).
		AddField(bluge.NewDateTimeField("at", message.CreatedAt).StoreValue())

	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("index message %s: %w", message.ID, err)
	}
	return nil
}

// Search runs a match query over message content, restricted to one room.
func (i *Index) Search(ctx context.Context, room domain.RoomID, terms string, limit int) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			i.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	query := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(terms).SetField("content")).
		AddMust(bluge.NewTermQuery(string(room)).SetField("room"))

	request := bluge.NewTopNSearch(limit, query).SortBy([]string{"-_score"})
	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}
		var hit Hit
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "room":
				hit.Room = string(value)
			case "username":
				hit.Username = string(value)
			case "content":
				hit.Content = string(value)
			case "at":
				if at, err := bluge.DecodeDateTime(value); err == nil {
					hit.At = at
				}
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
