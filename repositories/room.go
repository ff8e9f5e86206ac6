//go:generate go run go.uber.org/mock/mockgen -source=room.go -destination=../mocks/mock_room_directory.go -package=mocks
package repositories

import (
	"encoding/json"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"chat-hub/domain"
	"chat-hub/errors"
)

// IRoomDirectory is the persistent catalog of rooms. The runtime never
// creates rooms itself; it only asks whether an id is valid.
type IRoomDirectory interface {
	Create(name string) (domain.Room, error)
	Exists(id domain.RoomID) (bool, error)
	List() ([]domain.Room, error)
}

type RoomDirectory struct {
	db *badger.DB
}

func NewRoomDirectory(db *badger.DB) *RoomDirectory {
	return &RoomDirectory{db: db}
}

type diskRoom struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func roomKey(id domain.RoomID) []byte { return []byte("room:id:" + string(id)) }
func roomNameKey(name string) []byte  { return []byte("room:name:" + name) }

// Create registers a new room. Blank and duplicate names are rejected.
func (r *RoomDirectory) Create(name string) (domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Room{}, errors.ErrBlankRoomName
	}

	record := diskRoom{ID: uuid.NewString(), Name: name}
	err := r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(roomNameKey(name)); err == nil {
			return errors.ErrRoomAlreadyExists
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		if err := txn.Set(roomKey(domain.RoomID(record.ID)), data); err != nil {
			return err
		}
		return txn.Set(roomNameKey(name), []byte(record.ID))
	})
	if err != nil {
		return domain.Room{}, err
	}
	return domain.Room{ID: domain.RoomID(record.ID), Name: record.Name}, nil
}

func (r *RoomDirectory) Exists(id domain.RoomID) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(roomKey(id))
		return err
	})
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *RoomDirectory) List() ([]domain.Room, error) {
	var records []diskRoom
	err := r.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:id:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var record diskRoom
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(records, func(record diskRoom, _ int) domain.Room {
		return domain.Room{ID: domain.RoomID(record.ID), Name: record.Name}
	}), nil
}
