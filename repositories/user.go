//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_directory.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"chat-hub/domain"
	"chat-hub/errors"
)

// IUserDirectory resolves usernames to user records. Usernames are unique
// and externally assigned; joining with an unknown username creates the
// record on the fly.
type IUserDirectory interface {
	FindOrCreate(username string) (domain.User, error)
	SetOnline(userID string, online bool, connectionID string) error
	GetByUsername(username string) (domain.User, error)
}

type UserDirectory struct {
	db *badger.DB
}

func NewUserDirectory(db *badger.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

// diskUser is the stored representation. The online flag and last-known
// connection are transient runtime facts but are persisted alongside the
// identity so a directory read reflects current presence.
type diskUser struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Online       bool   `json:"online"`
	ConnectionID string `json:"connection_id,omitempty"`
}

func userKey(username string) []byte { return []byte("user:name:" + username) }
func userIDKey(id string) []byte     { return []byte("user:id:" + id) }

// FindOrCreate returns the user record for username, creating it with a
// fresh id when none exists yet.
func (u *UserDirectory) FindOrCreate(username string) (domain.User, error) {
	var record diskUser
	err := u.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		switch err {
		case nil:
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
		case badger.ErrKeyNotFound:
			record = diskUser{ID: uuid.NewString(), Username: username}
			data, err := json.Marshal(record)
			if err != nil {
				return err
			}
			if err := txn.Set(userKey(username), data); err != nil {
				return err
			}
			// Secondary index so presence updates can address the user by id.
			return txn.Set(userIDKey(record.ID), []byte(username))
		default:
			return err
		}
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("find or create user %q: %w", username, err)
	}
	return toUser(record), nil
}

// SetOnline flips the online flag and records the connection the state came
// from. Unknown ids map to ErrUserNotFound.
func (u *UserDirectory) SetOnline(userID string, online bool, connectionID string) error {
	return u.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userIDKey(userID))
		if err == badger.ErrKeyNotFound {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		var username string
		if err := item.Value(func(val []byte) error {
			username = string(val)
			return nil
		}); err != nil {
			return err
		}

		item, err = txn.Get(userKey(username))
		if err != nil {
			return err
		}
		var record diskUser
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		}); err != nil {
			return err
		}

		record.Online = online
		record.ConnectionID = connectionID
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		return txn.Set(userKey(username), data)
	})
}

func (u *UserDirectory) GetByUsername(username string) (domain.User, error) {
	var record diskUser
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(username))
		if err == badger.ErrKeyNotFound {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(record), nil
}

func toUser(record diskUser) domain.User {
	return domain.User{
		ID:           record.ID,
		Username:     record.Username,
		Online:       record.Online,
		ConnectionID: record.ConnectionID,
	}
}
