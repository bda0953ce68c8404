//go:generate go run go.uber.org/mock/mockgen -source=users.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"campushub/domain"
	"campushub/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(email, hashedPassword, name, affiliation string) (string, error)
	GetUserByEmail(email string) (User, error)
	GetUser(userID string) (User, error)
	UpdatePresence(userID string, rec domain.PresenceRecord) error
}

// User is the stored document. Keys:
//
//	user:{id}        -> JSON document
//	useremail:{email} -> id (login lookup)
type User struct {
	ID           string                `json:"id"`
	Email        string                `json:"email"`
	Name         string                `json:"name"`
	Picture      string                `json:"picture,omitempty"`
	Affiliation  string                `json:"affiliation,omitempty"`
	PasswordHash string                `json:"passwordHash"`
	Roles        []string              `json:"roles"`
	CreatedAt    time.Time             `json:"createdAt"`
	Presence     domain.PresenceRecord `json:"presence"`
}

// Snapshot is the denormalized identity cached on connections.
func (u User) Snapshot() domain.Identity {
	return domain.Identity{ID: u.ID, Name: u.Name, Picture: u.Picture, Affiliation: u.Affiliation}
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) *UserRepository {
	return &UserRepository{db: db}
}

func userKey(id string) []byte     { return []byte("user:" + id) }
func emailKey(email string) []byte { return []byte("useremail:" + email) }

// CreateUser persists a new user and returns the generated ID.
// The email index entry doubles as the uniqueness guard.
func (r *UserRepository) CreateUser(email, hashedPassword, name, affiliation string) (string, error) {
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		Affiliation:  affiliation,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err := txn.Set(emailKey(email), []byte(user.ID)); err != nil {
			return err
		}
		return txn.Set(userKey(user.ID), data)
	})
	return user.ID, err
}

func (r *UserRepository) GetUserByEmail(email string) (User, error) {
	var id string
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return User{}, mapStoreErr(err)
	}
	return r.GetUser(id)
}

func (r *UserRepository) GetUser(userID string) (User, error) {
	var user User
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return User{}, mapStoreErr(err)
	}
	return user, nil
}

// UpdatePresence persists the "last seen" record written when the last
// connection drops or a fresh one arrives.
func (r *UserRepository) UpdatePresence(userID string, rec domain.PresenceRecord) error {
	return r.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(userID))
		if err != nil {
			return mapStoreErr(err)
		}
		var user User
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		}); err != nil {
			return err
		}
		user.Presence = rec
		data, err := json.Marshal(user)
		if err != nil {
			return err
		}
		return txn.Set(userKey(userID), data)
	})
}

// mapStoreErr narrows badger errors to the shared taxonomy.
func mapStoreErr(err error) error {
	if err == badger.ErrKeyNotFound {
		return errors.ErrNotFound
	}
	return err
}
