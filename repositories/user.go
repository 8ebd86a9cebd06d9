//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"jamlab/contract"
	"jamlab/errors"
)

type IUserRepository interface {
	CreateUser(username, email, hashedPassword string) (string, error)
	GetUserByEmail(email string) (User, error)
	Lookup(userID string) (contract.Identity, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the repository-layer representation of an account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	Roles        []string  `json:"roles"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateUser persists the account in BadgerDB under both its email and its
// generated ID, so logins resolve by email and the runtime resolves by ID.
// It returns the newly generated user ID.
func (u UserRepository) CreateUser(username, email, hashedPassword string) (string, error) {
	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hashedPassword,
		Roles:        []string{"user"},
		CreatedAt:    time.Now().UTC(),
	}

	data, err := json.Marshal(user)
	if err != nil {
		return "", fmt.Errorf("marshal failed: %w", err)
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		emailKey := []byte("user:" + email)
		if _, err = txn.Get(emailKey); err == nil {
			return errors.ErrUserAlreadyExists
		}
		if err = txn.Set(emailKey, data); err != nil {
			return err
		}
		return txn.Set([]byte("uid:"+user.ID), data)
	})

	return user.ID, err
}

// GetUserByEmail retrieves an account for the login path.
func (u UserRepository) GetUserByEmail(email string) (User, error) {
	return u.getUser("user:" + email)
}

// Lookup resolves a user ID to the identity the runtime attaches to
// members. Implements contract.IdentityDirectory.
func (u UserRepository) Lookup(userID string) (contract.Identity, error) {
	user, err := u.getUser("uid:" + userID)
	if err != nil {
		return contract.Identity{}, errors.NotFound("user %s is unknown", userID)
	}
	return contract.Identity{UserID: user.ID, DisplayName: user.Username}, nil
}

func (u UserRepository) getUser(key string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &user)
		})
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}
