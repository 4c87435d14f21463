//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	apperrors "chathub/errors"
	"chathub/domain"

	"github.com/dgraph-io/badger/v4"
)

type IUserRepository interface {
	Create(username, passwordHash string) (domain.User, error)
	GetByUsername(username string) (domain.User, error)
	GetByID(id domain.UserID) (domain.User, error)
	GetAll() ([]domain.User, error)
}

// UserRepository persists accounts in BadgerDB. Two keys per user:
// "user:id:{id}" holds the record, "user:name:{username}" is the
// uniqueness index pointing back to the id.
type UserRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewUserRepository(db *badger.DB) (*UserRepository, error) {
	seq, err := db.GetSequence([]byte("seq:user"), 16)
	if err != nil {
		return nil, fmt.Errorf("user sequence: %w", err)
	}
	return &UserRepository{db: db, seq: seq}, nil
}

// Close releases the unused tail of the id sequence.
func (r *UserRepository) Close() error {
	return r.seq.Release()
}

type userRecord struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func userKey(id domain.UserID) []byte {
	return []byte(fmt.Sprintf("user:id:%020d", id))
}

func usernameKey(username string) []byte {
	return []byte("user:name:" + username)
}

func (r *UserRepository) Create(username, passwordHash string) (domain.User, error) {
	next, err := r.seq.Next()
	if err != nil {
		return domain.User{}, fmt.Errorf("user id: %w", err)
	}
	now := time.Now().UTC()
	record := userRecord{
		ID:           int64(next) + 1,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return domain.User{}, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(usernameKey(username)); err == nil {
			return apperrors.ErrUsernameTaken
		}
		if err := txn.Set(usernameKey(username), []byte(strconv.FormatInt(record.ID, 10))); err != nil {
			return err
		}
		return txn.Set(userKey(domain.UserID(record.ID)), data)
	})
	if err != nil {
		return domain.User{}, err
	}
	return toUser(record), nil
}

func (r *UserRepository) GetByUsername(username string) (domain.User, error) {
	var id int64
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(usernameKey(username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id, err = strconv.ParseInt(string(val), 10, 64)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return r.GetByID(domain.UserID(id))
}

func (r *UserRepository) GetByID(id domain.UserID) (domain.User, error) {
	var record userRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return toUser(record), nil
}

// GetAll returns every account ordered by id. The padded key format
// makes the prefix scan come back already sorted.
func (r *UserRepository) GetAll() ([]domain.User, error) {
	var users []domain.User
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte("user:id:")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var record userRecord
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				users = append(users, toUser(record))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return users, err
}

func toUser(record userRecord) domain.User {
	return domain.User{
		ID:           domain.UserID(record.ID),
		Username:     record.Username,
		PasswordHash: record.PasswordHash,
		CreatedAt:    record.CreatedAt,
		UpdatedAt:    record.UpdatedAt,
	}
}
