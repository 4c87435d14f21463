//go:generate go run go.uber.org/mock/mockgen -source=token.go -destination=../mocks/mock_token_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"chathub/domain"

	"github.com/dgraph-io/badger/v4"
)

type ITokenRepository interface {
	Save(userID domain.UserID, token string) error
	Has(userID domain.UserID) (bool, error)
}

// TokenRepository stores the refresh token issued for a user, one per
// account, under "refresh:{user}".
type TokenRepository struct {
	db *badger.DB
}

func NewTokenRepository(db *badger.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

type tokenRecord struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	CreatedAt time.Time `json:"created_at"`
}

func refreshKey(userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("refresh:%020d", userID))
}

func (r *TokenRepository) Save(userID domain.UserID, token string) error {
	record := tokenRecord{
		Token:     token,
		TokenType: "bearer",
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(refreshKey(userID), data)
	})
}

func (r *TokenRepository) Has(userID domain.UserID) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(refreshKey(userID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}
