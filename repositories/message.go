//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "chathub/errors"
	"chathub/domain"

	"github.com/dgraph-io/badger/v4"
)

type IMessageRepository interface {
	Create(chatID domain.ChatID, senderID domain.UserID, content string) (domain.Message, error)
	ListByChat(chatID domain.ChatID, limit, offset int) ([]domain.Message, error)
	Get(chatID domain.ChatID, id domain.MessageID) (domain.Message, error)
}

// MessageRepository persists messages in BadgerDB.
// The key is "msg:{chat}:{id}" with zero-padded decimal fields so a
// prefix scan over one chat comes back in insertion order. Ids come
// from a Badger sequence and are strictly increasing across the whole
// store, which also orders them within each chat.
type MessageRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewMessageRepository(db *badger.DB) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte("seq:msg"), 64)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, seq: seq}, nil
}

func (r *MessageRepository) Close() error {
	return r.seq.Release()
}

type messageRecord struct {
	ID        int64     `json:"id"`
	ChatID    int64     `json:"chat_id"`
	SenderID  int64     `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func messagePrefix(chatID domain.ChatID) []byte {
	return []byte(fmt.Sprintf("msg:%020d:", chatID))
}

func messageKey(chatID domain.ChatID, id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("msg:%020d:%020d", chatID, id))
}

// Create assigns the id and the creation timestamp here, never in the
// caller, then persists the row. The returned message carries both.
func (r *MessageRepository) Create(chatID domain.ChatID, senderID domain.UserID, content string) (domain.Message, error) {
	next, err := r.seq.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("message id: %w", err)
	}
	record := messageRecord{
		ID:        int64(next) + 1,
		ChatID:    int64(chatID),
		SenderID:  int64(senderID),
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return domain.Message{}, err
	}

	err = r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(chatID, domain.MessageID(record.ID)), data)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(record), nil
}

// ListByChat returns one page of history: the newest messages selected
// by descending id, handed back oldest-first the way clients render
// them. Offset skips newest entries, so (limit=50, offset=0) is the
// latest page.
func (r *MessageRepository) ListByChat(chatID domain.ChatID, limit, offset int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var page []domain.Message
	prefix := messagePrefix(chatID)
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Reverse iteration starts past the largest possible id for
		// this chat prefix.
		seekKey := append(append([]byte{}, prefix...), []byte("99999999999999999999")...)
		skipped := 0
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}
			if len(page) == limit {
				break
			}
			err := it.Item().Value(func(val []byte) error {
				var record messageRecord
				if err := json.Unmarshal(val, &record); err != nil {
					return err
				}
				page = append(page, toMessage(record))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Oldest first
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

func (r *MessageRepository) Get(chatID domain.ChatID, id domain.MessageID) (domain.Message, error) {
	var record messageRecord
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(messageKey(chatID, id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Message{}, apperrors.ErrChatNotFound
	}
	if err != nil {
		return domain.Message{}, err
	}
	return toMessage(record), nil
}

func toMessage(record messageRecord) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(record.ID),
		ChatID:    domain.ChatID(record.ChatID),
		SenderID:  domain.UserID(record.SenderID),
		Content:   record.Content,
		CreatedAt: record.CreatedAt,
	}
}
