//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"chathub/domain"

	"github.com/dgraph-io/badger/v4"
)

type IChatRepository interface {
	Create(memberIDs []domain.UserID, isGroup bool) (domain.Chat, error)
	Exists(chatID domain.ChatID) (bool, error)
	MembersOf(chatID domain.ChatID) ([]domain.UserID, error)
	IsMember(chatID domain.ChatID, userID domain.UserID) (bool, error)
	ChatsOf(userID domain.UserID) ([]domain.Chat, error)
}

// ChatRepository persists chats and their membership rows.
// Key layout:
//
//	chat:{id}             -> chat record
//	member:{chat}:{user}  -> marker, scanned to resolve a chat's members
//	userchat:{user}:{chat} -> marker, reverse index for ChatsOf
//
// The membership set is written once, in the same transaction as the
// chat itself, and never mutated afterwards.
type ChatRepository struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewChatRepository(db *badger.DB) (*ChatRepository, error) {
	seq, err := db.GetSequence([]byte("seq:chat"), 16)
	if err != nil {
		return nil, fmt.Errorf("chat sequence: %w", err)
	}
	return &ChatRepository{db: db, seq: seq}, nil
}

func (r *ChatRepository) Close() error {
	return r.seq.Release()
}

type chatRecord struct {
	ID        int64     `json:"id"`
	IsGroup   bool      `json:"is_group"`
	CreatedAt time.Time `json:"created_at"`
}

func chatKey(id domain.ChatID) []byte {
	return []byte(fmt.Sprintf("chat:%020d", id))
}

func memberPrefix(chatID domain.ChatID) []byte {
	return []byte(fmt.Sprintf("member:%020d:", chatID))
}

func memberKey(chatID domain.ChatID, userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("member:%020d:%020d", chatID, userID))
}

func userChatPrefix(userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("userchat:%020d:", userID))
}

func userChatKey(userID domain.UserID, chatID domain.ChatID) []byte {
	return []byte(fmt.Sprintf("userchat:%020d:%020d", userID, chatID))
}

// Create persists the chat and one membership row per member in a
// single transaction. Callers pass an already-deduplicated member set.
func (r *ChatRepository) Create(memberIDs []domain.UserID, isGroup bool) (domain.Chat, error) {
	next, err := r.seq.Next()
	if err != nil {
		return domain.Chat{}, fmt.Errorf("chat id: %w", err)
	}
	record := chatRecord{
		ID:        int64(next) + 1,
		IsGroup:   isGroup,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(record)
	if err != nil {
		return domain.Chat{}, err
	}

	chatID := domain.ChatID(record.ID)
	err = r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(chatKey(chatID), data); err != nil {
			return err
		}
		for _, userID := range memberIDs {
			if err := txn.Set(memberKey(chatID, userID), nil); err != nil {
				return err
			}
			if err := txn.Set(userChatKey(userID, chatID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Chat{}, err
	}
	return toChat(record), nil
}

func (r *ChatRepository) Exists(chatID domain.ChatID) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(chatKey(chatID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// MembersOf resolves the current membership set with a fresh prefix
// scan; nothing is cached between calls.
func (r *ChatRepository) MembersOf(chatID domain.ChatID) ([]domain.UserID, error) {
	var members []domain.UserID
	prefix := memberPrefix(chatID)
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw := it.Item().Key()[len(prefix):]
			userID, err := strconv.ParseInt(string(raw), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt member key %q: %w", it.Item().Key(), err)
			}
			members = append(members, domain.UserID(userID))
		}
		return nil
	})
	return members, err
}

func (r *ChatRepository) IsMember(chatID domain.ChatID, userID domain.UserID) (bool, error) {
	err := r.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(chatID, userID))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ChatsOf lists the chats a user belongs to, ordered by chat id.
func (r *ChatRepository) ChatsOf(userID domain.UserID) ([]domain.Chat, error) {
	var chatIDs []domain.ChatID
	prefix := userChatPrefix(userID)
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			raw := it.Item().Key()[len(prefix):]
			chatID, err := strconv.ParseInt(string(raw), 10, 64)
			if err != nil {
				return fmt.Errorf("corrupt userchat key %q: %w", it.Item().Key(), err)
			}
			chatIDs = append(chatIDs, domain.ChatID(chatID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	chats := make([]domain.Chat, 0, len(chatIDs))
	for _, chatID := range chatIDs {
		var record chatRecord
		err = r.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(chatKey(chatID))
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, &record)
			})
		})
		if err != nil {
			return nil, err
		}
		chats = append(chats, toChat(record))
	}
	return chats, nil
}

func toChat(record chatRecord) domain.Chat {
	return domain.Chat{
		ID:        domain.ChatID(record.ID),
		IsGroup:   record.IsGroup,
		CreatedAt: record.CreatedAt,
	}
}
