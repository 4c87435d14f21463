package repositories

import (
	"context"
	"testing"

	apperrors "chathub/errors"
	"chathub/domain"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUserRepository_Create_And_Get(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo, err := NewUserRepository(db)
	req.NoError(err)
	defer func() { _ = repo.Close() }()

	created, err := repo.Create("alice", "hash-a")
	req.NoError(err)
	req.Equal("alice", created.Username)
	req.NotZero(created.ID)
	req.False(created.CreatedAt.IsZero())

	byName, err := repo.GetByUsername("alice")
	req.NoError(err)
	req.Equal(created.ID, byName.ID)
	req.Equal("hash-a", byName.PasswordHash)

	byID, err := repo.GetByID(created.ID)
	req.NoError(err)
	req.Equal("alice", byID.Username)
}

func TestUserRepository_Duplicate_Username(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo, err := NewUserRepository(db)
	req.NoError(err)
	defer func() { _ = repo.Close() }()

	_, err = repo.Create("bob", "hash-1")
	req.NoError(err)

	_, err = repo.Create("bob", "hash-2")
	req.ErrorIs(err, apperrors.ErrUsernameTaken)
}

func TestUserRepository_Unknown_User(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo, err := NewUserRepository(db)
	req.NoError(err)
	defer func() { _ = repo.Close() }()

	_, err = repo.GetByUsername("ghost")
	req.ErrorIs(err, apperrors.ErrUserNotFound)

	_, err = repo.GetByID(domain.UserID(999))
	req.ErrorIs(err, apperrors.ErrUserNotFound)
}

func TestUserRepository_GetAll_Ordered(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo, err := NewUserRepository(db)
	req.NoError(err)
	defer func() { _ = repo.Close() }()

	first, err := repo.Create("alice", "h")
	req.NoError(err)
	second, err := repo.Create("bob", "h")
	req.NoError(err)

	all, err := repo.GetAll()
	req.NoError(err)
	req.Len(all, 2)
	req.Equal(first.ID, all[0].ID)
	req.Equal(second.ID, all[1].ID)
}

func TestChatRepository_Create_And_Membership(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo, err := NewChatRepository(db)
	req.NoError(err)
	defer func() { _ = repo.Close() }()

	members := []domain.UserID{1, 2, 3}
	chat, err := repo.Create(members, true)
	req.NoError(err)
	req.True(chat.IsGroup)
	req.NotZero(chat.ID)

	exists, err := repo.Exists(chat.ID)
	req.NoError(err)
	req.True(exists)

	exists, err = repo.Exists(domain.ChatID(4242))
	req.NoError(err)
	req.False(exists)

	resolved, err := repo.MembersOf(chat.ID)
	req.NoError(err)
	req.ElementsMatch(members, resolved)

	isMember, err := repo.IsMember(chat.ID, 2)
	req.NoError(err)
	req.True(isMember)

	isMember, err = repo.IsMember(chat.ID, 99)
	req.NoError(err)
	req.False(isMember)
}

func TestChatRepository_ChatsOf_Ordered_By_Id(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo, err := NewChatRepository(db)
	req.NoError(err)
	defer func() { _ = repo.Close() }()

	userID := domain.UserID(5)
	first, err := repo.Create([]domain.UserID{userID, 6}, false)
	req.NoError(err)
	_, err = repo.Create([]domain.UserID{6, 7}, false) // user 5 not a member
	req.NoError(err)
	third, err := repo.Create([]domain.UserID{userID, 7}, true)
	req.NoError(err)

	chats, err := repo.ChatsOf(userID)
	req.NoError(err)
	req.Len(chats, 2)
	req.Equal(first.ID, chats[0].ID)
	req.Equal(third.ID, chats[1].ID)
}

func TestMessageRepository_Ids_Strictly_Increasing(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo, err := NewMessageRepository(db)
	req.NoError(err)
	defer func() { _ = repo.Close() }()

	chatID := domain.ChatID(1)
	var lastID domain.MessageID
	for i := 0; i < 10; i++ {
		message, err := repo.Create(chatID, 1, "tick")
		req.NoError(err)
		req.Greater(message.ID, lastID)
		req.False(message.CreatedAt.IsZero())
		lastID = message.ID
	}
}

func TestMessageRepository_History_Oldest_First(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo, err := NewMessageRepository(db)
	req.NoError(err)
	defer func() { _ = repo.Close() }()

	chatID := domain.ChatID(3)
	contents := []string{"one", "two", "three"}
	for _, content := range contents {
		_, err = repo.Create(chatID, 1, content)
		req.NoError(err)
	}

	page, err := repo.ListByChat(chatID, 50, 0)
	req.NoError(err)
	req.Len(page, 3)
	for i, message := range page {
		req.Equal(contents[i], message.Content)
	}
}

func TestMessageRepository_Pagination(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo, err := NewMessageRepository(db)
	req.NoError(err)
	defer func() { _ = repo.Close() }()

	chatID := domain.ChatID(7)
	for i := 0; i < 10; i++ {
		_, err = repo.Create(chatID, 1, "n")
		req.NoError(err)
	}

	// Latest page of 4
	latest, err := repo.ListByChat(chatID, 4, 0)
	req.NoError(err)
	req.Len(latest, 4)

	// Next page backwards
	previous, err := repo.ListByChat(chatID, 4, 4)
	req.NoError(err)
	req.Len(previous, 4)
	req.Less(previous[len(previous)-1].ID, latest[0].ID)
}

func TestMessageRepository_Chats_Are_Isolated(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo, err := NewMessageRepository(db)
	req.NoError(err)
	defer func() { _ = repo.Close() }()

	_, err = repo.Create(domain.ChatID(1), 1, "for chat one")
	req.NoError(err)
	_, err = repo.Create(domain.ChatID(2), 1, "for chat two")
	req.NoError(err)

	page, err := repo.ListByChat(domain.ChatID(1), 50, 0)
	req.NoError(err)
	req.Len(page, 1)
	req.Equal("for chat one", page[0].Content)
}

func TestTokenRepository_Save_And_Has(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repo := NewTokenRepository(db)
	userID := domain.UserID(11)

	has, err := repo.Has(userID)
	req.NoError(err)
	req.False(has)

	req.NoError(repo.Save(userID, "refresh-token-value"))

	has, err = repo.Has(userID)
	req.NoError(err)
	req.True(has)
}

func TestSearchRepository_Index_And_Search(t *testing.T) {
	req := require.New(t)
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	req.NoError(err)
	defer func() { _ = writer.Close() }()

	repo := NewSearchRepository(writer)
	messages := []domain.Message{
		{ID: 1, ChatID: 1, SenderID: 1, Content: "the quarterly invoice is ready"},
		{ID: 2, ChatID: 1, SenderID: 2, Content: "lunch plans anyone"},
		{ID: 3, ChatID: 2, SenderID: 1, Content: "invoice for the other chat"},
	}
	for _, message := range messages {
		req.NoError(repo.Index(message))
	}

	ids, err := repo.Search(context.Background(), domain.ChatID(1), "invoice", 10)
	req.NoError(err)
	req.Equal([]domain.MessageID{1}, ids)

	ids, err = repo.Search(context.Background(), domain.ChatID(1), "teapot", 10)
	req.NoError(err)
	req.Empty(ids)
}
