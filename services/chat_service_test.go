package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"chathub/domain"
	apperrors "chathub/errors"
	"chathub/moderation"
	"chathub/repositories"
	"chathub/runtime"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// testSink records delivered frames, already decoded.
type testSink struct {
	id     uuid.UUID
	mu     sync.Mutex
	frames []domain.DeliveryFrame
}

func newTestSink() *testSink {
	return &testSink{id: uuid.New()}
}

func (s *testSink) ID() uuid.UUID { return s.id }

func (s *testSink) Deliver(payload []byte) error {
	var frame domain.DeliveryFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *testSink) Close() {}

func (s *testSink) received() []domain.DeliveryFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.DeliveryFrame, len(s.frames))
	copy(out, s.frames)
	return out
}

type chatFixture struct {
	service  IChatService
	registry *runtime.Registry
	messages *repositories.MessageRepository
}

func newChatFixture(t *testing.T, moderator *moderation.Moderator) chatFixture {
	t.Helper()

	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	chats, err := repositories.NewChatRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = chats.Close() })

	messages, err := repositories.NewMessageRepository(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = messages.Close() })

	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	registry := runtime.NewRegistry(slog.Default())
	service := NewChatService(slog.Default(), chats, messages,
		repositories.NewSearchRepository(writer), registry, moderator)

	return chatFixture{service: service, registry: registry, messages: messages}
}

func TestChatService_PostMessage_Trims_And_Fans_Out(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t, nil)
	ctx := context.Background()

	alice, bob := domain.UserID(1), domain.UserID(2)
	chat, _, err := fx.service.CreateChat(ctx, alice, []domain.UserID{bob}, false)
	req.NoError(err)

	// Alice on two devices, Bob on one
	alicePhone := newTestSink()
	aliceLaptop := newTestSink()
	bobPhone := newTestSink()
	fx.registry.Register(alice, alicePhone)
	fx.registry.Register(alice, aliceLaptop)
	fx.registry.Register(bob, bobPhone)

	message, err := fx.service.PostMessage(ctx, chat.ID, alice, "  hello  ")
	req.NoError(err)
	req.Equal("hello", message.Content)
	req.NotZero(message.ID)

	// Every connection of every member got exactly one frame,
	// including the sender's own devices.
	for _, sink := range []*testSink{alicePhone, aliceLaptop, bobPhone} {
		frames := sink.received()
		req.Len(frames, 1)
		req.Equal("message", frames[0].Type)
		req.Equal("hello", frames[0].Content)
		req.Equal(int64(chat.ID), frames[0].ChatID)
		req.Equal(int64(alice), frames[0].SenderID)
		req.Equal(int64(message.ID), frames[0].ID)
		req.NotEmpty(frames[0].CreatedAt)
	}

	// Ids strictly increase between messages of one chat
	second, err := fx.service.PostMessage(ctx, chat.ID, bob, "hi back")
	req.NoError(err)
	req.Greater(second.ID, message.ID)
}

func TestChatService_PostMessage_Whitespace_Only(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t, nil)
	ctx := context.Background()

	alice := domain.UserID(1)
	chat, _, err := fx.service.CreateChat(ctx, alice, nil, false)
	req.NoError(err)

	sink := newTestSink()
	fx.registry.Register(alice, sink)

	_, err = fx.service.PostMessage(ctx, chat.ID, alice, "   ")
	req.ErrorIs(err, apperrors.ErrEmptyContent)

	// No record, no delivery
	history, err := fx.messages.ListByChat(chat.ID, 50, 0)
	req.NoError(err)
	req.Empty(history)
	req.Empty(sink.received())
}

func TestChatService_PostMessage_Unknown_Chat(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t, nil)

	_, err := fx.service.PostMessage(context.Background(), domain.ChatID(404), 1, "hi")
	req.ErrorIs(err, apperrors.ErrChatNotFound)

	history, err := fx.messages.ListByChat(domain.ChatID(404), 50, 0)
	req.NoError(err)
	req.Empty(history)
}

func TestChatService_PostMessage_Content_Too_Long(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t, nil)
	ctx := context.Background()

	chat, _, err := fx.service.CreateChat(ctx, 1, nil, false)
	req.NoError(err)

	long := make([]rune, domain.MaxContentLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err = fx.service.PostMessage(ctx, chat.ID, 1, string(long))
	req.ErrorIs(err, apperrors.ErrContentTooLong)
}

func TestChatService_PostMessage_Censors_Content(t *testing.T) {
	req := require.New(t)
	moderator, err := moderation.NewModerator([]string{"badger"}, '*')
	req.NoError(err)
	fx := newChatFixture(t, moderator)
	ctx := context.Background()

	alice := domain.UserID(1)
	chat, _, err := fx.service.CreateChat(ctx, alice, nil, false)
	req.NoError(err)

	sink := newTestSink()
	fx.registry.Register(alice, sink)

	message, err := fx.service.PostMessage(ctx, chat.ID, alice, "the badger strikes")
	req.NoError(err)

	// Stored history and delivered payload carry the censored form
	req.Equal("the ****** strikes", message.Content)
	frames := sink.received()
	req.Len(frames, 1)
	req.Equal("the ****** strikes", frames[0].Content)
}

func TestChatService_CreateChat_Deduplicates_Members(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t, nil)

	creator := domain.UserID(1)
	chat, members, err := fx.service.CreateChat(context.Background(), creator,
		[]domain.UserID{2, 2, 1, 3}, true)
	req.NoError(err)
	req.True(chat.IsGroup)
	req.ElementsMatch([]domain.UserID{1, 2, 3}, members)

	resolved, err := fx.service.IsMember(chat.ID, 3)
	req.NoError(err)
	req.True(resolved)
}

func TestChatService_ListChats(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t, nil)
	ctx := context.Background()

	alice, bob := domain.UserID(1), domain.UserID(2)
	first, _, err := fx.service.CreateChat(ctx, alice, []domain.UserID{bob}, false)
	req.NoError(err)
	_, _, err = fx.service.CreateChat(ctx, bob, nil, false)
	req.NoError(err)

	summaries, err := fx.service.ListChats(alice)
	req.NoError(err)
	req.Len(summaries, 1)
	req.Equal(first.ID, summaries[0].ChatID)
	req.ElementsMatch([]domain.UserID{alice, bob}, summaries[0].MemberIDs)
}

func TestChatService_History_Requires_Membership(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t, nil)
	ctx := context.Background()

	alice, eve := domain.UserID(1), domain.UserID(66)
	chat, _, err := fx.service.CreateChat(ctx, alice, nil, false)
	req.NoError(err)
	_, err = fx.service.PostMessage(ctx, chat.ID, alice, "private")
	req.NoError(err)

	_, err = fx.service.History(eve, chat.ID, 50, 0)
	req.ErrorIs(err, apperrors.ErrForbidden)

	history, err := fx.service.History(alice, chat.ID, 50, 0)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("private", history[0].Content)
}

func TestChatService_Search(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t, nil)
	ctx := context.Background()

	alice, eve := domain.UserID(1), domain.UserID(66)
	chat, _, err := fx.service.CreateChat(ctx, alice, nil, false)
	req.NoError(err)
	_, err = fx.service.PostMessage(ctx, chat.ID, alice, "the invoice is due friday")
	req.NoError(err)
	_, err = fx.service.PostMessage(ctx, chat.ID, alice, "lunch anyone")
	req.NoError(err)

	results, err := fx.service.Search(ctx, alice, chat.ID, "invoice", 10)
	req.NoError(err)
	req.Len(results, 1)
	req.Equal("the invoice is due friday", results[0].Content)

	_, err = fx.service.Search(ctx, eve, chat.ID, "invoice", 10)
	req.ErrorIs(err, apperrors.ErrForbidden)
}

// Scenario from the delivery contract: B leaves mid-conversation and
// the next message is silently dropped for them.
func TestChatService_Disconnected_Member_Is_Silently_Skipped(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t, nil)
	ctx := context.Background()

	alice, bob := domain.UserID(1), domain.UserID(2)
	chat, _, err := fx.service.CreateChat(ctx, alice, []domain.UserID{bob}, false)
	req.NoError(err)

	bobSink := newTestSink()
	fx.registry.Register(bob, bobSink)

	_, err = fx.service.PostMessage(ctx, chat.ID, alice, "hi there")
	req.NoError(err)
	frames := bobSink.received()
	req.Len(frames, 1)
	req.Equal("hi there", frames[0].Content)
	req.Equal(int64(alice), frames[0].SenderID)

	fx.registry.Unregister(bob, bobSink)

	_, err = fx.service.PostMessage(ctx, chat.ID, alice, "are you there")
	req.NoError(err)
	req.Len(bobSink.received(), 1)

	// Both messages are durable regardless of who was listening
	history, err := fx.service.History(alice, chat.ID, 50, 0)
	req.NoError(err)
	req.Len(history, 2)
}

func TestChatService_Concurrent_Posts_Get_Unique_Ids(t *testing.T) {
	req := require.New(t)
	fx := newChatFixture(t, nil)
	ctx := context.Background()

	alice := domain.UserID(1)
	chat, _, err := fx.service.CreateChat(ctx, alice, nil, false)
	req.NoError(err)

	const posts = 20
	ids := make(chan domain.MessageID, posts)
	var wg sync.WaitGroup
	for i := 0; i < posts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			message, err := fx.service.PostMessage(ctx, chat.ID, alice, fmt.Sprintf("message %d", n))
			require.NoError(t, err)
			ids <- message.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[domain.MessageID]struct{})
	for id := range ids {
		_, duplicate := seen[id]
		req.False(duplicate)
		seen[id] = struct{}{}
	}
	req.Len(seen, posts)
}
