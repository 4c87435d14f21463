package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"chathub/contract"
	"chathub/domain"
	apperrors "chathub/errors"
	"chathub/moderation"
	"chathub/repositories"

	"github.com/samber/lo"
)

// ChatSummary is one entry of a user's chat list.
type ChatSummary struct {
	ChatID    domain.ChatID
	IsGroup   bool
	MemberIDs []domain.UserID
}

type IChatService interface {
	PostMessage(ctx context.Context, chatID domain.ChatID, senderID domain.UserID, rawContent string) (domain.Message, error)
	CreateChat(ctx context.Context, creatorID domain.UserID, memberIDs []domain.UserID, isGroup bool) (domain.Chat, []domain.UserID, error)
	ListChats(userID domain.UserID) ([]ChatSummary, error)
	History(userID domain.UserID, chatID domain.ChatID, limit, offset int) ([]domain.Message, error)
	Search(ctx context.Context, userID domain.UserID, chatID domain.ChatID, query string, limit int) ([]domain.Message, error)
	IsMember(chatID domain.ChatID, userID domain.UserID) (bool, error)
}

// ChatService turns an inbound message into a persisted record and a
// fan-out event across the live-connection registry.
type ChatService struct {
	log       *slog.Logger
	chats     repositories.IChatRepository
	messages  repositories.IMessageRepository
	search    repositories.ISearchRepository
	registry  contract.IRegistry
	moderator *moderation.Moderator
}

func NewChatService(log *slog.Logger, chats repositories.IChatRepository,
	messages repositories.IMessageRepository, search repositories.ISearchRepository,
	registry contract.IRegistry, moderator *moderation.Moderator) IChatService {
	return &ChatService{
		log:       log,
		chats:     chats,
		messages:  messages,
		search:    search,
		registry:  registry,
		moderator: moderator,
	}
}

// PostMessage validates, persists, and fans out one message.
//
// The sender's membership is NOT re-checked here: admission to the chat
// was verified once when the connection was established, and the posting
// path trusts that boundary. Persistence always completes before any
// delivery attempt, so no client can observe a message that is not
// durable yet. The member list is resolved fresh after the write, and
// includes the sender, whose other connections see their own message
// echoed back.
func (s *ChatService) PostMessage(ctx context.Context, chatID domain.ChatID,
	senderID domain.UserID, rawContent string) (domain.Message, error) {
	content := strings.TrimSpace(rawContent)
	if content == "" {
		return domain.Message{}, apperrors.ErrEmptyContent
	}
	if len([]rune(content)) > domain.MaxContentLength {
		return domain.Message{}, apperrors.ErrContentTooLong
	}

	exists, err := s.chats.Exists(chatID)
	if err != nil {
		return domain.Message{}, err
	}
	if !exists {
		return domain.Message{}, apperrors.ErrChatNotFound
	}

	content = s.moderator.Censor(content)

	message, err := s.messages.Create(chatID, senderID, content)
	if err != nil {
		return domain.Message{}, err
	}

	// The search index is auxiliary: an indexing failure must not
	// withhold a message that is already durable.
	if err := s.search.Index(message); err != nil {
		s.log.Warn("message indexing failed",
			"chat_id", int64(chatID),
			"message_id", int64(message.ID),
			"error", err)
	}

	memberIDs, err := s.chats.MembersOf(chatID)
	if err != nil {
		return domain.Message{}, err
	}

	payload, err := json.Marshal(domain.NewDeliveryFrame(message))
	if err != nil {
		return domain.Message{}, err
	}
	s.registry.DeliverToUsers(memberIDs, payload)

	return message, nil
}

// CreateChat persists a chat whose member set is memberIDs united with
// the creator, deduplicated. Members are not notified over the live
// channel; the caller's response carries the final member list.
func (s *ChatService) CreateChat(_ context.Context, creatorID domain.UserID,
	memberIDs []domain.UserID, isGroup bool) (domain.Chat, []domain.UserID, error) {
	members := lo.Uniq(append([]domain.UserID{creatorID}, memberIDs...))

	chat, err := s.chats.Create(members, isGroup)
	if err != nil {
		return domain.Chat{}, nil, err
	}

	s.log.Info("chat created",
		"chat_id", int64(chat.ID),
		"is_group", chat.IsGroup,
		"members", len(members))
	return chat, members, nil
}

func (s *ChatService) ListChats(userID domain.UserID) ([]ChatSummary, error) {
	chats, err := s.chats.ChatsOf(userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ChatSummary, 0, len(chats))
	for _, chat := range chats {
		memberIDs, err := s.chats.MembersOf(chat.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, ChatSummary{
			ChatID:    chat.ID,
			IsGroup:   chat.IsGroup,
			MemberIDs: memberIDs,
		})
	}
	return summaries, nil
}

// History returns one page of a chat's messages, oldest first. Unlike
// the posting path, reading history re-checks membership on every call.
func (s *ChatService) History(userID domain.UserID, chatID domain.ChatID,
	limit, offset int) ([]domain.Message, error) {
	isMember, err := s.chats.IsMember(chatID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperrors.ErrForbidden
	}
	return s.messages.ListByChat(chatID, limit, offset)
}

func (s *ChatService) Search(ctx context.Context, userID domain.UserID,
	chatID domain.ChatID, query string, limit int) ([]domain.Message, error) {
	isMember, err := s.chats.IsMember(chatID, userID)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, apperrors.ErrForbidden
	}

	ids, err := s.search.Search(ctx, chatID, query, limit)
	if err != nil {
		return nil, err
	}

	messages := make([]domain.Message, 0, len(ids))
	for _, id := range ids {
		message, err := s.messages.Get(chatID, id)
		if err != nil {
			// The index can briefly reference rows the store no longer
			// sees; skip rather than fail the whole search.
			s.log.Warn("search hit without a stored row",
				"chat_id", int64(chatID), "message_id", int64(id))
			continue
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func (s *ChatService) IsMember(chatID domain.ChatID, userID domain.UserID) (bool, error) {
	return s.chats.IsMember(chatID, userID)
}
