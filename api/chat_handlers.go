package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"chathub/auth"
	"chathub/domain"
	apperrors "chathub/errors"
	"chathub/services"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

const (
	defaultHistoryLimit = 50
	defaultSearchLimit  = 20
)

// ChatResponse describes one chat with its member ids.
type ChatResponse struct {
	ChatID    int64   `json:"chat_id"`
	IsGroup   bool    `json:"is_group"`
	MemberIDs []int64 `json:"member_ids"`
}

// MessageResponse is a persisted message as the REST surface shows it.
type MessageResponse struct {
	ID        int64  `json:"id"`
	ChatID    int64  `json:"chat_id"`
	SenderID  int64  `json:"sender_id"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

func toMessageResponse(m domain.Message) MessageResponse {
	return MessageResponse{
		ID:        int64(m.ID),
		ChatID:    int64(m.ChatID),
		SenderID:  int64(m.SenderID),
		Content:   m.Content,
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toMessageResponses(messages []domain.Message) []MessageResponse {
	return lo.Map(messages, func(m domain.Message, _ int) MessageResponse {
		return toMessageResponse(m)
	})
}

// CreateChat opens a direct or group chat. The creator is always a
// member, whether or not the request lists them.
func (h *Handler) CreateChat(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserFromContext(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req auth.ChatCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if err := auth.ValidateChatCreate(req); err != nil {
		h.badRequest(w, "member_ids must list at least one positive user id")
		return
	}

	memberIDs := lo.Map(req.MemberIDs, func(id int64, _ int) domain.UserID {
		return domain.UserID(id)
	})
	chat, members, err := h.chats.CreateChat(r.Context(), userID, memberIDs, req.IsGroup)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, ChatResponse{
		ChatID:  int64(chat.ID),
		IsGroup: chat.IsGroup,
		MemberIDs: lo.Map(members, func(id domain.UserID, _ int) int64 {
			return int64(id)
		}),
	})
}

// ListChats returns every chat the requester belongs to.
func (h *Handler) ListChats(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserFromContext(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	summaries, err := h.chats.ListChats(userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lo.Map(summaries, func(s services.ChatSummary, _ int) ChatResponse {
		return ChatResponse{
			ChatID:  int64(s.ChatID),
			IsGroup: s.IsGroup,
			MemberIDs: lo.Map(s.MemberIDs, func(id domain.UserID, _ int) int64 {
				return int64(id)
			}),
		}
	}))
}

// History pages through a chat oldest-first.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserFromContext(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	chatID, err := chatIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	limit := queryInt(r, "limit", defaultHistoryLimit)
	offset := queryInt(r, "offset", 0)

	messages, err := h.chats.History(userID, chatID, limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toMessageResponses(messages))
}

// PostMessage is the REST send path; it goes through the same delivery
// pipeline as a WebSocket frame.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserFromContext(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	chatID, err := chatIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var req auth.MessageCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if err := auth.ValidateMessageCreate(req); err != nil {
		h.badRequest(w, "content must be 1 to 4096 characters")
		return
	}

	member, err := h.chats.IsMember(chatID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if !member {
		h.writeError(w, apperrors.ErrForbidden)
		return
	}

	message, err := h.chats.PostMessage(r.Context(), chatID, userID, req.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toMessageResponse(message))
}

// SearchMessages runs a full-text query inside one chat.
func (h *Handler) SearchMessages(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserFromContext(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	chatID, err := chatIDParam(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		h.badRequest(w, "q is required")
		return
	}
	limit := queryInt(r, "limit", defaultSearchLimit)

	messages, err := h.chats.Search(r.Context(), userID, chatID, query, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toMessageResponses(messages))
}

func chatIDParam(r *http.Request) (domain.ChatID, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ErrChatNotFound
	}
	return domain.ChatID(id), nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
