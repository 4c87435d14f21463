// Package ws carries the live side of the backend: one WebSocket
// session per connected device, fed by the connection registry.
//
// The route is scoped to a chat (/ws/message/{chatID}) and membership
// is checked once at upgrade time, but the registry itself is keyed by
// user, so a single socket receives messages from every chat the user
// belongs to.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"chathub/auth"
	"chathub/contract"
	"chathub/domain"
	apperrors "chathub/errors"
	"chathub/services"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// maxFrameSize bounds inbound frames well above the message content
// limit to leave room for the JSON envelope.
const maxFrameSize = 8 << 10

// SessionHandler upgrades HTTP requests into chat sessions and runs
// the per-connection read loop.
type SessionHandler struct {
	log        *slog.Logger
	manager    *auth.TokenManager
	chats      services.IChatService
	registry   contract.IRegistry
	upgrader   websocket.Upgrader
	bufferSize int
}

func NewSessionHandler(log *slog.Logger, manager *auth.TokenManager, chats services.IChatService,
	registry contract.IRegistry, bufferSize int) *SessionHandler {
	return &SessionHandler{
		log:      log,
		manager:  manager,
		chats:    chats,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser clients cannot set headers on WebSocket
			// requests; auth happens via the token query parameter.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		bufferSize: bufferSize,
	}
}

// ServeHTTP authenticates the request, checks chat membership and then
// hands the connection over to the session loop. Auth failures close
// with 4401, membership failures with 4403, both after the upgrade so
// the client sees a proper close code instead of a failed handshake.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("upgrade failed", slog.Any("error", err))
		return
	}

	userID, err := h.manager.Verify(auth.ExtractCredential(r))
	if err != nil {
		closeWith(conn, apperrors.CloseUnauthenticated, "not authenticated")
		return
	}

	chatID, err := parseChatID(r)
	if err != nil {
		closeWith(conn, apperrors.CloseForbidden, "not a member of this chat")
		return
	}
	member, err := h.chats.IsMember(chatID, userID)
	if err != nil || !member {
		closeWith(conn, apperrors.CloseForbidden, "not a member of this chat")
		return
	}

	h.serve(r, conn, userID, chatID)
}

// serve owns the connection from registration to teardown. The sink is
// unregistered exactly once on the way out, whether the peer hung up,
// the write pump died, or the server is shutting down.
func (h *SessionHandler) serve(r *http.Request, conn *websocket.Conn, userID domain.UserID, chatID domain.ChatID) {
	conn.SetReadLimit(maxFrameSize)

	sink := NewConnSink(conn, h.bufferSize, h.log)
	h.registry.Register(userID, sink)
	h.log.Info("session opened",
		slog.Int64("user_id", int64(userID)),
		slog.Int64("chat_id", int64(chatID)),
		slog.String("sink", sink.ID().String()))

	defer func() {
		h.registry.Unregister(userID, sink)
		sink.Close()
		h.log.Info("session closed",
			slog.Int64("user_id", int64(userID)),
			slog.String("sink", sink.ID().String()))
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("read failed", slog.Int64("user_id", int64(userID)), slog.Any("error", err))
			}
			return
		}
		h.dispatch(r, sink, userID, chatID, data)
	}
}

// dispatch handles one inbound frame. Failures here are local: the
// sender gets an error frame and the session stays open.
func (h *SessionHandler) dispatch(r *http.Request, sink *ConnSink, userID domain.UserID, chatID domain.ChatID, data []byte) {
	frame, err := domain.DecodeFrame(data)
	if err != nil {
		h.reply(sink, domain.NewErrorFrame(apperrors.FrameTag(err)))
		return
	}

	switch f := frame.(type) {
	case domain.PingFrame:
		h.reply(sink, domain.NewPongFrame(time.Now()))
	case domain.MessageFrame:
		if _, err := h.chats.PostMessage(r.Context(), chatID, userID, f.Content); err != nil {
			h.reply(sink, domain.NewErrorFrame(apperrors.FrameTag(err)))
		}
		// The persisted message comes back through the registry
		// fan-out, sender included; no direct echo here.
	}
}

func (h *SessionHandler) reply(sink *ConnSink, frame any) {
	payload, err := json.Marshal(frame)
	if err != nil {
		h.log.Error("encoding frame", slog.Any("error", err))
		return
	}
	if err := sink.Deliver(payload); err != nil {
		h.log.Debug("replying to sender", slog.Any("error", err))
	}
}

func parseChatID(r *http.Request) (domain.ChatID, error) {
	raw := chi.URLParam(r, "chatID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ErrChatNotFound
	}
	return domain.ChatID(id), nil
}

func closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
