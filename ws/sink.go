package ws

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// writeWait bounds how long a single frame write may take before the
// connection is considered dead.
const writeWait = 10 * time.Second

// ErrSlowConsumer is returned by Deliver when the outbound buffer is
// full. The registry treats it like any other delivery failure and
// drops the connection.
var ErrSlowConsumer = fmt.Errorf("send buffer full")

// ConnSink wraps one WebSocket connection behind the delivery
// contract. All writes go through a single pump goroutine, since
// gorilla connections allow at most one concurrent writer; Deliver
// only enqueues and never touches the socket itself.
type ConnSink struct {
	id   uuid.UUID
	conn *websocket.Conn
	log  *slog.Logger

	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewConnSink starts the write pump for conn and returns the sink.
// bufferSize is the number of frames that may be queued before Deliver
// starts failing.
func NewConnSink(conn *websocket.Conn, bufferSize int, log *slog.Logger) *ConnSink {
	s := &ConnSink{
		id:   uuid.New(),
		conn: conn,
		log:  log,
		send: make(chan []byte, bufferSize),
		done: make(chan struct{}),
	}
	go s.writePump()
	return s
}

func (s *ConnSink) ID() uuid.UUID {
	return s.id
}

// Deliver enqueues one outbound frame. It never blocks: a full buffer
// means the peer is not draining fast enough and the error tells the
// registry to drop this connection.
func (s *ConnSink) Deliver(payload []byte) error {
	select {
	case <-s.done:
		return fmt.Errorf("sink closed")
	case s.send <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Close stops the write pump and closes the underlying connection.
// Safe to call more than once and from any goroutine.
func (s *ConnSink) Close() {
	s.once.Do(func() {
		close(s.done)
	})
}

func (s *ConnSink) writePump() {
	defer func() {
		if err := s.conn.Close(); err != nil {
			s.log.Debug("closing connection", slog.String("sink", s.id.String()), slog.Any("error", err))
		}
	}()

	for {
		select {
		case <-s.done:
			// Best effort; the peer may already be gone.
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				s.log.Debug("setting write deadline", slog.String("sink", s.id.String()), slog.Any("error", err))
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.Debug("writing frame", slog.String("sink", s.id.String()), slog.Any("error", err))
				return
			}
		}
	}
}
