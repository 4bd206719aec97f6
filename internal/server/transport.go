package server

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrTransportClosed is returned by Send after Close.
	ErrTransportClosed = errors.New("transport closed")

	// ErrSlowConsumer is returned by Send when the outbound queue is
	// full. The hub treats any send error as an implicit disconnect,
	// so a peer that stops reading gets dropped instead of backing up
	// the broadcast path.
	ErrSlowConsumer = errors.New("slow consumer: send buffer full")
)

// wsTransport adapts a gorilla websocket connection to the hub's
// Transport interface. All data writes go through a single writer
// goroutine; control frames use WriteControl, which gorilla allows
// concurrently with data writes.
type wsTransport struct {
	conn         *websocket.Conn
	logger       *slog.Logger
	writeTimeout time.Duration

	send chan []byte
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newTransport(conn *websocket.Conn, sendBuffer int, writeTimeout time.Duration, logger *slog.Logger) *wsTransport {
	if logger == nil {
		logger = slog.Default()
	}

	return &wsTransport{
		conn:         conn,
		logger:       logger,
		writeTimeout: writeTimeout,
		send:         make(chan []byte, sendBuffer),
		done:         make(chan struct{}),
	}
}

// Send queues a frame for delivery. It never blocks: a full queue
// means the peer has stopped reading and the connection is forfeit.
func (t *wsTransport) Send(data []byte) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.mu.Unlock()

	select {
	case t.send <- data:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// Ping sends a WebSocket ping control frame.
func (t *wsTransport) Ping() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrTransportClosed
	}
	t.mu.Unlock()

	deadline := time.Now().Add(t.writeTimeout)
	return t.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

// Close shuts the transport down. Safe to call more than once; only
// the first call sends the close frame.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	close(t.done)

	t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return t.conn.Close()
}

// writePump drains the send queue onto the wire. It owns all data
// writes for the connection and exits when Close fires or a write
// fails.
func (t *wsTransport) writePump() {
	for {
		select {
		case <-t.done:
			return
		case frame := <-t.send:
			t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
			if err := t.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				t.logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}
