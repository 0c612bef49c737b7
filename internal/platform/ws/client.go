package ws

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/giapdoan01/SoulDungeonBE/internal/multiplayer"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Close reason text is limited by the control frame size.
	maxCloseText = 120
)

// CloseJoinRefused is the close code sent when a room refuses a join.
const CloseJoinRefused = 4001

// client is one WebSocket connection. It implements
// multiplayer.SessionHandle so rooms can send to it directly.
type client struct {
	id     multiplayer.SessionID
	conn   *websocket.Conn
	send   chan multiplayer.ServerEvent
	logger *log.Logger

	maxMessageSize int64

	closeOnce sync.Once
	done      chan struct{}
	closeCode int
	closeText string
}

func newClient(id multiplayer.SessionID, conn *websocket.Conn, cfg Config, logger *log.Logger) *client {
	return &client{
		id:             id,
		conn:           conn,
		send:           make(chan multiplayer.ServerEvent, cfg.SendQueueSize),
		logger:         logger,
		maxMessageSize: cfg.MaxMessageSize,
		done:           make(chan struct{}),
	}
}

// ID returns the session identifier.
func (c *client) ID() multiplayer.SessionID {
	return c.id
}

// Send queues an event for the write pump. A client whose queue is full
// is too slow to keep up with state patches and gets disconnected.
func (c *client) Send(evt multiplayer.ServerEvent) {
	select {
	case <-c.done:
		return
	default:
	}

	select {
	case c.send <- evt:
	default:
		c.logger.Warn("send queue full, disconnecting", "event", evt.EventType())
		c.close(websocket.CloseTryAgainLater, "send queue overflow")
	}
}

// Done is closed once the connection starts shutting down.
func (c *client) Done() <-chan struct{} {
	return c.done
}

// Close ends the connection with a normal closure.
func (c *client) Close() {
	c.close(websocket.CloseNormalClosure, "closed by server")
}

// close begins shutdown. The write pump flushes queued events, sends a
// close frame with code and text, then closes the socket.
func (c *client) close(code int, text string) {
	c.closeOnce.Do(func() {
		c.closeCode = code
		c.closeText = truncateCloseText(text)
		close(c.done)
	})
}

// truncateCloseText cuts text to maxCloseText bytes without splitting a
// UTF-8 sequence.
func truncateCloseText(text string) string {
	if len(text) <= maxCloseText {
		return text
	}
	n := maxCloseText
	for n > 0 && !utf8.RuneStart(text[n]) {
		n--
	}
	return text[:n]
}

// readPump decodes frames from the peer and dispatches them to room.
// It detaches from the room when the connection ends.
func (c *client) readPump(room multiplayer.Room) {
	defer func() {
		room.Detach(c)
		c.close(websocket.CloseNormalClosure, "")
	}()

	c.conn.SetReadLimit(c.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn("read error", "error", err)
			}
			return
		}

		msg, err := decodeFrame(data)
		if err != nil {
			c.logger.Debug("dropping frame", "error", err)
			continue
		}
		room.Dispatch(c.id, msg)
	}
}

// writePump drains the send queue into the socket and keeps the
// connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case evt := <-c.send:
			if err := c.write(evt); err != nil {
				c.logger.Debug("write failed", "error", err)
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-c.done:
			c.flush()
			msg := websocket.FormatCloseMessage(c.closeCode, c.closeText)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}

// flush writes whatever is still queued, so a final game:end reaches the
// peer before the close frame.
func (c *client) flush() {
	for {
		select {
		case evt := <-c.send:
			if err := c.write(evt); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *client) write(evt multiplayer.ServerEvent) error {
	data, err := encodeEvent(evt)
	if err != nil {
		c.logger.Error("failed to encode event", "error", err)
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
