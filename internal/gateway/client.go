package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nexuscore/agentcore/internal/observability"
)

const (
	wsWriteWait       = 10 * time.Second
	wsPongWait        = 60 * time.Second
	wsPingPeriod      = wsPongWait * 9 / 10
	wsMaxPayloadBytes = 1 << 20
	wsSendBuffer      = 64
)

// Client is one connected WebSocket control-plane socket, bound to exactly
// one session (spec §4.1). It mirrors the teacher's per-connection
// read/write goroutine split: readLoop decodes inbound frames and dispatches
// them on the server, writeLoop drains the buffered send channel so a slow
// client never blocks the rest of the gateway.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	send      chan Frame
	ctx       context.Context
	cancel    context.CancelFunc
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func newClient(conn *websocket.Conn, sessionID string, logger *slog.Logger, metrics *observability.Metrics) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan Frame, wsSendBuffer),
		ctx:       ctx,
		cancel:    cancel,
		logger:    logger,
		metrics:   metrics,
	}
}

// enqueue buffers frame for delivery without blocking the caller. A client
// whose send buffer is full is disconnected rather than allowed to stall a
// broadcast to every other session.
func (c *Client) enqueue(frame Frame) {
	select {
	case c.send <- frame:
		c.metrics.SetQueueDepth(c.sessionID, len(c.send))
	default:
		c.logger.Warn("gateway: client send buffer full, disconnecting", "session_id", c.sessionID)
		c.cancel()
	}
}

// run blocks until the connection closes, driving the write loop in the
// background and the read loop (via dispatch) in the caller's goroutine. The
// connection itself is only closed once writeLoop has exited, so a frame
// enqueued right before shutdown (e.g. a final error frame) is flushed
// rather than raced by an immediate conn.Close().
func (c *Client) run(dispatch func(ctx context.Context, c *Client, frame Frame)) {
	writeDone := make(chan struct{})
	go func() {
		c.writeLoop()
		close(writeDone)
	}()

	c.readLoop(dispatch)

	c.cancel()
	<-writeDone
	_ = c.conn.Close()
}

// drainSend flushes any frames already buffered at the moment of
// cancellation, so a graceful "send this error, then close" doesn't race
// the write loop's own shutdown and silently drop the frame.
func (c *Client) drainSend() {
	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			_ = c.conn.WriteJSON(frame)
		default:
			return
		}
	}
}

func (c *Client) readLoop(dispatch func(ctx context.Context, c *Client, frame Frame)) {
	c.conn.SetReadLimit(wsMaxPayloadBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	first := true
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			c.enqueue(Frame{Type: FrameError, Payload: encodePayload(ErrorPayload{Message: "malformed frame: " + err.Error()})})
			continue
		}

		// The connect handshake gates every later frame (spec §4.1) and runs
		// inline so it completes before anything else is dispatched. Every
		// frame after it is dispatched on its own goroutine: a chat turn
		// blocked in Broker.Notify awaiting approval_response must not
		// starve this same read loop, since that response frame can only
		// ever arrive here.
		if first {
			dispatch(c.ctx, c, frame)
			first = false
		} else {
			go dispatch(c.ctx, c, frame)
		}

		select {
		case <-c.ctx.Done():
			return
		default:
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			c.drainSend()
			return
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
