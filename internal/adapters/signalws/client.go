// Package signalws is the gorilla/websocket signaling transport. It dials
// {base}/ws/{userId} and exchanges JSON text frames with the negotiation
// server. Malformed inbound frames are dropped without closing the channel.
package signalws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/factime/factime-go/internal/core"
	"github.com/factime/factime-go/internal/domain"
)

const (
	sendBuffer = 32
	writeWait  = 5 * time.Second
)

var (
	ErrClosed       = errors.New("signaling connection closed")
	ErrBackpressure = errors.New("signaling send buffer full")
)

// Dialer opens signaling channels against one base URL.
type Dialer struct {
	base string
	ws   *websocket.Dialer
}

func NewDialer(baseURL string) *Dialer {
	return &Dialer{
		base: strings.TrimRight(baseURL, "/"),
		ws:   websocket.DefaultDialer,
	}
}

// Dial opens the duplex channel and starts the read/write pumps. The
// returned conn is open as soon as Dial returns; sink.OnSignalClosed fires
// exactly once when the channel dies, whether remotely or via Close.
func (d *Dialer) Dial(ctx context.Context, params domain.SessionParams, sink core.SignalSink) (core.SignalConn, error) {
	endpoint := fmt.Sprintf("%s/ws/%s", d.base, url.PathEscape(params.UserID))
	ws, _, err := d.ws.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("signaling dial %s: %w", endpoint, err)
	}
	log.Info().Str("module", "signalws").Str("endpoint", endpoint).Msg("signaling channel open")

	c := &conn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
	}
	go c.writePump()
	go c.readPump(sink)
	return c, nil
}

type conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

// TrySend marshals and queues a message without blocking. It fails when the
// channel is closed or the outbound buffer is full; callers log and move on.
func (c *conn) TrySend(msg domain.SignalMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode signal frame: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close is idempotent. It wakes both pumps; the read pump reports closure
// to the sink.
func (c *conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
}

func (c *conn) writePump() {
	for data := range c.send {
		if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.Error().Err(err).Str("module", "signalws").Msg("writePump set deadline")
			c.Close()
			return
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "signalws").Msg("writePump write error")
			c.Close()
			return
		}
	}
}

func (c *conn) readPump(sink core.SignalSink) {
	var readErr error
	defer func() {
		c.Close()
		log.Info().Err(readErr).Str("module", "signalws").Msg("readPump closing")
		sink.OnSignalClosed(readErr)
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		msg, err := domain.DecodeSignalMessage(data)
		if err != nil {
			log.Warn().Err(err).Str("module", "signalws").Msg("malformed frame dropped")
			continue
		}
		sink.OnSignal(msg)
	}
}
