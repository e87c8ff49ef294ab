package signalws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/factime/factime-go/internal/domain"
)

type recordingSink struct {
	mu       sync.Mutex
	received []domain.SignalMessage
	closed   int
	closeErr error
}

func (s *recordingSink) OnSignal(msg domain.SignalMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, msg)
}

func (s *recordingSink) OnSignalClosed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	s.closeErr = err
}

func (s *recordingSink) messages() []domain.SignalMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.SignalMessage, len(s.received))
	copy(out, s.received)
	return out
}

func (s *recordingSink) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var upgrader = websocket.Upgrader{}

// signalServer upgrades one websocket and hands it to fn.
func signalServer(t *testing.T, fn func(path string, ws *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer ws.Close()
		fn(r.URL.Path, ws)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestDialPathAndInboundFrames(t *testing.T) {
	gotPath := make(chan string, 1)
	srv := signalServer(t, func(path string, ws *websocket.Conn) {
		gotPath <- path
		frames := []string{
			`{"type":"answer","sdp":"v=0 answer"}`,
			`{not json`,
			`{"type":"mystery"}`,
			`{"type":"ai-response","text":"hello"}`,
		}
		for _, f := range frames {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// Hold the socket open while the client reads.
		time.Sleep(200 * time.Millisecond)
	})

	sink := &recordingSink{}
	conn, err := NewDialer(wsURL(srv)).Dial(context.Background(), domain.SessionParams{UserID: "u 1"}, sink)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "/ws/u%201", <-gotPath)

	// Malformed and unknown frames are dropped, valid ones delivered in order.
	require.Eventually(t, func() bool { return len(sink.messages()) == 2 }, time.Second, 10*time.Millisecond)
	msgs := sink.messages()
	assert.Equal(t, domain.MsgAnswer, msgs[0].Type)
	assert.Equal(t, "v=0 answer", msgs[0].SDP)
	assert.Equal(t, domain.MsgAIResponse, msgs[1].Type)
	assert.Equal(t, "hello", msgs[1].Text)
}

func TestDialAcceptsWSBaseURL(t *testing.T) {
	done := make(chan struct{})
	srv := signalServer(t, func(path string, ws *websocket.Conn) {
		assert.Equal(t, "/ws/u1", path)
		close(done)
	})

	sink := &recordingSink{}
	conn, err := NewDialer(wsURL(srv) + "/").Dial(context.Background(), domain.SessionParams{UserID: "u1"}, sink)
	require.NoError(t, err)
	defer conn.Close()
	<-done
}

func TestTrySendRoundTrip(t *testing.T) {
	type frame struct {
		data []byte
		err  error
	}
	got := make(chan frame, 1)
	srv := signalServer(t, func(_ string, ws *websocket.Conn) {
		_, data, err := ws.ReadMessage()
		got <- frame{data, err}
	})

	sink := &recordingSink{}
	conn, err := NewDialer(wsURL(srv)).Dial(context.Background(), domain.SessionParams{UserID: "u1"}, sink)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.TrySend(domain.NewOffer("v=0 offer", "tok")))

	f := <-got
	require.NoError(t, f.err)
	msg, err := domain.DecodeSignalMessage(f.data)
	require.NoError(t, err)
	assert.Equal(t, domain.MsgOffer, msg.Type)
	assert.Equal(t, "v=0 offer", msg.SDP)
	assert.Equal(t, "tok", msg.ConsentToken)
}

func TestServerCloseFiresSinkOnce(t *testing.T) {
	srv := signalServer(t, func(_ string, ws *websocket.Conn) {
		// Return immediately: the deferred close drops the socket.
	})

	sink := &recordingSink{}
	conn, err := NewDialer(wsURL(srv)).Dial(context.Background(), domain.SessionParams{UserID: "u1"}, sink)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return sink.closeCount() == 1 }, time.Second, 10*time.Millisecond)

	// A local Close after the remote drop must not re-fire the sink.
	conn.Close()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, sink.closeCount())
}

func TestTrySendAfterClose(t *testing.T) {
	srv := signalServer(t, func(_ string, ws *websocket.Conn) {
		time.Sleep(200 * time.Millisecond)
	})

	sink := &recordingSink{}
	conn, err := NewDialer(wsURL(srv)).Dial(context.Background(), domain.SessionParams{UserID: "u1"}, sink)
	require.NoError(t, err)

	conn.Close()
	conn.Close() // idempotent
	assert.ErrorIs(t, conn.TrySend(domain.NewOffer("v=0", "")), ErrClosed)
}

func TestDialFailure(t *testing.T) {
	sink := &recordingSink{}
	_, err := NewDialer("ws://127.0.0.1:1").Dial(context.Background(), domain.SessionParams{UserID: "u1"}, sink)
	require.Error(t, err)
	assert.Equal(t, 0, sink.closeCount(), "sink untouched when dial itself fails")
}
