package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaron8/netmon/metrics"
)

// newFrameServer serves one websocket connection per dial and writes frames
// to it in order
func newFrameServer(t *testing.T, frames ...[]byte) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, f); err != nil {
				return
			}
		}
		// hold the connection until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// tests that a frame above the read limit fails the read
func TestWSDialer_ReadLimit(t *testing.T) {
	small := []byte(`{"type":"attack_detection","data":{"attack_detected":false}}`)
	huge := []byte(`{"type":"x","pad":"` + strings.Repeat("a", 4096) + `"}`)
	url := newFrameServer(t, small, huge)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := WSDialer{HandshakeTimeout: time.Second, ReadLimit: 1024}.Dial(ctx, url)
	require.NoError(t, err)
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, small, data)

	_, _, err = conn.ReadMessage()
	assert.ErrorIs(t, err, websocket.ErrReadLimit)
	assert.False(t, isCleanClose(err))
}

func TestWSDialer_NoLimit(t *testing.T) {
	huge := []byte(strings.Repeat("a", 4096))
	url := newFrameServer(t, huge)

	conn, err := WSDialer{HandshakeTimeout: time.Second}.Dial(context.Background(), url)
	require.NoError(t, err)
	defer conn.Close()

	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Len(t, data, 4096)
}

func TestNew_DefaultReadLimit(t *testing.T) {
	c := New(Config{URL: "ws://localhost:1/ws"}, metrics.NewStore(0), metrics.NewAttackFlag())
	assert.Equal(t, WSDialer{HandshakeTimeout: 10 * time.Second, ReadLimit: DefaultReadLimit}, c.dialer)

	c = New(Config{URL: "ws://localhost:1/ws", ReadLimit: 2048}, metrics.NewStore(0), metrics.NewAttackFlag())
	assert.Equal(t, int64(2048), c.dialer.(WSDialer).ReadLimit)
}
