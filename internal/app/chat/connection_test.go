package chat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

// dialTestConnection upgrades one request into a Connection with a running
// WritePump and returns both ends.
func dialTestConnection(t *testing.T) (*Connection, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	connCh := make(chan *Connection, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Error(err)
			return
		}

		c := NewConnection(ws, "alice", nil)
		go c.WritePump()
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { client.Close() })

	select {
	case c := <-connCh:
		return c, client
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server-side connection")
		return nil, nil
	}
}

func TestConnectionEnqueueReachesClient(t *testing.T) {
	req := require.New(t)
	server, client := dialTestConnection(t)
	defer server.Close()

	payload := []byte(`{"type":"room_list","rooms":[]}`)
	req.NoError(server.Enqueue(payload))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, received, err := client.ReadMessage()
	req.NoError(err)
	req.Equal(payload, received)
}

func TestConnectionCloseSendsCloseFrame(t *testing.T) {
	req := require.New(t)
	server, client := dialTestConnection(t)

	server.Close()

	// the client observes a normal closure, not an abrupt transport drop
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	req.True(
		websocket.IsCloseError(err, websocket.CloseNormalClosure),
		"expected a normal close frame, got %v", err,
	)

	req.True(server.Closed())
	req.ErrorIs(server.Enqueue([]byte(`{}`)), ErrConnectionClosed)
}
