package server

import (
	"context"
	"net"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wisp/internal/config"
	"wisp/internal/vm"
)

// testFactory writes to the process streams unless the server overrides
// them.
func testFactory(session string, opts ...vm.Option) *vm.VM {
	return vm.New(append([]vm.Option{vm.WithStdin(blockingReader{}), vm.WithStderr(os.Stderr)}, opts...)...)
}

// blockingReader never returns, like a terminal nobody types into.
type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) {
	select {}
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, src string) Reply {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(src)))
	var reply Reply
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	s := New(config.ServerConfig{MaxMessageBytes: 1 << 16}, testFactory, zerolog.Nop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, "ws" + strings.TrimPrefix(ts.URL, "http") + "/eval"
}

func TestEvalSession(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url)

	reply := send(t, conn, `x = 1 print("hi") return x + 1, "two"`)
	assert.True(t, reply.OK)
	assert.Equal(t, []string{"2", "two"}, reply.Results)
	assert.Equal(t, "hi\n", reply.Output)
	assert.NotEmpty(t, reply.Session)

	again := send(t, conn, "return x")
	assert.Equal(t, []string{"1"}, again.Results)
	assert.Equal(t, reply.Session, again.Session)
	assert.Empty(t, again.Output)
}

func TestEvalErrors(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url)

	reply := send(t, conn, `print("before") error("boom")`)
	assert.False(t, reply.OK)
	assert.Equal(t, "boom", reply.Error)
	assert.Equal(t, "before\n", reply.Output)

	reply = send(t, conn, "x = = 1")
	assert.False(t, reply.OK)
	assert.NotEmpty(t, reply.Error)

	// the session survives failed chunks
	reply = send(t, conn, "return 3")
	assert.True(t, reply.OK)
	assert.Equal(t, []string{"3"}, reply.Results)
}

func TestSessionCannotReachProcessStreams(t *testing.T) {
	_, url := newTestServer(t)
	conn := dial(t, url)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	reply := send(t, conn, "return dofile()")
	assert.True(t, reply.OK)
	require.Len(t, reply.Results, 1)
	assert.True(t, strings.HasPrefix(reply.Results[0], "userdata"), reply.Results[0])

	reply = send(t, conn, `print("out") error("boom")`)
	assert.False(t, reply.OK)
	assert.Equal(t, "boom", reply.Error)
	assert.Equal(t, "out\n", reply.Output)
}

func TestSessionsAreIsolated(t *testing.T) {
	s, url := newTestServer(t)
	a := dial(t, url)
	b := dial(t, url)

	ra := send(t, a, "x = 'a' return x")
	rb := send(t, b, "return x")
	assert.NotEqual(t, ra.Session, rb.Session)
	assert.Equal(t, []string{"nil"}, rb.Results)
	assert.Equal(t, 2, s.Sessions())
}

func TestServeStopsOnCancel(t *testing.T) {
	s := New(config.ServerConfig{}, testFactory, zerolog.Nop())
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()

	conn := dial(t, "ws://"+l.Addr().String()+"/eval")
	reply := send(t, conn, "return 1")
	assert.True(t, reply.OK)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not stop")
	}
}
