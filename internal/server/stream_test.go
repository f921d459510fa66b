package server

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/rigidbody/internal/core/observability/log"
	"github.com/zeusync/rigidbody/internal/core/physics/scene"
)

func newTestStream(t *testing.T, cfg Config) (*StreamServer, string) {
	t.Helper()
	s, err := NewStreamServer(cfg, log.NewNop())
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	t.Cleanup(s.Close)
	return s, "ws" + strings.TrimPrefix(ts.URL, "http") + cfg.Path
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readSnapshot(t *testing.T, conn *websocket.Conn) scene.Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var snap scene.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	return snap
}

func waitClients(t *testing.T, s *StreamServer, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.ClientCount() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Path = "stream"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.WriteTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.SendBuffer = 0
	_, err := NewStreamServer(cfg, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestStreamBroadcastsSnapshots(t *testing.T) {
	s, url := newTestStream(t, DefaultConfig())

	s.OnTick(scene.Snapshot{Tick: 1, Time: 0.5})
	conn := dial(t, url)

	// Late joiners are greeted with the latest snapshot.
	first := readSnapshot(t, conn)
	assert.Equal(t, uint64(1), first.Tick)
	waitClients(t, s, 1)

	s.OnTick(scene.Snapshot{
		Tick:   2,
		Time:   1,
		Bodies: []scene.BodyState{{ID: 7, Position: [3]float64{1, 2, 3}, Rotation: [4]float64{1, 0, 0, 0}}},
	})
	second := readSnapshot(t, conn)
	assert.Equal(t, uint64(2), second.Tick)
	require.Len(t, second.Bodies, 1)
	assert.Equal(t, uint32(7), second.Bodies[0].ID)
	assert.Equal(t, [3]float64{1, 2, 3}, second.Bodies[0].Position)
	assert.Equal(t, uint64(2), s.Published())
}

func TestStreamFansOutToEveryClient(t *testing.T) {
	s, url := newTestStream(t, DefaultConfig())
	a := dial(t, url)
	b := dial(t, url)
	waitClients(t, s, 2)

	s.OnTick(scene.Snapshot{Tick: 9})
	assert.Equal(t, uint64(9), readSnapshot(t, a).Tick)
	assert.Equal(t, uint64(9), readSnapshot(t, b).Tick)
}

func TestStreamForgetsDisconnectedClient(t *testing.T) {
	s, url := newTestStream(t, DefaultConfig())
	conn := dial(t, url)
	waitClients(t, s, 1)

	require.NoError(t, conn.Close())
	waitClients(t, s, 0)
	assert.Zero(t, s.Dropped(), "a clean disconnect is not a drop")
}

func TestStreamDropsClientWithFullQueue(t *testing.T) {
	s, err := NewStreamServer(Config{Path: "/stream", WriteTimeout: time.Second, SendBuffer: 1}, nil)
	require.NoError(t, err)

	// No writer drains this client, so its queue fills after one frame.
	c := &client{send: make(chan []byte, 1)}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	s.Broadcast([]byte(`{"tick":1}`))
	assert.Equal(t, 1, s.ClientCount())

	s.Broadcast([]byte(`{"tick":2}`))
	assert.Equal(t, 0, s.ClientCount())
	assert.Equal(t, uint64(1), s.Dropped())

	frame, ok := <-c.send
	require.True(t, ok)
	assert.Equal(t, `{"tick":1}`, string(frame))
	_, ok = <-c.send
	assert.False(t, ok, "queue is closed once the client is dropped")
}

func TestStreamCloseDisconnectsClients(t *testing.T) {
	s, url := newTestStream(t, DefaultConfig())
	conn := dial(t, url)
	waitClients(t, s, 1)

	s.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "%v", err)

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestHealthReportsCounters(t *testing.T) {
	s, err := NewStreamServer(DefaultConfig(), nil)
	require.NoError(t, err)
	s.Broadcast([]byte(`{}`))

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"clients":0,"published":1,"dropped":0}`, rec.Body.String())
}

func TestHealthIncludesRegisteredChecks(t *testing.T) {
	s, err := NewStreamServer(DefaultConfig(), nil)
	require.NoError(t, err)

	calls := 0
	s.AddHealthCheck("bus", func() any {
		calls++
		return map[string]uint64{"published": uint64(calls * 10)}
	})
	s.AddHealthCheck("dropped", func() any { return "shadowed" })

	for want := 1; want <= 2; want++ {
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t,
			fmt.Sprintf(`{"clients":0,"published":0,"dropped":0,"bus":{"published":%d}}`, want*10),
			rec.Body.String())
	}
	assert.Equal(t, 2, calls)
}

func TestListenAndServeLifecycle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	s, err := NewStreamServer(cfg, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.ListenAndServe(ctx), ErrServerAlreadyRunning)

	conn := dial(t, "ws://"+s.Addr()+cfg.Path)
	waitClients(t, s, 1)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("ListenAndServe did not return after cancel")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
