// Package server exposes the simulation over HTTP. Every tick snapshot is
// pushed as a JSON text frame to each websocket client connected to the
// stream path.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/zeusync/rigidbody/internal/core/observability/log"
	"github.com/zeusync/rigidbody/internal/core/physics/scene"
)

// Config configures the stream server.
type Config struct {
	ListenAddr string
	Path       string
	// WriteTimeout bounds a single frame write. A client that cannot take a
	// frame within it is dropped.
	WriteTimeout time.Duration
	// SendBuffer is the number of frames queued per client.
	SendBuffer int
}

func DefaultConfig() Config {
	return Config{
		ListenAddr:   "127.0.0.1:8090",
		Path:         "/stream",
		WriteTimeout: 2 * time.Second,
		SendBuffer:   64,
	}
}

func (c Config) Validate() error {
	switch {
	case c.Path == "" || c.Path[0] != '/':
		return fmt.Errorf("%w: path %q must start with /", ErrInvalidConfig, c.Path)
	case c.WriteTimeout <= 0:
		return fmt.Errorf("%w: write timeout must be positive", ErrInvalidConfig)
	case c.SendBuffer < 1:
		return fmt.Errorf("%w: send buffer must be at least 1", ErrInvalidConfig)
	}
	return nil
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// close ends the client's writer. Callers hold StreamServer.mu.
func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// StreamServer broadcasts snapshots. It implements scene.Observer.
type StreamServer struct {
	cfg      Config
	logger   log.Log
	upgrader websocket.Upgrader
	handler  http.Handler

	mu      sync.Mutex
	clients map[*client]struct{}
	latest  []byte

	addrMu sync.RWMutex
	addr   string

	checksMu sync.RWMutex
	checks   map[string]func() any

	published uint64 // atomic
	dropped   uint64 // atomic

	running int32 // atomic bool
	closed  int32 // atomic bool
}

func NewStreamServer(cfg Config, logger log.Log) (*StreamServer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &StreamServer{
		cfg:    cfg,
		logger: log.OrNop(logger).With(log.String("component", "stream")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		checks:  make(map[string]func() any),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.handleStream)
	mux.HandleFunc("/healthz", s.handleHealth)
	s.handler = mux
	return s, nil
}

// Handler serves the stream path and a /healthz probe.
func (s *StreamServer) Handler() http.Handler { return s.handler }

func (s *StreamServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// OnTick encodes the snapshot once and queues it for every client.
func (s *StreamServer) OnTick(snapshot scene.Snapshot) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		s.logger.Error("failed to encode snapshot", log.Uint64("tick", snapshot.Tick), log.Error(err))
		return
	}
	s.Broadcast(data)
}

// Broadcast queues data for every client without blocking. A client whose
// queue is full is dropped. The frame is also kept as the greeting for
// clients that connect later.
func (s *StreamServer) Broadcast(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = data
	atomic.AddUint64(&s.published, 1)
	for c := range s.clients {
		select {
		case c.send <- data:
		default:
			s.dropLocked(c, "send buffer full")
		}
	}
}

// AddHealthCheck adds name to the /healthz document. fn is called on every
// request and its result is encoded as JSON; the built-in counters win over
// a check of the same name.
func (s *StreamServer) AddHealthCheck(name string, fn func() any) {
	s.checksMu.Lock()
	defer s.checksMu.Unlock()
	s.checks[name] = fn
}

func (s *StreamServer) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Dropped counts clients removed for falling behind.
func (s *StreamServer) Dropped() uint64 { return atomic.LoadUint64(&s.dropped) }

func (s *StreamServer) Published() uint64 { return atomic.LoadUint64(&s.published) }

// Addr is the bound listener address once ListenAndServe is running.
func (s *StreamServer) Addr() string {
	s.addrMu.RLock()
	defer s.addrMu.RUnlock()
	return s.addr
}

// ListenAndServe serves until ctx is cancelled, then shuts the listener down
// and disconnects every client.
func (s *StreamServer) ListenAndServe(ctx context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}
	defer atomic.StoreInt32(&s.running, 0)

	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.logger.Error("Failed to create listener", log.Error(err))
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}

	s.addrMu.Lock()
	s.addr = ln.Addr().String()
	s.addrMu.Unlock()

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("Stream server listening",
		log.String("addr", ln.Addr().String()),
		log.String("path", s.cfg.Path),
	)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(ln) }()

	select {
	case err = <-serveErr:
		s.disconnectAll()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// Hijacked websocket connections are not tracked by Shutdown.
	s.disconnectAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	<-serveErr
	s.logger.Info("Stream server stopped", log.Uint64("published", s.Published()), log.Uint64("dropped", s.Dropped()))
	return err
}

// Close disconnects every client and refuses new ones.
func (s *StreamServer) Close() {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return
	}
	s.disconnectAll()
}

func (s *StreamServer) disconnectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		delete(s.clients, c)
		c.close()
	}
}

func (s *StreamServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	doc := make(map[string]any)
	s.checksMu.RLock()
	for name, fn := range s.checks {
		doc[name] = fn()
	}
	s.checksMu.RUnlock()
	doc["clients"] = s.ClientCount()
	doc["published"] = s.Published()
	doc["dropped"] = s.Dropped()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (s *StreamServer) handleStream(w http.ResponseWriter, r *http.Request) {
	if atomic.LoadInt32(&s.closed) == 1 {
		http.Error(w, ErrServerClosed.Error(), http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", log.Error(err))
		return
	}

	c := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, s.cfg.SendBuffer),
	}
	s.register(c)
	go s.writePump(c)
	s.readPump(c)
}

func (s *StreamServer) register(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
	if s.latest != nil {
		c.send <- s.latest
	}
	s.logger.Debug("client connected",
		log.String("client", c.id.String()),
		log.String("remote", c.conn.RemoteAddr().String()),
		log.Int("clients", len(s.clients)),
	)
}

func (s *StreamServer) drop(c *client, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked(c, reason)
}

func (s *StreamServer) dropLocked(c *client, reason string) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	c.close()
	if reason != "disconnected" {
		atomic.AddUint64(&s.dropped, 1)
		s.logger.Warn("dropping client", log.String("client", c.id.String()), log.String("reason", reason))
		return
	}
	s.logger.Debug("client disconnected", log.String("client", c.id.String()))
}

// readPump only watches for the peer going away; inbound frames are ignored.
func (s *StreamServer) readPump(c *client) {
	c.conn.SetReadLimit(512)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	s.drop(c, "disconnected")
}

func (s *StreamServer) writePump(c *client) {
	defer c.conn.Close()

	for frame := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			s.drop(c, "write failed: "+err.Error())
			return
		}
	}

	deadline := time.Now().Add(s.cfg.WriteTimeout)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}
