// Package injector assembles a runnable simulation from a config.Config.
// The graph is declared for wire in injector.go; wire_gen.go is its output.
package injector

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/rigidbody/internal/config"
	"github.com/zeusync/rigidbody/internal/core/events/bus"
	"github.com/zeusync/rigidbody/internal/core/observability/log"
	"github.com/zeusync/rigidbody/internal/core/physics"
	"github.com/zeusync/rigidbody/internal/core/physics/backend"
	"github.com/zeusync/rigidbody/internal/core/physics/backend/reference"
	"github.com/zeusync/rigidbody/internal/core/physics/scene"
	"github.com/zeusync/rigidbody/internal/persistence/replay"
	"github.com/zeusync/rigidbody/internal/server"
)

// Simulation is the assembled graph. Stream and Replay are nil when their
// config sections are disabled.
type Simulation struct {
	Config config.Config
	Logger log.Log
	Bus    bus.EventBus
	Scene  *scene.Scene
	Stream *server.StreamServer
	Replay *replay.Writer
}

// Run drives the scene in real time and, when enabled, serves the stream
// until ctx is done or either of them fails.
func (s *Simulation) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Scene.Run(ctx) })
	if s.Stream != nil {
		g.Go(func() error { return s.Stream.ListenAndServe(ctx) })
	}
	return g.Wait()
}

func ProvideLogger(cfg config.Config) log.Log {
	return log.New(cfg.Log.Level)
}

// ProvideRegistry knows every backend compiled into the binary.
func ProvideRegistry() (*backend.Registry, error) {
	r := backend.NewRegistry()
	if err := reference.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

func ProvideBackend(cfg config.Config, registry *backend.Registry, logger log.Log) (physics.Backend, error) {
	return registry.New(cfg.Physics.BackendKind(), cfg.Physics.BackendOptions(logger))
}

// slowDelivery is the bus delivery time above which handlers are reported.
const slowDelivery = 5 * time.Millisecond

// ProvideBus builds the event bus and logs failed or slow deliveries.
func ProvideBus(logger log.Log) bus.EventBus {
	b := bus.New()
	b.AddObserver(bus.NewLogObserver(logger, slowDelivery))
	return b
}

func ProvideScene(cfg config.Config, b physics.Backend, eventBus bus.EventBus, logger log.Log) (*scene.Scene, error) {
	return scene.New(b, eventBus, cfg.Physics.SceneConfig(), logger)
}

func ProvideStream(cfg config.Config, sc *scene.Scene, eventBus bus.EventBus, logger log.Log) (*server.StreamServer, func(), error) {
	if !cfg.Stream.Enabled {
		return nil, func() {}, nil
	}
	s, err := server.NewStreamServer(cfg.Stream.ServerConfig(), logger)
	if err != nil {
		return nil, nil, err
	}
	s.AddHealthCheck("bus", func() any { return eventBus.Metrics() })
	sc.AddObserver(s)
	return s, s.Close, nil
}

func ProvideReplay(cfg config.Config, sc *scene.Scene, logger log.Log) (*replay.Writer, func(), error) {
	if !cfg.Replay.Enabled {
		return nil, func() {}, nil
	}
	w, err := replay.Create(cfg.Replay.Options(), logger)
	if err != nil {
		return nil, nil, err
	}
	sc.AddObserver(w)
	return w, func() {
		if err := w.Close(); err != nil {
			log.OrNop(logger).Error("failed to close replay", log.Error(err))
		}
	}, nil
}
