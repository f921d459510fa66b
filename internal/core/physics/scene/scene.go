// Package scene drives a physics backend at a fixed tick rate and reconciles
// its results against a variable render clock.
package scene

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/rigidbody/internal/core/events/bus"
	"github.com/zeusync/rigidbody/internal/core/observability/log"
	"github.com/zeusync/rigidbody/internal/core/physics"
	"github.com/zeusync/rigidbody/internal/core/physics/collision"
)

type Config struct {
	TickRate float64
	// MaxStepsPerFrame bounds how many ticks one Advance may run. Time beyond
	// that is dropped so a slow frame cannot snowball.
	MaxStepsPerFrame int
}

func DefaultConfig() Config {
	return Config{
		TickRate:         60,
		MaxStepsPerFrame: 5,
	}
}

func (c Config) Validate() error {
	if c.TickRate <= 0 || math.IsInf(c.TickRate, 0) || math.IsNaN(c.TickRate) {
		return fmt.Errorf("%w: tick rate %v", ErrInvalidConfig, c.TickRate)
	}
	if c.MaxStepsPerFrame <= 0 {
		return fmt.Errorf("%w: max steps per frame %d", ErrInvalidConfig, c.MaxStepsPerFrame)
	}
	return nil
}

// TickDuration is the fixed step in seconds.
func (c Config) TickDuration() float64 { return 1 / c.TickRate }

// Observer receives a snapshot after every tick, on the tick goroutine.
type Observer interface {
	OnTick(snapshot Snapshot)
}

type ObserverFunc func(snapshot Snapshot)

func (f ObserverFunc) OnTick(snapshot Snapshot) { f(snapshot) }

// Scene owns the fixed-step clock for one backend.
type Scene struct {
	cfg     Config
	dt      float64
	backend physics.Backend
	bus     bus.EventBus
	relay   *collision.Relay
	logger  log.Log

	// stepMu serialises backend steps. It is never held while listeners or
	// observers run.
	stepMu sync.Mutex

	mu          sync.Mutex
	accumulator float64
	tick        uint64
	simTime     float64
	pending     []delivery
	draining    bool

	// lookup belongs to the goroutine that is draining.
	lookup map[physics.BodyID]physics.Rigidbody

	observersMu sync.RWMutex
	observers   []Observer

	running atomic.Bool
}

// New builds a scene. eventBus may be nil.
func New(backend physics.Backend, eventBus bus.EventBus, cfg Config, logger log.Log) (*Scene, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = log.OrNop(logger)
	s := &Scene{
		cfg:     cfg,
		dt:      cfg.TickDuration(),
		backend: backend,
		bus:     eventBus,
		logger:  logger.With(log.String("component", "scene")),
	}
	s.relay = collision.NewRelay(s.findBody, eventBus, logger)
	return s, nil
}

func (s *Scene) Backend() physics.Backend { return s.backend }

func (s *Scene) Config() Config { return s.cfg }

// AddObserver registers o for every following tick.
func (s *Scene) AddObserver(o Observer) {
	s.observersMu.Lock()
	s.observers = append(s.observers, o)
	s.observersMu.Unlock()
}

// delivery is one finished tick waiting for its listeners and observers.
type delivery struct {
	events   []physics.CollisionEvent
	lookup   map[physics.BodyID]physics.Rigidbody
	snapshot Snapshot
}

// findBody is only called from Dispatch on the draining goroutine.
func (s *Scene) findBody(id physics.BodyID) (physics.Internal, bool) {
	rb, ok := s.lookup[id]
	return rb, ok
}

// Tick returns the index of the last completed tick and its end time.
func (s *Scene) Tick() (uint64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick, s.simTime
}

// Step runs exactly one tick, relays its collision events and notifies
// observers. Listeners and observers may call back into the scene, Step
// included; a tick stepped from a listener is delivered after the current
// one. When another goroutine is already delivering, this tick is handed
// to it and Step returns without waiting for delivery.
func (s *Scene) Step() physics.StepReport {
	s.stepMu.Lock()
	report := s.stepLocked()
	s.stepMu.Unlock()

	s.drain()
	return report
}

// stepLocked runs the backend and queues the result. Callers hold stepMu.
func (s *Scene) stepLocked() physics.StepReport {
	s.mu.Lock()
	tick := s.tick + 1
	s.mu.Unlock()

	simTime := float64(tick) * s.dt
	report := s.backend.Step(physics.TickInfo{Index: tick, Time: simTime, Duration: s.dt})

	bodies := s.backend.Bodies()
	lookup := make(map[physics.BodyID]physics.Rigidbody, len(bodies))
	for _, rb := range bodies {
		lookup[rb.PhysicsID()] = rb
	}
	states := captureBodies(bodies)
	d := delivery{
		events: report.Events,
		lookup: lookup,
		snapshot: Snapshot{
			Tick:   tick,
			Time:   simTime,
			Digest: Digest(states),
			Bodies: states,
			Events: recordEvents(report.Events),
		},
	}

	s.mu.Lock()
	s.tick = tick
	s.simTime = simTime
	s.pending = append(s.pending, d)
	s.mu.Unlock()
	return report
}

// drain delivers queued ticks in order. Only one goroutine drains at a time;
// ticks queued meanwhile are picked up by it.
func (s *Scene) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for len(s.pending) > 0 {
		d := s.pending[0]
		s.pending[0] = delivery{}
		s.pending = s.pending[1:]
		s.mu.Unlock()

		s.deliver(d)

		s.mu.Lock()
	}
	s.draining = false
	s.pending = nil
	s.mu.Unlock()
}

func (s *Scene) deliver(d delivery) {
	s.lookup = d.lookup
	if err := s.relay.Dispatch(d.events); err != nil {
		s.logger.Debug("collision dispatch reported errors", log.Uint64("tick", d.snapshot.Tick), log.Error(err))
	}
	s.lookup = nil
	s.notify(d.snapshot)
}

func (s *Scene) notify(snapshot Snapshot) {
	if s.bus != nil {
		if err := s.bus.Publish(bus.NewEvent(bus.TypeTick, "scene", snapshot.Tick, snapshot)); err != nil {
			s.logger.Warn("tick subscribers failed", log.Uint64("tick", snapshot.Tick), log.Error(err))
		}
	}
	s.observersMu.RLock()
	observers := s.observers
	s.observersMu.RUnlock()
	for _, o := range observers {
		o.OnTick(snapshot)
	}
}

// Advance adds frameDelta seconds to the accumulator and runs as many whole
// ticks as fit, up to MaxStepsPerFrame. It returns the number of ticks run.
func (s *Scene) Advance(frameDelta float64) int {
	if frameDelta <= 0 {
		return 0
	}

	s.mu.Lock()
	s.accumulator += frameDelta
	steps := 0
	for s.accumulator >= s.dt && steps < s.cfg.MaxStepsPerFrame {
		s.accumulator -= s.dt
		steps++
	}
	if s.accumulator >= s.dt {
		dropped := math.Floor(s.accumulator/s.dt) * s.dt
		s.accumulator -= dropped
		s.logger.Debug("frame too long, dropping simulation time",
			log.Float64("dropped_seconds", dropped),
			log.Uint64("tick", s.tick))
	}
	s.mu.Unlock()

	for i := 0; i < steps; i++ {
		s.Step()
	}
	return steps
}

// Digest hashes the current state of every body, as of the last tick.
func (s *Scene) Digest() uint64 {
	s.stepMu.Lock()
	defer s.stepMu.Unlock()
	return Digest(captureBodies(s.backend.Bodies()))
}

// Alpha is the fraction of a tick accumulated since the last one.
func (s *Scene) Alpha() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accumulator / s.dt
}

// Now is the render clock: the time of the last tick plus the accumulated
// remainder.
func (s *Scene) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.simTime + s.accumulator
}

// Render writes every body's reconciled transform for renderTime to its
// node. Interpolated bodies are sampled one tick behind renderTime so there
// is always a newer tick to blend toward.
func (s *Scene) Render(renderTime float64) {
	for _, rb := range s.backend.Bodies() {
		t := renderTime
		if rb.InterpolationMode() == physics.InterpolationInterpolate {
			t -= s.dt
		}
		rb.Render(t)
	}
}

// Run advances the scene in real time until ctx is done. Each frame steps
// the simulation by the elapsed wall time and renders at Now.
func (s *Scene) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	interval := time.Duration(s.dt * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("scene running",
		log.Float64("tick_rate_hz", s.cfg.TickRate),
		log.String("backend", string(s.backend.Kind())))

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			tick, _ := s.Tick()
			s.logger.Info("scene stopped", log.Uint64("tick", tick))
			return nil
		case now := <-ticker.C:
			s.Advance(now.Sub(last).Seconds())
			last = now
			s.Render(s.Now())
		}
	}
}
