// Package backend selects a physics backend by kind.
package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/rigidbody/internal/core/observability/log"
	"github.com/zeusync/rigidbody/internal/core/physics"
	"github.com/zeusync/rigidbody/internal/core/physics/motion"
)

// Options configure a backend instance. Zero values fall back to defaults in
// Normalize.
type Options struct {
	Gravity            mgl64.Vec3
	SleepTicks         int
	SleepThreshold     float64
	PositionIterations uint32
	VelocityIterations uint32
	MaxAngularVelocity float64
	// Restitution is the bounce factor used by the contact pass, in [0, 1].
	Restitution float64
	Logger      log.Log
}

func DefaultOptions() Options {
	return Options{
		Gravity:            mgl64.Vec3{0, -9.81, 0},
		SleepTicks:         motion.DefaultSleepTicks,
		SleepThreshold:     motion.DefaultSleepThreshold,
		PositionIterations: 4,
		VelocityIterations: 1,
		MaxAngularVelocity: 7,
	}
}

// Normalize fills unset counts and thresholds with defaults. Gravity and
// restitution are taken as given.
func (o Options) Normalize() Options {
	def := DefaultOptions()
	if o.SleepTicks <= 0 {
		o.SleepTicks = def.SleepTicks
	}
	if o.SleepThreshold <= 0 {
		o.SleepThreshold = def.SleepThreshold
	}
	if o.PositionIterations == 0 {
		o.PositionIterations = def.PositionIterations
	}
	if o.VelocityIterations == 0 {
		o.VelocityIterations = def.VelocityIterations
	}
	if o.MaxAngularVelocity <= 0 {
		o.MaxAngularVelocity = def.MaxAngularVelocity
	}
	o.Logger = log.OrNop(o.Logger)
	return o
}

// Factory builds a backend.
type Factory func(opts Options) (physics.Backend, error)

// Registry maps backend kinds to factories. The zero value is not usable;
// call NewRegistry.
type Registry struct {
	mu        sync.RWMutex
	factories map[physics.BackendKind]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[physics.BackendKind]Factory)}
}

func (r *Registry) Register(kind physics.BackendKind, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("register %q: %w", kind, ErrNilFactory)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[kind]; ok {
		return fmt.Errorf("register %q: %w", kind, ErrBackendExists)
	}
	r.factories[kind] = factory
	return nil
}

// New builds a backend of the given kind with normalized options.
func (r *Registry) New(kind physics.BackendKind, opts Options) (physics.Backend, error) {
	r.mu.RLock()
	factory, ok := r.factories[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("backend %q: %w", kind, ErrUnknownBackend)
	}
	b, err := factory(opts.Normalize())
	if err != nil {
		return nil, fmt.Errorf("backend %q: %w", kind, err)
	}
	return b, nil
}

// Kinds lists registered kinds in lexical order.
func (r *Registry) Kinds() []physics.BackendKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]physics.BackendKind, 0, len(r.factories))
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
