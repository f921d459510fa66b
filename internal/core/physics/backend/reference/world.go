// Package reference is the in-process physics backend. It integrates bodies
// with semi-implicit Euler and resolves contacts between collider bounding
// spheres, which is enough to exercise the rigidbody contract end to end.
package reference

import (
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/rigidbody/internal/core/observability/log"
	"github.com/zeusync/rigidbody/internal/core/physics"
	"github.com/zeusync/rigidbody/internal/core/physics/backend"
	"github.com/zeusync/rigidbody/internal/core/physics/collision"
)

// Kind tags this backend in a backend.Registry.
const Kind physics.BackendKind = "reference"

// Register adds the reference backend to r.
func Register(r *backend.Registry) error {
	return r.Register(Kind, func(opts backend.Options) (physics.Backend, error) {
		return New(opts), nil
	})
}

// World implements physics.Backend.
type World struct {
	opts   backend.Options
	logger log.Log

	mu        sync.Mutex
	bodies    map[physics.BodyID]*Body
	nextID    physics.BodyID
	gravity   mgl64.Vec3
	forgotten []physics.BodyID

	// stepMu serialises Step; the tracker is only touched under it.
	stepMu  sync.Mutex
	tracker *collision.Tracker
}

var _ physics.Backend = (*World)(nil)

func New(opts backend.Options) *World {
	opts = opts.Normalize()
	return &World{
		opts:    opts,
		logger:  opts.Logger.With(log.String("component", "reference_backend")),
		bodies:  make(map[physics.BodyID]*Body),
		gravity: opts.Gravity,
		tracker: collision.NewTracker(),
	}
}

func (w *World) Kind() physics.BackendKind { return Kind }

// CreateBody builds a body linked to node and assigns the next physics id.
func (w *World) CreateBody(node physics.SceneNode) (physics.Rigidbody, error) {
	b := newBody(w)
	if err := b.Init(b, node, w.logger); err != nil {
		return nil, err
	}
	b.SetPositionSolverCount(w.opts.PositionIterations)
	b.SetVelocitySolverCount(w.opts.VelocityIterations)

	w.mu.Lock()
	w.nextID++
	id := w.nextID
	w.bodies[id] = b
	w.mu.Unlock()

	if err := b.SetPhysicsID(id); err != nil {
		return nil, err
	}
	w.logger.Debug("body created", log.BodyID(uint32(id)))
	return b, nil
}

func (w *World) DestroyBody(rb physics.Rigidbody) {
	if rb == nil {
		return
	}
	rb.Release()
}

func (w *World) forget(b *Body) {
	id := b.PhysicsID()
	w.mu.Lock()
	if cur, ok := w.bodies[id]; ok && cur == b {
		delete(w.bodies, id)
		w.forgotten = append(w.forgotten, id)
	}
	w.mu.Unlock()
	w.logger.Debug("body released", log.BodyID(uint32(id)))
}

// Body looks a live body up by id.
func (w *World) Body(id physics.BodyID) (*Body, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	b, ok := w.bodies[id]
	return b, ok
}

// Bodies returns live bodies in update order: higher priority first, ties by
// physics id.
func (w *World) Bodies() []physics.Rigidbody {
	ordered := w.ordered()
	out := make([]physics.Rigidbody, len(ordered))
	for i, b := range ordered {
		out[i] = b
	}
	return out
}

func (w *World) ordered() []*Body {
	w.mu.Lock()
	out := make([]*Body, 0, len(w.bodies))
	for _, b := range w.bodies {
		out = append(out, b)
	}
	w.mu.Unlock()

	type key struct {
		priority uint32
		id       physics.BodyID
	}
	keys := make(map[*Body]key, len(out))
	for _, b := range out {
		keys[b] = key{b.Priority(), b.PhysicsID()}
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := keys[out[i]], keys[out[j]]
		if ki.priority != kj.priority {
			return ki.priority > kj.priority
		}
		return ki.id < kj.id
	})
	return out
}

func (w *World) SetGravity(gravity mgl64.Vec3) {
	w.mu.Lock()
	w.gravity = gravity
	w.mu.Unlock()
}

func (w *World) Gravity() mgl64.Vec3 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.gravity
}

// Step advances every body by one tick:
//
//  1. drain queued commands and forces;
//  2. integrate awake dynamic bodies, sweeping Move targets and CCD bodies;
//  3. resolve contacts, reporting swept touches that did not last as
//     transient;
//  4. update sleep state and write results back in priority order.
func (w *World) Step(tick physics.TickInfo) physics.StepReport {
	w.stepMu.Lock()
	defer w.stepMu.Unlock()

	dt := tick.Duration
	gravity := w.Gravity()

	w.mu.Lock()
	forgotten := w.forgotten
	w.forgotten = nil
	w.mu.Unlock()

	var events []physics.CollisionEvent
	for _, id := range forgotten {
		events = append(events, w.tracker.Forget(id)...)
	}
	w.tracker.BeginTick(tick.Index)

	ordered := w.ordered()
	sims := make([]*sim, 0, len(ordered))
	for _, b := range ordered {
		if s, ok := b.prepare(dt); ok {
			sims = append(sims, s)
		}
	}

	report := physics.StepReport{Tick: tick}
	var swept []*contact
	for _, s := range sims {
		if s.moveTarget != nil {
			s.pose.Position, _ = sweep(s, s.pose.Position, *s.moveTarget, sims, true)
			s.moved = true
		}
		if s.sleeping || s.kinematic {
			continue
		}
		report.Simulated++
		if hit := s.integrate(dt, gravity, sims); hit != nil {
			swept = append(swept, hit)
		}
	}

	contacts := findContacts(sims)
	solveVelocities(contacts, w.opts.Restitution)
	solvePositions(contacts)
	touching := make(map[collision.Pair]struct{}, len(contacts))
	for _, c := range contacts {
		data := c.data()
		touching[collision.MakePair(data.Colliders[0], data.Colliders[1])] = struct{}{}
		w.tracker.Touch(data)
	}
	// A swept body can meet another that moves on later in the same tick.
	for _, c := range swept {
		data := c.data()
		if _, ok := touching[collision.MakePair(data.Colliders[0], data.Colliders[1])]; !ok {
			w.tracker.TouchTransient(data)
		}
	}
	report.Contacts = len(contacts)

	for _, s := range sims {
		state := s.body.commit(s, tick)
		if s.teleported {
			s.body.ResetInterpolation()
		}
		s.body.ApplyTickTransform(state)
		if s.sleepingAfter {
			report.Sleeping++
		}
	}

	report.Events = append(events, w.tracker.EndTick()...)
	return report
}
