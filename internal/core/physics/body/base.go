// Package body holds the backend independent half of a rigidbody: identity,
// owner tag, priority, solver settings, collider ownership, collision
// listeners and the reconciler feeding the linked scene node.
//
// Backends embed Base and implement the simulation facing methods themselves.
package body

import (
	"sync"

	"github.com/zeusync/rigidbody/internal/core/observability/log"
	"github.com/zeusync/rigidbody/internal/core/physics"
	"github.com/zeusync/rigidbody/internal/core/physics/reconcile"
)

const (
	DefaultPositionSolverCount uint32 = 4
	DefaultVelocitySolverCount uint32 = 1
)

// Base is safe for concurrent use. The tick goroutine calls
// ApplyTickTransform and DeliverCollision while gameplay code configures the
// body.
type Base struct {
	self   physics.Rigidbody
	node   physics.SceneNode
	logger log.Log

	mu            sync.Mutex
	id            physics.BodyID
	owner         physics.Owner
	priority      uint32
	flags         physics.Flags
	positionIters uint32
	velocityIters uint32
	mode          physics.InterpolationMode
	reconciler    reconcile.Reconciler
	colliders     []physics.Collider
	released      bool

	listenersMu sync.RWMutex
	listeners   [3][]physics.CollisionHandler
}

// Init binds the base to the concrete body that embeds it and to its scene
// node. It must be called once before the body is used.
func (b *Base) Init(self physics.Rigidbody, node physics.SceneNode, logger log.Log) error {
	if node == nil {
		return physics.ErrNilSceneNode
	}
	b.self = self
	b.node = node
	b.logger = log.OrNop(logger)
	b.flags = physics.FlagAutoTensors | physics.FlagAutoMass
	b.positionIters = DefaultPositionSolverCount
	b.velocityIters = DefaultVelocitySolverCount
	return nil
}

func (b *Base) SetPriority(priority uint32) {
	b.mu.Lock()
	b.priority = priority
	b.mu.Unlock()
}

func (b *Base) Priority() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.priority
}

func (b *Base) SetPhysicsID(id physics.BodyID) error {
	if id == 0 {
		return physics.ErrZeroPhysicsID
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.id != 0 {
		return physics.ErrPhysicsIDAssigned
	}
	b.id = id
	b.logger = b.logger.With(log.BodyID(uint32(id)))
	return nil
}

func (b *Base) PhysicsID() physics.BodyID {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id
}

func (b *Base) SetOwner(owner physics.Owner) {
	b.mu.Lock()
	b.owner = owner
	b.mu.Unlock()
}

func (b *Base) Owner(kind physics.OwnerKind) (physics.Owner, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.owner.IsZero() || b.owner.Kind != kind {
		return physics.Owner{}, false
	}
	return b.owner, true
}

func (b *Base) LinkedNode() physics.SceneNode { return b.node }

// Logger returns the body scoped logger.
func (b *Base) Logger() log.Log {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logger
}

func (b *Base) SetFlags(flags physics.Flags) {
	b.mu.Lock()
	b.flags = flags
	b.mu.Unlock()
}

func (b *Base) Flags() physics.Flags {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flags
}

func (b *Base) SetPositionSolverCount(count uint32) {
	b.mu.Lock()
	b.positionIters = count
	b.mu.Unlock()
}

func (b *Base) PositionSolverCount() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.positionIters
}

func (b *Base) SetVelocitySolverCount(count uint32) {
	b.mu.Lock()
	b.velocityIters = count
	b.mu.Unlock()
}

func (b *Base) VelocitySolverCount() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.velocityIters
}

func (b *Base) SetInterpolationMode(mode physics.InterpolationMode) {
	b.mu.Lock()
	b.mode = mode
	b.mu.Unlock()
}

func (b *Base) InterpolationMode() physics.InterpolationMode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

// ApplyTickTransform records the post-solve state of a tick. With
// InterpolationNone the node is written immediately; the other modes wait
// for Render.
func (b *Base) ApplyTickTransform(state physics.TickState) {
	b.mu.Lock()
	b.reconciler.Push(state)
	mode := b.mode
	b.mu.Unlock()

	if mode == physics.InterpolationNone {
		b.node.ApplyTransform(state.Pose.Position, state.Pose.Rotation)
	}
}

// ResetInterpolation drops tick history so the next render does not blend
// across a teleport.
func (b *Base) ResetInterpolation() {
	b.mu.Lock()
	b.reconciler.Reset()
	b.mu.Unlock()
}

// Render writes the reconciled pose for renderTime to the linked node. It
// does nothing before the first tick.
func (b *Base) Render(renderTime float64) {
	pose, ok := b.Resolve(renderTime)
	if !ok {
		return
	}
	b.node.ApplyTransform(pose.Position, pose.Rotation)
}

// Resolve returns the reconciled pose without touching the node.
func (b *Base) Resolve(renderTime float64) (physics.Pose, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reconciler.Resolve(b.mode, renderTime)
}

// LastTick returns the most recent tick state pushed by the backend.
func (b *Base) LastTick() (physics.TickState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reconciler.Latest(), b.reconciler.Ready()
}

func (b *Base) OnCollisionBegin(h physics.CollisionHandler) { b.listen(physics.CollisionBegin, h) }

func (b *Base) OnCollisionStay(h physics.CollisionHandler) { b.listen(physics.CollisionStay, h) }

func (b *Base) OnCollisionEnd(h physics.CollisionHandler) { b.listen(physics.CollisionEnd, h) }

func (b *Base) listen(kind physics.CollisionKind, h physics.CollisionHandler) {
	if h == nil {
		return
	}
	b.listenersMu.Lock()
	b.listeners[kind] = append(b.listeners[kind], h)
	b.listenersMu.Unlock()
}

// DeliverCollision calls the listeners registered for kind, in registration
// order. Each listener gets its own copy of data.
func (b *Base) DeliverCollision(kind physics.CollisionKind, data physics.CollisionData) {
	if int(kind) >= len(b.listeners) {
		return
	}
	b.listenersMu.RLock()
	handlers := b.listeners[kind]
	b.listenersMu.RUnlock()

	for _, h := range handlers {
		h(data.Clone())
	}
}

// AddCollider takes ownership of c. A collider owned by another body must be
// removed from it first. Attaching does not recompute mass; the collider
// requests that itself.
func (b *Base) AddCollider(c physics.Collider) error {
	if c == nil {
		return physics.ErrNilCollider
	}
	if owner := c.Body(); owner != nil {
		if owner == b.self {
			return nil
		}
		return physics.ErrColliderOwned
	}

	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return physics.ErrBodyReleased
	}
	b.colliders = append(b.colliders, c)
	b.mu.Unlock()

	c.SetBody(b.self)
	return nil
}

// RemoveCollider detaches c if this body owns it. The collider stays usable.
func (b *Base) RemoveCollider(c physics.Collider) {
	if c == nil {
		return
	}
	b.mu.Lock()
	found := false
	for i, cur := range b.colliders {
		if cur == c {
			b.colliders = append(b.colliders[:i:i], b.colliders[i+1:]...)
			found = true
			break
		}
	}
	b.mu.Unlock()

	if found {
		c.SetBody(nil)
	}
}

func (b *Base) RemoveColliders() {
	b.mu.Lock()
	detached := b.colliders
	b.colliders = nil
	b.mu.Unlock()

	for _, c := range detached {
		c.SetBody(nil)
	}
}

// ColliderList returns a copy of the attached colliders.
func (b *Base) ColliderList() []physics.Collider {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]physics.Collider, len(b.colliders))
	copy(out, b.colliders)
	return out
}

// ColliderCount avoids the copy made by ColliderList.
func (b *Base) ColliderCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.colliders)
}

// ReleaseBase detaches every collider and marks the body released. It
// reports false if the body was already released.
func (b *Base) ReleaseBase() bool {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return false
	}
	b.released = true
	b.mu.Unlock()

	b.RemoveColliders()

	b.listenersMu.Lock()
	b.listeners = [3][]physics.CollisionHandler{}
	b.listenersMu.Unlock()
	return true
}

func (b *Base) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}
