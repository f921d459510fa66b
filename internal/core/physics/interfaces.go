package physics

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/rigidbody/internal/core/physics/mass"
)

// Rigidbody is a dynamic physics object moved by forces or directly. It
// pushes other non-kinematic bodies and collides with static geometry.
//
// Shape and mass come from the attached colliders; a body needs at least one
// collider to be simulated.
//
// Mutating calls are buffered by the backend and take effect at the next tick
// boundary. None of them block on the solver.
type Rigidbody interface {
	Kinematics
	MassProperties
	Dynamics
	Solver
	Colliders
	CollisionEvents
	Internal
}

// Kinematics covers direct placement of the body.
type Kinematics interface {
	// Move relocates the body with collision response along the way.
	Move(position mgl64.Vec3)
	// Rotate sets the orientation about the body's position at the next
	// tick. Unlike Move there is no sweep: overlaps the new orientation
	// creates are left to that tick's contact solver.
	Rotate(rotation mgl64.Quat)
	Position() mgl64.Vec3
	Rotation() mgl64.Quat
	// SetTransform teleports the body, bypassing collision response.
	SetTransform(position mgl64.Vec3, rotation mgl64.Quat)
}

// MassProperties covers mass, inertia and centre of mass.
type MassProperties interface {
	// SetMass is only authoritative when AutoMass or AutoTensors is off. Zero
	// makes the body immovable, though it can still rotate.
	SetMass(mass float64)
	Mass() float64
	// SetInertiaTensor sets principal moments in local mass space. A zero
	// component leaves rotation about that axis unresisted.
	SetInertiaTensor(tensor mgl64.Vec3)
	InertiaTensor() mgl64.Vec3
	SetCenterOfMass(position mgl64.Vec3, rotation mgl64.Quat)
	CenterOfMassPosition() mgl64.Vec3
	CenterOfMassRotation() mgl64.Quat
	// UpdateMassDistribution recomputes mass properties from the colliders.
	// It does nothing unless AutoTensors is set.
	UpdateMassDistribution()
	SetFlags(flags Flags)
	Flags() Flags
}

// Dynamics covers velocities, forces and the sleep state.
type Dynamics interface {
	SetIsKinematic(kinematic bool)
	IsKinematic() bool
	IsSleeping() bool
	Sleep()
	WakeUp()
	SetSleepThreshold(threshold float64)
	SleepThreshold() float64
	SetUseGravity(enabled bool)
	UseGravity() bool

	SetVelocity(velocity mgl64.Vec3)
	Velocity() mgl64.Vec3
	SetAngularVelocity(velocity mgl64.Vec3)
	AngularVelocity() mgl64.Vec3
	SetDrag(drag float64)
	Drag() float64
	SetAngularDrag(drag float64)
	AngularDrag() float64
	SetMaxAngularVelocity(limit float64)
	MaxAngularVelocity() float64

	AddForce(force mgl64.Vec3, mode ForceMode)
	AddTorque(torque mgl64.Vec3, mode ForceMode)
	// AddForceAtPoint applies a world space force at a world space point,
	// producing both linear and angular momentum.
	AddForceAtPoint(force, point mgl64.Vec3, mode PointForceMode)
	// VelocityAtPoint is the linear plus angular velocity of a world point.
	VelocityAtPoint(point mgl64.Vec3) mgl64.Vec3
}

// Solver covers per-body solver tuning and render reconciliation.
type Solver interface {
	SetPositionSolverCount(count uint32)
	PositionSolverCount() uint32
	SetVelocitySolverCount(count uint32)
	VelocitySolverCount() uint32
	SetInterpolationMode(mode InterpolationMode)
	InterpolationMode() InterpolationMode
}

// Colliders manages the child shapes. A collider belongs to one body at a
// time; moving it means removing it first.
type Colliders interface {
	AddCollider(c Collider) error
	RemoveCollider(c Collider)
	RemoveColliders()
	ColliderList() []Collider
}

// CollisionEvents registers listeners for contacts of this body's colliders.
type CollisionEvents interface {
	OnCollisionBegin(h CollisionHandler)
	OnCollisionStay(h CollisionHandler)
	OnCollisionEnd(h CollisionHandler)
}

// Internal is used by the physics system and higher level wrappers.
type Internal interface {
	SetPriority(priority uint32)
	Priority() uint32
	// SetPhysicsID binds the stable id. Only the first call succeeds.
	SetPhysicsID(id BodyID) error
	PhysicsID() BodyID
	// ApplyTickTransform receives the raw post-solve state of a tick.
	ApplyTickTransform(state TickState)
	// Render resolves the reconciled pose for a render time and writes it to
	// the linked node.
	Render(renderTime float64)
	SetOwner(owner Owner)
	Owner(kind OwnerKind) (Owner, bool)
	LinkedNode() SceneNode
	// DeliverCollision hands a relayed event to this body's listeners.
	DeliverCollision(kind CollisionKind, data CollisionData)
	// Release detaches every collider and unregisters the body.
	Release()
}

// CollisionKind distinguishes the three per-tick collision notifications.
type CollisionKind uint8

const (
	CollisionBegin CollisionKind = iota
	CollisionStay
	CollisionEnd
)

func (k CollisionKind) String() string {
	switch k {
	case CollisionBegin:
		return "begin"
	case CollisionStay:
		return "stay"
	case CollisionEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Collider is a shape attached to a rigidbody.
type Collider interface {
	ID() ColliderID
	// LocalPose places the collider in its body's frame.
	LocalPose() Pose
	// MassPart is the collider's mass contribution in the body frame.
	MassPart() mass.Part
	// BoundingRadius encloses the shape around the centre given by LocalPose.
	BoundingRadius() float64
	Body() Rigidbody
	// SetBody is called by the owning body on attach and detach.
	SetBody(body Rigidbody)
}

// SceneNode receives reconciled transforms. It is the only coupling between
// a rigidbody and the scene graph.
type SceneNode interface {
	ApplyTransform(position mgl64.Vec3, rotation mgl64.Quat)
}

// SceneNodeFunc adapts a function to SceneNode.
type SceneNodeFunc func(position mgl64.Vec3, rotation mgl64.Quat)

func (f SceneNodeFunc) ApplyTransform(position mgl64.Vec3, rotation mgl64.Quat) {
	f(position, rotation)
}

// Backend creates bodies and advances the simulation.
type Backend interface {
	Kind() BackendKind
	// CreateBody builds a body linked to node and assigns its physics id.
	CreateBody(node SceneNode) (Rigidbody, error)
	// DestroyBody releases the body and forgets it.
	DestroyBody(body Rigidbody)
	Bodies() []Rigidbody
	// Step advances one fixed tick, writes results back through
	// ApplyTickTransform and reports collision events.
	Step(tick TickInfo) StepReport
	SetGravity(gravity mgl64.Vec3)
	Gravity() mgl64.Vec3
}

// StepReport summarises one tick.
type StepReport struct {
	Tick      TickInfo
	Simulated int
	Sleeping  int
	Contacts  int
	Events    []CollisionEvent
}

// CollisionEvent is one relayed notification, addressed to both bodies of the pair.
type CollisionEvent struct {
	Kind CollisionKind
	Data CollisionData
}
