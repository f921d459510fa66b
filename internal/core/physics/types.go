package physics

import (
	"strings"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyID is the stable identifier the physics system assigns to a rigidbody.
// Zero means "not assigned yet".
type BodyID uint32

// ColliderID identifies a collider shape for the lifetime of the process.
type ColliderID uint64

// BackendKind tags a concrete backend implementation.
type BackendKind string

// ForceMode selects the physical quantity an applied vector represents.
type ForceMode uint8

const (
	// ForceModeForce is a continuous force, scaled by the step duration.
	ForceModeForce ForceMode = iota
	// ForceModeImpulse is a direct change in momentum.
	ForceModeImpulse
	// ForceModeVelocity is a direct change in velocity, ignoring mass.
	ForceModeVelocity
	// ForceModeAcceleration is a force already divided by mass.
	ForceModeAcceleration
)

func (m ForceMode) String() string {
	switch m {
	case ForceModeForce:
		return "force"
	case ForceModeImpulse:
		return "impulse"
	case ForceModeVelocity:
		return "velocity"
	case ForceModeAcceleration:
		return "acceleration"
	default:
		return "unknown"
	}
}

// PointForceMode is the subset of force modes defined at an offset point.
type PointForceMode uint8

const (
	PointForceModeForce PointForceMode = iota
	PointForceModeImpulse
)

// ForceMode widens a point mode to the general mode.
func (m PointForceMode) ForceMode() ForceMode {
	if m == PointForceModeImpulse {
		return ForceModeImpulse
	}
	return ForceModeForce
}

// InterpolationMode controls how tick results reach the linked scene node.
type InterpolationMode uint8

const (
	// InterpolationNone copies each tick's transform straight to the node.
	InterpolationNone InterpolationMode = iota
	// InterpolationInterpolate blends between the two most recent ticks,
	// trading one tick of latency for continuous motion.
	InterpolationInterpolate
	// InterpolationExtrapolate predicts forward from the latest tick using its
	// velocities. No latency, but the prediction may overshoot.
	InterpolationExtrapolate
)

func (m InterpolationMode) String() string {
	switch m {
	case InterpolationNone:
		return "none"
	case InterpolationInterpolate:
		return "interpolate"
	case InterpolationExtrapolate:
		return "extrapolate"
	default:
		return "unknown"
	}
}

// Flags control optional rigidbody behaviour.
type Flags uint8

const (
	FlagNone Flags = 0
	// FlagAutoTensors derives centre of mass and inertia from the colliders.
	FlagAutoTensors Flags = 0x01
	// FlagAutoMass derives the total mass from the colliders. Only relevant
	// together with FlagAutoTensors.
	FlagAutoMass Flags = 0x02
	// FlagCCD enables continuous collision detection for fast bodies.
	FlagCCD Flags = 0x04
)

func (f Flags) Has(flag Flags) bool { return f&flag == flag }

func (f Flags) With(flag Flags) Flags { return f | flag }

func (f Flags) Without(flag Flags) Flags { return f &^ flag }

// AutoTensors reports whether mass distribution is derived from colliders.
func (f Flags) AutoTensors() bool { return f.Has(FlagAutoTensors) }

// AutoMass reports whether the total mass is derived from colliders. It is
// false whenever AutoTensors is off, regardless of the AutoMass bit.
func (f Flags) AutoMass() bool { return f.Has(FlagAutoTensors | FlagAutoMass) }

// CCD reports whether continuous collision detection is requested.
func (f Flags) CCD() bool { return f.Has(FlagCCD) }

func (f Flags) String() string {
	if f == FlagNone {
		return "none"
	}
	var parts []string
	if f.Has(FlagAutoTensors) {
		parts = append(parts, "auto_tensors")
	}
	if f.Has(FlagAutoMass) {
		parts = append(parts, "auto_mass")
	}
	if f.Has(FlagCCD) {
		parts = append(parts, "ccd")
	}
	return strings.Join(parts, "|")
}

// Pose is a position plus orientation.
type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// IdentityPose is the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Rotation: mgl64.QuatIdent()}
}

// Transform maps a point from this pose's local frame into its parent frame.
func (p Pose) Transform(local mgl64.Vec3) mgl64.Vec3 {
	return p.Position.Add(p.Rotation.Rotate(local))
}

// Compose returns the pose of child (expressed in p's frame) in p's parent frame.
func (p Pose) Compose(child Pose) Pose {
	return Pose{
		Position: p.Transform(child.Position),
		Rotation: p.Rotation.Mul(child.Rotation).Normalize(),
	}
}

// TickInfo describes one fixed simulation step. Times are in seconds.
type TickInfo struct {
	Index    uint64
	Time     float64
	Duration float64
}

// TickState is the raw post-solve state a backend reports for one body.
type TickState struct {
	Tick            TickInfo
	Pose            Pose
	LinearVelocity  mgl64.Vec3
	AngularVelocity mgl64.Vec3
}

// ContactPoint is one point of a collider pair's contact manifold.
type ContactPoint struct {
	Position   mgl64.Vec3
	Normal     mgl64.Vec3
	Impulse    float64
	Separation float64
}

// ColliderRef names one side of a collision pair.
type ColliderRef struct {
	Body     BodyID
	Collider ColliderID
}

// CollisionData is the snapshot handed to collision listeners. Listeners own
// the value; it never aliases backend buffers.
type CollisionData struct {
	Tick      uint64
	Colliders [2]ColliderRef
	Contacts  []ContactPoint
}

// Clone deep-copies the contact slice.
func (d CollisionData) Clone() CollisionData {
	out := d
	if d.Contacts != nil {
		out.Contacts = make([]ContactPoint, len(d.Contacts))
		copy(out.Contacts, d.Contacts)
	}
	return out
}

// CollisionHandler receives collision notifications for one rigidbody.
type CollisionHandler func(CollisionData)
