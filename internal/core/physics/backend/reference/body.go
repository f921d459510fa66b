package reference

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/rigidbody/internal/core/observability/log"
	"github.com/zeusync/rigidbody/internal/core/physics"
	"github.com/zeusync/rigidbody/internal/core/physics/body"
	"github.com/zeusync/rigidbody/internal/core/physics/force"
	"github.com/zeusync/rigidbody/internal/core/physics/mass"
	"github.com/zeusync/rigidbody/internal/core/physics/motion"
)

const defaultMass = 1.0

var defaultInertia = mgl64.Vec3{1, 1, 1}

type commandKind uint8

const (
	cmdSetLinear commandKind = iota
	cmdSetAngular
	cmdMove
	cmdRotate
	cmdTeleport
)

type command struct {
	kind     commandKind
	vec      mgl64.Vec3
	rotation mgl64.Quat
}

// Body is the reference rigidbody. Setters of plain properties take effect
// immediately; motion requests are queued and applied at the start of the
// next step. Getters report the state of the last completed step.
type Body struct {
	body.Base
	world *World

	mu          sync.Mutex
	pose        physics.Pose
	linear      mgl64.Vec3
	angular     mgl64.Vec3
	mass        float64
	inertia     mgl64.Vec3
	comPos      mgl64.Vec3
	comRot      mgl64.Quat
	drag        float64
	angularDrag float64
	maxAngular  float64
	useGravity  bool
	machine     *motion.Machine
	forces      force.Accumulator
	commands    []command
	// warnedIdle is set once the missing collider debug line was logged.
	warnedIdle bool
}

var _ physics.Rigidbody = (*Body)(nil)

func newBody(w *World) *Body {
	b := &Body{
		world:      w,
		pose:       physics.IdentityPose(),
		mass:       defaultMass,
		inertia:    defaultInertia,
		comRot:     mgl64.QuatIdent(),
		maxAngular: w.opts.MaxAngularVelocity,
		useGravity: true,
		machine:    motion.NewMachine(w.opts.SleepThreshold, w.opts.SleepTicks),
	}
	b.machine.OnTransition(b.logTransition)
	return b
}

// wakeLocked must be called with b.mu held.
func (b *Body) wakeLocked(cause motion.Cause) {
	b.machine.Wake(cause)
}

func (b *Body) logTransition(t motion.Transition) {
	b.Logger().Debug("motion state changed",
		log.String("from", t.From.String()),
		log.String("to", t.To.String()),
		log.String("cause", t.Cause.String()),
	)
}

func (b *Body) enqueue(cause motion.Cause, cmd command) {
	b.mu.Lock()
	b.wakeLocked(cause)
	b.commands = append(b.commands, cmd)
	b.mu.Unlock()
}

// Move sweeps the body toward position during the next step, stopping at
// the first blocking contact.
func (b *Body) Move(position mgl64.Vec3) {
	b.enqueue(motion.CauseMove, command{kind: cmdMove, vec: position})
}

// Rotate applies rotation at the next step.
func (b *Body) Rotate(rotation mgl64.Quat) {
	b.enqueue(motion.CauseMove, command{kind: cmdRotate, rotation: rotation.Normalize()})
}

func (b *Body) SetTransform(position mgl64.Vec3, rotation mgl64.Quat) {
	b.enqueue(motion.CauseMove, command{kind: cmdTeleport, vec: position, rotation: rotation.Normalize()})
}

func (b *Body) Position() mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pose.Position
}

func (b *Body) Rotation() mgl64.Quat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pose.Rotation
}

func (b *Body) SetMass(m float64) {
	b.mu.Lock()
	b.mass = m
	b.mu.Unlock()
}

func (b *Body) Mass() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mass
}

func (b *Body) SetInertiaTensor(tensor mgl64.Vec3) {
	b.mu.Lock()
	b.inertia = tensor
	b.mu.Unlock()
}

func (b *Body) InertiaTensor() mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.inertia
}

func (b *Body) SetCenterOfMass(position mgl64.Vec3, rotation mgl64.Quat) {
	b.mu.Lock()
	b.comPos = position
	b.comRot = rotation.Normalize()
	b.mu.Unlock()
}

func (b *Body) CenterOfMassPosition() mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.comPos
}

func (b *Body) CenterOfMassRotation() mgl64.Quat {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.comRot
}

// UpdateMassDistribution aggregates the colliders when AutoTensors is set.
// With no colliders the body returns to its never-attached defaults.
func (b *Body) UpdateMassDistribution() {
	flags := b.Flags()
	if !flags.AutoTensors() {
		return
	}
	colliders := b.ColliderList()
	parts := make([]mass.Part, 0, len(colliders))
	for _, c := range colliders {
		parts = append(parts, c.MassPart())
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	props, ok := mass.Aggregate(parts, flags.AutoMass(), b.mass)
	if !ok {
		b.inertia = defaultInertia
		b.comPos = mgl64.Vec3{}
		b.comRot = mgl64.QuatIdent()
		if flags.AutoMass() {
			b.mass = defaultMass
		}
		return
	}
	b.mass = props.Mass
	b.inertia = props.Inertia
	b.comPos = props.CenterOfMass
	b.comRot = props.Rotation
}

// SetIsKinematic toggles kinematic mode. Entering it drops velocities and
// pending forces.
func (b *Body) SetIsKinematic(kinematic bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.machine.SetKinematic(kinematic)
	if kinematic {
		b.linear = mgl64.Vec3{}
		b.angular = mgl64.Vec3{}
		b.forces.Reset()
		b.dropVelocityCommands()
	}
}

func (b *Body) dropVelocityCommands() {
	kept := b.commands[:0]
	for _, c := range b.commands {
		if c.kind != cmdSetLinear && c.kind != cmdSetAngular {
			kept = append(kept, c)
		}
	}
	b.commands = kept
}

func (b *Body) IsKinematic() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.machine.IsKinematic()
}

func (b *Body) IsSleeping() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.machine.IsSleeping()
}

// Sleep puts the body to sleep immediately and zeroes its velocities.
func (b *Body) Sleep() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.machine.Sleep()
	b.linear = mgl64.Vec3{}
	b.angular = mgl64.Vec3{}
}

func (b *Body) WakeUp() {
	b.mu.Lock()
	b.wakeLocked(motion.CauseExplicit)
	b.mu.Unlock()
}

func (b *Body) SetSleepThreshold(threshold float64) {
	b.mu.Lock()
	b.machine.SetThreshold(threshold)
	b.mu.Unlock()
}

func (b *Body) SleepThreshold() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.machine.Threshold()
}

// SetUseGravity wakes the body when gravity is switched on.
func (b *Body) SetUseGravity(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if enabled && !b.useGravity {
		b.wakeLocked(motion.CauseGravity)
	}
	b.useGravity = enabled
}

func (b *Body) UseGravity() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.useGravity
}

// SetVelocity replaces the linear velocity at the next step. Kinematic bodies
// ignore it.
func (b *Body) SetVelocity(velocity mgl64.Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wakeLocked(motion.CauseVelocity)
	if b.machine.IsKinematic() {
		return
	}
	b.commands = append(b.commands, command{kind: cmdSetLinear, vec: velocity})
}

func (b *Body) Velocity() mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.linear
}

func (b *Body) SetAngularVelocity(velocity mgl64.Vec3) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wakeLocked(motion.CauseVelocity)
	if b.machine.IsKinematic() {
		return
	}
	b.commands = append(b.commands, command{kind: cmdSetAngular, vec: velocity})
}

func (b *Body) AngularVelocity() mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.angular
}

func (b *Body) SetDrag(drag float64) {
	b.mu.Lock()
	b.drag = drag
	b.mu.Unlock()
}

func (b *Body) Drag() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.drag
}

func (b *Body) SetAngularDrag(drag float64) {
	b.mu.Lock()
	b.angularDrag = drag
	b.mu.Unlock()
}

func (b *Body) AngularDrag() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.angularDrag
}

func (b *Body) SetMaxAngularVelocity(limit float64) {
	b.mu.Lock()
	b.maxAngular = limit
	b.mu.Unlock()
}

func (b *Body) MaxAngularVelocity() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxAngular
}

// AddForce wakes the body before queueing the force, so a sleeping body is
// integrated with it on the next step. Kinematic bodies ignore forces.
func (b *Body) AddForce(f mgl64.Vec3, mode physics.ForceMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wakeLocked(motion.CauseForce)
	if b.machine.IsKinematic() {
		return
	}
	b.forces.AddLinear(mode, f)
}

func (b *Body) AddTorque(torque mgl64.Vec3, mode physics.ForceMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wakeLocked(motion.CauseForce)
	if b.machine.IsKinematic() {
		return
	}
	b.forces.AddAngular(mode, torque)
}

func (b *Body) AddForceAtPoint(f, point mgl64.Vec3, mode physics.PointForceMode) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wakeLocked(motion.CauseForce)
	if b.machine.IsKinematic() {
		return
	}
	b.forces.AddAtPoint(f, point, b.pose.Transform(b.comPos), mode)
}

func (b *Body) VelocityAtPoint(point mgl64.Vec3) mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return force.VelocityAtPoint(b.linear, b.angular, point, b.pose.Transform(b.comPos))
}

// WorldCenterOfMass is the centre of mass after the last completed step.
func (b *Body) WorldCenterOfMass() mgl64.Vec3 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pose.Transform(b.comPos)
}

// MotionState reports the state machine's view of the body.
func (b *Body) MotionState() motion.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.machine.State()
}

// Release detaches every collider and removes the body from its world.
func (b *Body) Release() {
	if !b.ReleaseBase() {
		return
	}
	b.world.forget(b)
}
