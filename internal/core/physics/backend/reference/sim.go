package reference

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/rigidbody/internal/core/physics"
	"github.com/zeusync/rigidbody/internal/core/physics/force"
	"github.com/zeusync/rigidbody/internal/core/physics/motion"
)

const (
	// maxSweepSteps bounds the sub-steps of a Move or CCD sweep.
	maxSweepSteps = 64
	// sweepSlop is the penetration a sweep tolerates before it stops.
	sweepSlop = 1e-6
)

type shapeRef struct {
	ref    physics.ColliderRef
	local  mgl64.Vec3
	radius float64
}

// sim is a body's working copy for one step. Only the step goroutine
// touches it, so the body lock is held just while copying in and out.
type sim struct {
	body *Body

	pose       physics.Pose
	linear     mgl64.Vec3
	angular    mgl64.Vec3
	comLocal   mgl64.Vec3
	comRot     mgl64.Quat
	principal  mgl64.Vec3
	invMass    float64
	invInertia mgl64.Mat3

	drag        float64
	angularDrag float64
	maxAngular  float64
	useGravity  bool
	threshold   float64

	kinematic bool
	sleeping  bool
	ccd       bool

	moveTarget *mgl64.Vec3
	moved      bool
	teleported bool
	woke       bool

	positionIters uint32
	velocityIters uint32

	shapes    []shapeRef
	minRadius float64

	sleepingAfter bool
}

// prepare drains the body's queued commands and forces into a sim. It
// reports false for bodies without colliders, which are not simulated.
func (b *Body) prepare(dt float64) (*sim, bool) {
	colliders := b.ColliderList()
	if len(colliders) == 0 {
		b.mu.Lock()
		warn := !b.warnedIdle
		b.warnedIdle = true
		b.mu.Unlock()
		if warn {
			b.Logger().Debug("body has no colliders, skipping simulation")
		}
		return nil, false
	}

	id := b.PhysicsID()
	s := &sim{
		body:          b,
		ccd:           b.Flags().CCD(),
		positionIters: b.PositionSolverCount(),
		velocityIters: b.VelocitySolverCount(),
		shapes:        make([]shapeRef, len(colliders)),
		minRadius:     math.Inf(1),
	}
	for i, c := range colliders {
		r := c.BoundingRadius()
		s.shapes[i] = shapeRef{
			ref:    physics.ColliderRef{Body: id, Collider: c.ID()},
			local:  c.LocalPose().Position,
			radius: r,
		}
		if r > 0 && r < s.minRadius {
			s.minRadius = r
		}
	}
	if math.IsInf(s.minRadius, 1) {
		s.minRadius = 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.warnedIdle = false

	for _, cmd := range b.commands {
		switch cmd.kind {
		case cmdSetLinear:
			b.linear = cmd.vec
		case cmdSetAngular:
			b.angular = cmd.vec
		case cmdMove:
			target := cmd.vec
			s.moveTarget = &target
		case cmdRotate:
			b.pose.Rotation = cmd.rotation
			s.moved = true
		case cmdTeleport:
			b.pose = physics.Pose{Position: cmd.vec, Rotation: cmd.rotation}
			s.moveTarget = nil
			s.teleported = true
			s.moved = true
		}
	}
	b.commands = b.commands[:0]

	s.kinematic = b.machine.IsKinematic()
	s.sleeping = b.machine.IsSleeping()
	s.threshold = b.machine.Threshold()
	s.pose = b.pose
	s.comLocal = b.comPos
	s.comRot = b.comRot
	s.principal = b.inertia
	s.invMass = force.InverseMass(b.mass)
	s.invInertia = force.InverseInertiaWorld(b.inertia, b.pose.Rotation.Mul(b.comRot))
	s.drag = b.drag
	s.angularDrag = b.angularDrag
	s.maxAngular = b.maxAngular
	s.useGravity = b.useGravity

	if s.kinematic || s.sleeping {
		b.forces.Reset()
	} else {
		delta := b.forces.Resolve(force.Response{
			InverseMass:    s.invMass,
			InverseInertia: s.invInertia,
			Step:           dt,
		})
		b.linear = b.linear.Add(delta.Linear)
		b.angular = force.LockAxes(b.angular.Add(delta.Angular), b.inertia, b.pose.Rotation.Mul(b.comRot))
	}
	s.linear = b.linear
	s.angular = b.angular
	return s, true
}

// integrate advances an awake dynamic body by dt. A CCD body returns the
// contact its sweep stopped on, if any.
func (s *sim) integrate(dt float64, gravity mgl64.Vec3, sims []*sim) *contact {
	if s.invMass > 0 {
		if s.useGravity {
			s.linear = s.linear.Add(gravity.Mul(dt))
		}
	} else {
		s.linear = mgl64.Vec3{}
	}
	if s.drag > 0 {
		s.linear = s.linear.Mul(1 / (1 + s.drag*dt))
	}
	if s.angularDrag > 0 {
		s.angular = s.angular.Mul(1 / (1 + s.angularDrag*dt))
	}
	if speed := s.angular.Len(); s.maxAngular > 0 && speed > s.maxAngular {
		s.angular = s.angular.Mul(s.maxAngular / speed)
	}

	if speed := s.angular.Len(); speed > 0 {
		com := s.centerOfMass()
		q := mgl64.QuatRotate(speed*dt, s.angular.Mul(1/speed)).Mul(s.pose.Rotation).Normalize()
		s.pose.Rotation = q
		s.pose.Position = com.Sub(q.Rotate(s.comLocal))
		s.invInertia = force.InverseInertiaWorld(s.principal, q.Mul(s.comRot))
		s.angular = force.LockAxes(s.angular, s.principal, q.Mul(s.comRot))
	}

	target := s.pose.Position.Add(s.linear.Mul(dt))
	if s.ccd {
		var hit *contact
		s.pose.Position, hit = sweep(s, s.pose.Position, target, sims, false)
		return hit
	}
	s.pose.Position = target
	return nil
}

func (s *sim) centerOfMass() mgl64.Vec3 {
	return s.pose.Transform(s.comLocal)
}

func (s *sim) shapeCenter(i int) mgl64.Vec3 {
	return s.pose.Transform(s.shapes[i].local)
}

// movable reports whether contact response may change this body's motion.
func (s *sim) movable() bool {
	return !s.kinematic && !s.sleeping
}

func (s *sim) effectiveInvMass() float64 {
	if !s.movable() {
		return 0
	}
	return s.invMass
}

func (s *sim) effectiveInvInertia() mgl64.Mat3 {
	if !s.movable() {
		return mgl64.Mat3{}
	}
	return s.invInertia
}

// disturbs reports whether touching this body wakes a sleeping one.
func (s *sim) disturbs() bool {
	if s.sleeping {
		return false
	}
	if s.kinematic {
		return s.moved
	}
	return motion.Energy(s.linear.Dot(s.linear), s.angular.Dot(s.angular)) >= s.threshold
}

// deepestOverlap is the deepest overlap between s placed at position and
// any other body, with the contact it forms. The contact is nil when
// nothing overlaps.
func deepestOverlap(s *sim, position mgl64.Vec3, sims []*sim) (float64, *contact) {
	pose := physics.Pose{Position: position, Rotation: s.pose.Rotation}
	deepest := 0.0
	var hit *contact
	for _, o := range sims {
		if o == s {
			continue
		}
		for ia, sa := range s.shapes {
			ca := pose.Transform(sa.local)
			for ib, sb := range o.shapes {
				d := o.shapeCenter(ib).Sub(ca)
				dist := d.Len()
				depth := sa.radius + sb.radius - dist
				if depth <= deepest {
					continue
				}
				normal := mgl64.Vec3{0, 1, 0}
				if dist > 1e-12 {
					normal = d.Mul(1 / dist)
				}
				deepest = depth
				hit = &contact{
					a: s, b: o, ia: ia, ib: ib,
					normal: normal,
					point:  ca.Add(normal.Mul(sa.radius - depth/2)),
					depth:  depth,
				}
			}
		}
	}
	return deepest, hit
}

// sweep moves s from -> to in sub-steps no longer than half its smallest
// collider radius. A sub-step that deepens an overlap ends the sweep: with
// stopBefore the body stays at the last clear position, otherwise it keeps
// the touching position so the contact pass can resolve it, and the contact
// found there is returned.
func sweep(s *sim, from, to mgl64.Vec3, sims []*sim, stopBefore bool) (mgl64.Vec3, *contact) {
	delta := to.Sub(from)
	dist := delta.Len()
	if dist == 0 || s.minRadius <= 0 {
		return to, nil
	}
	steps := int(math.Ceil(dist / (s.minRadius * 0.5)))
	if steps < 1 {
		steps = 1
	}
	if steps > maxSweepSteps {
		steps = maxSweepSteps
	}

	start, _ := deepestOverlap(s, from, sims)
	pos := from
	for k := 1; k <= steps; k++ {
		candidate := from.Add(delta.Mul(float64(k) / float64(steps)))
		if depth, hit := deepestOverlap(s, candidate, sims); depth > start+sweepSlop {
			if stopBefore {
				return pos, nil
			}
			return candidate, hit
		}
		pos = candidate
	}
	return pos, nil
}

// commit copies the step result back into the body and runs the sleep check.
func (b *Body) commit(s *sim, tick physics.TickInfo) physics.TickState {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pose = s.pose
	if s.woke {
		b.machine.Wake(motion.CauseCollision)
	}
	if !s.kinematic {
		b.linear = s.linear
		b.angular = s.angular
	}
	if !s.sleeping {
		b.machine.Observe(motion.Energy(b.linear.Dot(b.linear), b.angular.Dot(b.angular)))
	}
	if b.machine.IsSleeping() || b.machine.IsKinematic() {
		b.linear = mgl64.Vec3{}
		b.angular = mgl64.Vec3{}
	}
	s.sleepingAfter = b.machine.IsSleeping()

	return physics.TickState{
		Tick:            tick,
		Pose:            b.pose,
		LinearVelocity:  b.linear,
		AngularVelocity: b.angular,
	}
}
