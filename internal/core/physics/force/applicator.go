// Package force turns buffered force, torque and velocity requests into the
// velocity changes a backend applies at the start of a step.
package force

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/rigidbody/internal/core/physics"
)

// Accumulator collects linear and angular requests between ticks. Requests
// keep their mode until Resolve so each quantity is converted once, with the
// mass properties and step size of the tick that consumes it.
type Accumulator struct {
	linear  [4]mgl64.Vec3
	angular [4]mgl64.Vec3
	pending bool
}

func (a *Accumulator) AddLinear(mode physics.ForceMode, value mgl64.Vec3) {
	a.linear[mode] = a.linear[mode].Add(value)
	a.pending = true
}

func (a *Accumulator) AddAngular(mode physics.ForceMode, value mgl64.Vec3) {
	a.angular[mode] = a.angular[mode].Add(value)
	a.pending = true
}

// AddAtPoint splits a world space force at a world space point into a linear
// part and the torque it produces about the centre of mass.
func (a *Accumulator) AddAtPoint(value, point, centerOfMass mgl64.Vec3, mode physics.PointForceMode) {
	linear, torque := AtPoint(value, point, centerOfMass)
	a.AddLinear(mode.ForceMode(), linear)
	a.AddAngular(mode.ForceMode(), torque)
}

// Pending reports whether anything was added since the last Reset.
func (a *Accumulator) Pending() bool { return a.pending }

func (a *Accumulator) Reset() {
	*a = Accumulator{}
}

// Linear returns the buffered sum for one mode.
func (a *Accumulator) Linear(mode physics.ForceMode) mgl64.Vec3 { return a.linear[mode] }

// Angular returns the buffered sum for one mode.
func (a *Accumulator) Angular(mode physics.ForceMode) mgl64.Vec3 { return a.angular[mode] }

// Response is what the integrator needs to convert requests into velocity.
type Response struct {
	// InverseMass is zero for immovable bodies.
	InverseMass float64
	// InverseInertia is the world space inverse inertia tensor.
	InverseInertia mgl64.Mat3
	// Step is the tick duration in seconds.
	Step float64
}

// Delta is the velocity change produced by resolved requests.
type Delta struct {
	Linear  mgl64.Vec3
	Angular mgl64.Vec3
}

// Resolve converts every buffered request into a velocity change and clears
// the accumulator.
func (a *Accumulator) Resolve(r Response) Delta {
	d := Delta{
		Linear:  linearDelta(a.linear, r),
		Angular: angularDelta(a.angular, r),
	}
	a.Reset()
	return d
}

func linearDelta(in [4]mgl64.Vec3, r Response) mgl64.Vec3 {
	if r.InverseMass == 0 {
		return mgl64.Vec3{}
	}
	dv := in[physics.ForceModeForce].Mul(r.InverseMass * r.Step)
	dv = dv.Add(in[physics.ForceModeImpulse].Mul(r.InverseMass))
	dv = dv.Add(in[physics.ForceModeVelocity])
	dv = dv.Add(in[physics.ForceModeAcceleration].Mul(r.Step))
	return dv
}

func angularDelta(in [4]mgl64.Vec3, r Response) mgl64.Vec3 {
	dw := r.InverseInertia.Mul3x1(in[physics.ForceModeForce].Mul(r.Step))
	dw = dw.Add(r.InverseInertia.Mul3x1(in[physics.ForceModeImpulse]))
	dw = dw.Add(in[physics.ForceModeVelocity])
	dw = dw.Add(in[physics.ForceModeAcceleration].Mul(r.Step))
	return dw
}

// AtPoint decomposes a force applied at point into the same force at the
// centre of mass plus the torque (point - centerOfMass) x force.
func AtPoint(value, point, centerOfMass mgl64.Vec3) (linear, torque mgl64.Vec3) {
	return value, point.Sub(centerOfMass).Cross(value)
}

// VelocityAtPoint is linear + angular x (point - centerOfMass).
func VelocityAtPoint(linear, angular, point, centerOfMass mgl64.Vec3) mgl64.Vec3 {
	return linear.Add(angular.Cross(point.Sub(centerOfMass)))
}

// InverseInertiaWorld builds R * diag(1/I) * Rᵀ. A zero principal moment maps
// to a zero inverse moment, so torque about that axis is ignored.
func InverseInertiaWorld(principal mgl64.Vec3, rotation mgl64.Quat) mgl64.Mat3 {
	var inv mgl64.Vec3
	for i := 0; i < 3; i++ {
		if principal[i] > 0 {
			inv[i] = 1 / principal[i]
		}
	}
	r := rotation.Normalize().Mat4().Mat3()
	return r.Mul3(mgl64.Diag3(inv)).Mul3(r.Transpose())
}

// InverseMass maps zero mass to zero inverse mass.
func InverseMass(mass float64) float64 {
	if mass <= 0 {
		return 0
	}
	return 1 / mass
}

// LockAxes removes the spin about every principal axis with a zero moment.
// rotation orients the principal axes in world space.
func LockAxes(angular, principal mgl64.Vec3, rotation mgl64.Quat) mgl64.Vec3 {
	q := rotation.Normalize()
	for i := 0; i < 3; i++ {
		if principal[i] > 0 {
			continue
		}
		var axis mgl64.Vec3
		axis[i] = 1
		w := q.Rotate(axis)
		angular = angular.Sub(w.Mul(angular.Dot(w)))
	}
	return angular
}
