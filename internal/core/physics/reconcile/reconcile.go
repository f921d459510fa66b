// Package reconcile turns fixed-rate simulation results into transforms
// sampled at an arbitrary render time.
//
// Interpolate and Extrapolate are pure functions of the tick states, the tick
// duration and the render time. Reconciler keeps the two most recent tick
// states for a body and dispatches on its interpolation mode.
package reconcile

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/rigidbody/internal/core/physics"
)

// Alpha is the blend parameter between older and newer for renderTime,
// clamped to [0, 1]. A non-positive step yields 1.
func Alpha(olderTime, renderTime, step float64) float64 {
	if step <= 0 {
		return 1
	}
	return clamp01((renderTime - olderTime) / step)
}

// Interpolate blends two poses: linear for position, shortest-arc slerp for
// rotation. alpha is clamped to [0, 1].
func Interpolate(older, newer physics.Pose, alpha float64) physics.Pose {
	alpha = clamp01(alpha)
	switch alpha {
	case 0:
		return older
	case 1:
		return newer
	}

	q1 := older.Rotation.Normalize()
	q2 := newer.Rotation.Normalize()
	if q1.Dot(q2) < 0 {
		q2 = q2.Scale(-1)
	}
	return physics.Pose{
		Position: older.Position.Add(newer.Position.Sub(older.Position).Mul(alpha)),
		Rotation: mgl64.QuatSlerp(q1, q2, alpha).Normalize(),
	}
}

// Extrapolate predicts the pose elapsed seconds after state using its linear
// and angular velocity. elapsed is clamped to [0, horizon]; a non-positive
// horizon disables prediction.
func Extrapolate(state physics.TickState, elapsed, horizon float64) physics.Pose {
	if horizon <= 0 || elapsed <= 0 {
		return state.Pose
	}
	if elapsed > horizon {
		elapsed = horizon
	}

	pose := physics.Pose{
		Position: state.Pose.Position.Add(state.LinearVelocity.Mul(elapsed)),
		Rotation: state.Pose.Rotation,
	}
	speed := state.AngularVelocity.Len()
	if speed > 0 {
		spin := mgl64.QuatRotate(speed*elapsed, state.AngularVelocity.Mul(1/speed))
		pose.Rotation = spin.Mul(state.Pose.Rotation).Normalize()
	}
	return pose
}

// Reconciler holds the two latest tick states of one body.
type Reconciler struct {
	older  physics.TickState
	latest physics.TickState
	count  uint8
}

// Push records the state of a newly completed tick.
func (r *Reconciler) Push(state physics.TickState) {
	r.older = r.latest
	r.latest = state
	if r.count < 2 {
		r.count++
	}
}

// Reset forgets history. Used after a teleport so the next render does not
// blend across it.
func (r *Reconciler) Reset() {
	*r = Reconciler{}
}

// Ready reports whether at least one tick was pushed.
func (r *Reconciler) Ready() bool { return r.count > 0 }

// Latest returns the most recent tick state.
func (r *Reconciler) Latest() physics.TickState { return r.latest }

// Older returns the tick before Latest, or Latest when only one tick exists.
func (r *Reconciler) Older() physics.TickState {
	if r.count < 2 {
		return r.latest
	}
	return r.older
}

// Resolve returns the pose to display at renderTime. The second result is
// false until a tick has been pushed.
func (r *Reconciler) Resolve(mode physics.InterpolationMode, renderTime float64) (physics.Pose, bool) {
	if r.count == 0 {
		return physics.Pose{}, false
	}

	switch mode {
	case physics.InterpolationInterpolate:
		if r.count < 2 {
			return r.latest.Pose, true
		}
		step := r.latest.Tick.Duration
		if step <= 0 {
			step = r.latest.Tick.Time - r.older.Tick.Time
		}
		return Interpolate(r.older.Pose, r.latest.Pose, Alpha(r.older.Tick.Time, renderTime, step)), true
	case physics.InterpolationExtrapolate:
		return Extrapolate(r.latest, renderTime-r.latest.Tick.Time, r.latest.Tick.Duration), true
	default:
		return r.latest.Pose, true
	}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
