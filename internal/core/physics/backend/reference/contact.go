package reference

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/rigidbody/internal/core/physics"
)

const (
	// linearSlop is the overlap left in place to keep resting contacts stable.
	linearSlop = 0.005
	// baumgarte is the fraction of the remaining overlap removed per position
	// iteration.
	baumgarte = 0.8
)

type contact struct {
	a, b    *sim
	ia, ib  int
	normal  mgl64.Vec3 // from a to b
	point   mgl64.Vec3
	depth   float64
	impulse float64
}

func (c *contact) data() physics.CollisionData {
	return physics.CollisionData{
		Colliders: [2]physics.ColliderRef{c.a.shapes[c.ia].ref, c.b.shapes[c.ib].ref},
		Contacts: []physics.ContactPoint{{
			Position:   c.point,
			Normal:     c.normal,
			Impulse:    c.impulse,
			Separation: -c.depth,
		}},
	}
}

func (c *contact) velocityIters() uint32 {
	return max(c.a.velocityIters, c.b.velocityIters)
}

func (c *contact) positionIters() uint32 {
	return max(c.a.positionIters, c.b.positionIters)
}

// findContacts tests every collider pair of every body pair, in the
// priority order of sims. Pairs of two kinematic bodies are skipped. A
// sleeping body touched by a disturbing one wakes up.
func findContacts(sims []*sim) []*contact {
	var out []*contact
	for i := 0; i < len(sims); i++ {
		a := sims[i]
		for j := i + 1; j < len(sims); j++ {
			b := sims[j]
			if a.kinematic && b.kinematic {
				continue
			}
			found := appendContacts(out, a, b)
			if len(found) == len(out) {
				continue
			}
			out = found
			wakeOnTouch(a, b)
			wakeOnTouch(b, a)
		}
	}
	return out
}

func appendContacts(out []*contact, a, b *sim) []*contact {
	for ia, sa := range a.shapes {
		ca := a.shapeCenter(ia)
		for ib, sb := range b.shapes {
			cb := b.shapeCenter(ib)
			d := cb.Sub(ca)
			dist := d.Len()
			depth := sa.radius + sb.radius - dist
			if depth <= 0 {
				continue
			}
			normal := mgl64.Vec3{0, 1, 0}
			if dist > 1e-12 {
				normal = d.Mul(1 / dist)
			}
			out = append(out, &contact{
				a: a, b: b, ia: ia, ib: ib,
				normal: normal,
				point:  ca.Add(normal.Mul(sa.radius - depth/2)),
				depth:  depth,
			})
		}
	}
	return out
}

func wakeOnTouch(sleeper, other *sim) {
	if sleeper.sleeping && other.disturbs() {
		sleeper.sleeping = false
		sleeper.woke = true
	}
}

// solveVelocities applies sequential normal impulses. Each contact runs as
// many iterations as the larger velocity solver count of its two bodies.
func solveVelocities(contacts []*contact, restitution float64) {
	var rounds uint32
	for _, c := range contacts {
		rounds = max(rounds, c.velocityIters())
	}
	for it := uint32(0); it < rounds; it++ {
		for _, c := range contacts {
			if it < c.velocityIters() {
				c.solveVelocity(restitution)
			}
		}
	}
}

func (c *contact) solveVelocity(restitution float64) {
	a, b := c.a, c.b
	imA, imB := a.effectiveInvMass(), b.effectiveInvMass()
	iiA, iiB := a.effectiveInvInertia(), b.effectiveInvInertia()

	ra := c.point.Sub(a.centerOfMass())
	rb := c.point.Sub(b.centerOfMass())
	va := a.linear.Add(a.angular.Cross(ra))
	vb := b.linear.Add(b.angular.Cross(rb))
	vn := vb.Sub(va).Dot(c.normal)
	if vn >= 0 {
		return
	}

	n := c.normal
	k := imA + imB +
		n.Dot(iiA.Mul3x1(ra.Cross(n)).Cross(ra)) +
		n.Dot(iiB.Mul3x1(rb.Cross(n)).Cross(rb))
	if k <= 0 {
		return
	}

	j := -(1 + restitution) * vn / k
	total := math.Max(c.impulse+j, 0)
	j = total - c.impulse
	c.impulse = total

	p := n.Mul(j)
	a.linear = a.linear.Sub(p.Mul(imA))
	a.angular = a.angular.Sub(iiA.Mul3x1(ra.Cross(p)))
	b.linear = b.linear.Add(p.Mul(imB))
	b.angular = b.angular.Add(iiB.Mul3x1(rb.Cross(p)))
}

// solvePositions pushes overlapping bodies apart along the contact normal,
// split by inverse mass.
func solvePositions(contacts []*contact) {
	var rounds uint32
	for _, c := range contacts {
		rounds = max(rounds, c.positionIters())
	}
	for it := uint32(0); it < rounds; it++ {
		for _, c := range contacts {
			if it < c.positionIters() {
				c.solvePosition()
			}
		}
	}
}

func (c *contact) solvePosition() {
	a, b := c.a, c.b
	imA, imB := a.effectiveInvMass(), b.effectiveInvMass()
	if imA+imB == 0 {
		return
	}
	ca, cb := a.shapeCenter(c.ia), b.shapeCenter(c.ib)
	depth := a.shapes[c.ia].radius + b.shapes[c.ib].radius - cb.Sub(ca).Len()
	correction := baumgarte * math.Max(depth-linearSlop, 0) / (imA + imB)
	if correction == 0 {
		return
	}
	a.pose.Position = a.pose.Position.Sub(c.normal.Mul(correction * imA))
	b.pose.Position = b.pose.Position.Add(c.normal.Mul(correction * imB))
}
