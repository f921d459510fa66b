package shape

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/rigidbody/internal/core/physics"
	"github.com/zeusync/rigidbody/internal/core/physics/mass"
)

var (
	_ physics.Collider = (*Sphere)(nil)
	_ physics.Collider = (*Box)(nil)
	_ physics.Collider = (*Capsule)(nil)
)

type Sphere struct {
	collider
	r float64
}

func NewSphere(radius float64) *Sphere {
	s := &Sphere{r: radius}
	s.init(sphereGeom{s})
	return s
}

func (s *Sphere) Radius() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.r
}

func (s *Sphere) SetRadius(radius float64) {
	s.mutate(func() { s.r = radius })
}

type sphereGeom struct{ s *Sphere }

func (g sphereGeom) volume() float64         { return mass.SphereVolume(g.s.r) }
func (g sphereGeom) unitInertia() mgl64.Vec3 { return mass.SphereUnitInertia(g.s.r) }
func (g sphereGeom) radius() float64         { return g.s.r }

// Box is an oriented box given by half extents.
type Box struct {
	collider
	half mgl64.Vec3
}

func NewBox(halfExtents mgl64.Vec3) *Box {
	b := &Box{half: halfExtents}
	b.init(boxGeom{b})
	return b
}

func (b *Box) HalfExtents() mgl64.Vec3 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.half
}

func (b *Box) SetHalfExtents(half mgl64.Vec3) {
	b.mutate(func() { b.half = half })
}

type boxGeom struct{ b *Box }

func (g boxGeom) volume() float64         { return mass.BoxVolume(g.b.half) }
func (g boxGeom) unitInertia() mgl64.Vec3 { return mass.BoxUnitInertia(g.b.half) }
func (g boxGeom) radius() float64         { return g.b.half.Len() }

// Capsule is aligned with its local Y axis. HalfHeight excludes the caps.
type Capsule struct {
	collider
	r          float64
	halfHeight float64
}

func NewCapsule(radius, halfHeight float64) *Capsule {
	c := &Capsule{r: radius, halfHeight: halfHeight}
	c.init(capsuleGeom{c})
	return c
}

func (c *Capsule) Radius() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.r
}

func (c *Capsule) HalfHeight() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.halfHeight
}

func (c *Capsule) SetSize(radius, halfHeight float64) {
	c.mutate(func() {
		c.r = radius
		c.halfHeight = halfHeight
	})
}

type capsuleGeom struct{ c *Capsule }

func (g capsuleGeom) volume() float64 { return mass.CapsuleVolume(g.c.r, g.c.halfHeight) }
func (g capsuleGeom) unitInertia() mgl64.Vec3 {
	return mass.CapsuleUnitInertia(g.c.r, g.c.halfHeight)
}
func (g capsuleGeom) radius() float64 { return g.c.r + g.c.halfHeight }
