// Package shape provides the primitive colliders: spheres, boxes and
// capsules. Every mutation that changes mass or placement asks the owning
// body to recompute its mass distribution.
package shape

import (
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/rigidbody/internal/core/physics"
	"github.com/zeusync/rigidbody/internal/core/physics/mass"
)

// DefaultDensity is water, in kg/m³.
const DefaultDensity = 1000.0

var nextID atomic.Uint64

type geometry interface {
	volume() float64
	unitInertia() mgl64.Vec3
	radius() float64
}

// collider carries the state shared by every shape.
type collider struct {
	id physics.ColliderID

	mu      sync.RWMutex
	pose    physics.Pose
	density float64
	body    physics.Rigidbody
	geom    geometry
}

func (c *collider) init(geom geometry) {
	c.id = physics.ColliderID(nextID.Add(1))
	c.pose = physics.IdentityPose()
	c.density = DefaultDensity
	c.geom = geom
}

func (c *collider) ID() physics.ColliderID { return c.id }

func (c *collider) LocalPose() physics.Pose {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pose
}

// SetLocalPose places the collider in its body's frame.
func (c *collider) SetLocalPose(pose physics.Pose) {
	c.mutate(func() { c.pose = pose })
}

func (c *collider) Density() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.density
}

// SetDensity sets the density in kg/m³. Zero makes the collider massless.
func (c *collider) SetDensity(density float64) {
	c.mutate(func() { c.density = density })
}

func (c *collider) MassPart() mass.Part {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vol := c.geom.volume()
	return mass.Part{
		Mass:        vol * c.density,
		Volume:      vol,
		Position:    c.pose.Position,
		Rotation:    c.pose.Rotation,
		UnitInertia: c.geom.unitInertia(),
	}
}

func (c *collider) BoundingRadius() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.geom.radius()
}

func (c *collider) Body() physics.Rigidbody {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.body
}

// SetBody is called by the body on attach and detach. Both the previous and
// the new owner recompute their mass distribution.
func (c *collider) SetBody(body physics.Rigidbody) {
	c.mu.Lock()
	prev := c.body
	c.body = body
	c.mu.Unlock()

	if prev != nil && prev != body {
		prev.UpdateMassDistribution()
	}
	if body != nil {
		body.UpdateMassDistribution()
	}
}

func (c *collider) mutate(fn func()) {
	c.mu.Lock()
	fn()
	owner := c.body
	c.mu.Unlock()

	if owner != nil {
		owner.UpdateMassDistribution()
	}
}
