package main

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/zeusync/rigidbody/internal/core/physics"
	"github.com/zeusync/rigidbody/internal/core/physics/shape"
)

// Contacts are tested between bounding spheres, so the ground is a sphere
// large enough to look flat under the stack.
const groundRadius = 1000

// populate drops a column of mixed shapes onto a kinematic ground. Transforms
// reach clients through the stream, so bodies are linked to empty nodes.
// The ground body is returned.
func populate(b physics.Backend, count int) (physics.Rigidbody, error) {
	node := physics.SceneNodeFunc(func(mgl64.Vec3, mgl64.Quat) {})

	ground, err := b.CreateBody(node)
	if err != nil {
		return nil, err
	}
	if err := ground.AddCollider(shape.NewSphere(groundRadius)); err != nil {
		return nil, err
	}
	ground.SetIsKinematic(true)
	ground.SetPriority(1)
	ground.SetTransform(mgl64.Vec3{0, -groundRadius, 0}, mgl64.QuatIdent())

	for i := 0; i < count; i++ {
		rb, err := b.CreateBody(node)
		if err != nil {
			return nil, err
		}
		var c physics.Collider
		switch i % 3 {
		case 0:
			c = shape.NewSphere(0.5)
		case 1:
			c = shape.NewBox(mgl64.Vec3{0.4, 0.4, 0.4})
		default:
			c = shape.NewCapsule(0.3, 0.25)
		}
		if err := rb.AddCollider(c); err != nil {
			return nil, fmt.Errorf("body %d: %w", i, err)
		}

		offset := 0.05 * float64(i%2)
		rb.SetTransform(mgl64.Vec3{offset, 1 + 1.2*float64(i), 0}, mgl64.QuatIdent())
		rb.SetInterpolationMode(physics.InterpolationInterpolate)
		rb.SetAngularDrag(0.05)
		if i%2 == 1 {
			rb.SetFlags(rb.Flags().With(physics.FlagCCD))
		}
	}
	return ground, nil
}
