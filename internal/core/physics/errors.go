package physics

import "errors"

var (
	ErrColliderOwned     = errors.New("collider is attached to another body")
	ErrNilCollider       = errors.New("collider is nil")
	ErrPhysicsIDAssigned = errors.New("physics id already assigned")
	ErrZeroPhysicsID     = errors.New("physics id must be non-zero")
	ErrBodyReleased      = errors.New("rigidbody has been released")
	ErrNilSceneNode      = errors.New("scene node is nil")
)
