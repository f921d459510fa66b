package body

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/rigidbody/internal/core/physics"
	"github.com/zeusync/rigidbody/internal/core/physics/shape"
)

type unimplemented struct{ physics.Rigidbody }

type testBody struct {
	Base
	unimplemented
	updates int
}

func (b *testBody) UpdateMassDistribution() { b.updates++ }

type recordingNode struct {
	writes []mgl64.Vec3
}

func (n *recordingNode) ApplyTransform(position mgl64.Vec3, _ mgl64.Quat) {
	n.writes = append(n.writes, position)
}

func newTestBody(t *testing.T) (*testBody, *recordingNode) {
	t.Helper()
	node := &recordingNode{}
	b := &testBody{}
	require.NoError(t, b.Init(b, node, nil))
	return b, node
}

func tick(index uint64, time float64, x float64) physics.TickState {
	return physics.TickState{
		Tick: physics.TickInfo{Index: index, Time: time, Duration: 1},
		Pose: physics.Pose{Position: mgl64.Vec3{x, 0, 0}, Rotation: mgl64.QuatIdent()},
	}
}

func TestInitRequiresNode(t *testing.T) {
	b := &testBody{}
	assert.ErrorIs(t, b.Init(b, nil, nil), physics.ErrNilSceneNode)
}

func TestDefaults(t *testing.T) {
	b, _ := newTestBody(t)
	assert.Equal(t, physics.FlagAutoTensors|physics.FlagAutoMass, b.Flags())
	assert.Equal(t, DefaultPositionSolverCount, b.PositionSolverCount())
	assert.Equal(t, DefaultVelocitySolverCount, b.VelocitySolverCount())
	assert.Equal(t, physics.InterpolationNone, b.InterpolationMode())
}

func TestPhysicsIDAssignedOnce(t *testing.T) {
	b, _ := newTestBody(t)
	assert.ErrorIs(t, b.SetPhysicsID(0), physics.ErrZeroPhysicsID)
	require.NoError(t, b.SetPhysicsID(7))
	assert.ErrorIs(t, b.SetPhysicsID(8), physics.ErrPhysicsIDAssigned)
	assert.Equal(t, physics.BodyID(7), b.PhysicsID())
}

func TestOwnerIsTyped(t *testing.T) {
	b, _ := newTestBody(t)
	_, ok := b.Owner(physics.OwnerComponent)
	assert.False(t, ok)

	b.SetOwner(physics.Owner{Kind: physics.OwnerScript, Handle: 3})
	_, ok = b.Owner(physics.OwnerComponent)
	assert.False(t, ok)
	o, ok := b.Owner(physics.OwnerScript)
	require.True(t, ok)
	assert.Equal(t, uint64(3), o.Handle)
}

func TestNoneWritesNodeEveryTick(t *testing.T) {
	b, node := newTestBody(t)
	b.ApplyTickTransform(tick(0, 0, 0))
	b.ApplyTickTransform(tick(1, 1, 10))
	assert.Equal(t, []mgl64.Vec3{{0, 0, 0}, {10, 0, 0}}, node.writes)

	b.Render(1.5)
	assert.Equal(t, mgl64.Vec3{10, 0, 0}, node.writes[len(node.writes)-1])
}

func TestInterpolateWaitsForRender(t *testing.T) {
	b, node := newTestBody(t)
	b.SetInterpolationMode(physics.InterpolationInterpolate)

	b.Render(0)
	assert.Empty(t, node.writes, "nothing to render before the first tick")

	b.ApplyTickTransform(tick(0, 0, 0))
	b.ApplyTickTransform(tick(1, 1, 10))
	assert.Empty(t, node.writes)

	b.Render(0.5)
	require.Len(t, node.writes, 1)
	assert.True(t, node.writes[0].ApproxEqualThreshold(mgl64.Vec3{5, 0, 0}, 1e-12))

	b.ResetInterpolation()
	_, ok := b.Resolve(0.5)
	assert.False(t, ok)
}

func TestCollisionListenersInOrder(t *testing.T) {
	b, _ := newTestBody(t)
	var got []string
	b.OnCollisionBegin(func(physics.CollisionData) { got = append(got, "begin-1") })
	b.OnCollisionBegin(func(physics.CollisionData) { got = append(got, "begin-2") })
	b.OnCollisionEnd(func(physics.CollisionData) { got = append(got, "end") })
	b.OnCollisionStay(nil)

	b.DeliverCollision(physics.CollisionBegin, physics.CollisionData{})
	b.DeliverCollision(physics.CollisionStay, physics.CollisionData{})
	b.DeliverCollision(physics.CollisionEnd, physics.CollisionData{})
	assert.Equal(t, []string{"begin-1", "begin-2", "end"}, got)
}

func TestListenersReceiveCopies(t *testing.T) {
	b, _ := newTestBody(t)
	var first, second physics.CollisionData
	b.OnCollisionStay(func(d physics.CollisionData) {
		first = d
		d.Contacts[0].Impulse = 42
	})
	b.OnCollisionStay(func(d physics.CollisionData) { second = d })

	b.DeliverCollision(physics.CollisionStay, physics.CollisionData{Contacts: []physics.ContactPoint{{}}})
	assert.Equal(t, 42.0, first.Contacts[0].Impulse)
	assert.Zero(t, second.Contacts[0].Impulse)
}

func TestColliderOwnership(t *testing.T) {
	a, _ := newTestBody(t)
	other, _ := newTestBody(t)
	s := shape.NewSphere(1)

	require.NoError(t, a.AddCollider(s))
	assert.Equal(t, 1, a.updates, "the collider asks for a recompute on attach")
	require.NoError(t, a.AddCollider(s), "re-adding to the same body is a no-op")
	assert.Equal(t, 1, a.ColliderCount())

	assert.ErrorIs(t, other.AddCollider(s), physics.ErrColliderOwned)
	assert.ErrorIs(t, other.AddCollider(nil), physics.ErrNilCollider)

	a.RemoveCollider(s)
	assert.Nil(t, s.Body())
	assert.Empty(t, a.ColliderList())
	require.NoError(t, other.AddCollider(s))
	assert.Len(t, other.ColliderList(), 1)
}

func TestReleaseDetachesColliders(t *testing.T) {
	b, _ := newTestBody(t)
	s1, s2 := shape.NewSphere(1), shape.NewBox(mgl64.Vec3{1, 1, 1})
	require.NoError(t, b.AddCollider(s1))
	require.NoError(t, b.AddCollider(s2))

	assert.True(t, b.ReleaseBase())
	assert.False(t, b.ReleaseBase())
	assert.True(t, b.Released())
	assert.Nil(t, s1.Body())
	assert.Nil(t, s2.Body())
	assert.Zero(t, b.ColliderCount())
	assert.ErrorIs(t, b.AddCollider(shape.NewSphere(1)), physics.ErrBodyReleased)
}
