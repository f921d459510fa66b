package reference

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/rigidbody/internal/core/physics"
	"github.com/zeusync/rigidbody/internal/core/physics/backend"
	"github.com/zeusync/rigidbody/internal/core/physics/shape"
)

const dt = 0.1

type fixture struct {
	t     *testing.T
	world *World
	index uint64
}

func newFixture(t *testing.T, opts backend.Options) *fixture {
	return &fixture{t: t, world: New(opts)}
}

func zeroGravity() backend.Options {
	opts := backend.DefaultOptions()
	opts.Gravity = mgl64.Vec3{}
	return opts
}

func (f *fixture) body(radius float64) *Body {
	f.t.Helper()
	rb, err := f.world.CreateBody(physics.SceneNodeFunc(func(mgl64.Vec3, mgl64.Quat) {}))
	require.NoError(f.t, err)
	if radius > 0 {
		require.NoError(f.t, rb.AddCollider(shape.NewSphere(radius)))
	}
	return rb.(*Body)
}

func (f *fixture) step() physics.StepReport {
	f.index++
	return f.world.Step(physics.TickInfo{Index: f.index, Time: float64(f.index) * dt, Duration: dt})
}

func eventKinds(r physics.StepReport) []physics.CollisionKind {
	out := make([]physics.CollisionKind, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.Kind
	}
	return out
}

func TestCreateBodyUsesConfiguredSolverCounts(t *testing.T) {
	opts := zeroGravity()
	opts.PositionIterations = 9
	opts.VelocityIterations = 7
	f := newFixture(t, opts)
	b := f.body(0.5)
	assert.Equal(t, uint32(9), b.PositionSolverCount())
	assert.Equal(t, uint32(7), b.VelocitySolverCount())

	b.SetPositionSolverCount(2)
	f.step()
	assert.Equal(t, uint32(2), b.PositionSolverCount(), "a per-body override sticks")

	d := newFixture(t, zeroGravity()).body(0.5)
	assert.Equal(t, uint32(4), d.PositionSolverCount())
	assert.Equal(t, uint32(1), d.VelocitySolverCount())
}

func TestCreateBodyAssignsIDs(t *testing.T) {
	f := newFixture(t, zeroGravity())
	a, b := f.body(0), f.body(0)
	assert.Equal(t, physics.BodyID(1), a.PhysicsID())
	assert.Equal(t, physics.BodyID(2), b.PhysicsID())
	assert.ErrorIs(t, a.SetPhysicsID(9), physics.ErrPhysicsIDAssigned)

	_, err := f.world.CreateBody(nil)
	assert.ErrorIs(t, err, physics.ErrNilSceneNode)

	got, ok := f.world.Body(2)
	require.True(t, ok)
	assert.Same(t, b, got)
	assert.Equal(t, Kind, f.world.Kind())
}

func TestGravityFreeFall(t *testing.T) {
	f := newFixture(t, backend.DefaultOptions())
	b := f.body(0.5)

	report := f.step()
	assert.Equal(t, 1, report.Simulated)
	assert.InDelta(t, -0.981, b.Velocity().Y(), 1e-12)
	assert.InDelta(t, -0.0981, b.Position().Y(), 1e-12)

	b.SetUseGravity(false)
	f.step()
	assert.InDelta(t, -0.981, b.Velocity().Y(), 1e-12, "no further acceleration without gravity")
}

func TestBodiesWithoutCollidersAreSkipped(t *testing.T) {
	f := newFixture(t, backend.DefaultOptions())
	b := f.body(0)
	report := f.step()
	assert.Zero(t, report.Simulated)
	assert.Equal(t, mgl64.Vec3{}, b.Position())
}

func TestSleepingBodyWakesBeforeForceIsIntegrated(t *testing.T) {
	f := newFixture(t, zeroGravity())
	b := f.body(0.5)
	b.SetFlags(physics.FlagNone)
	b.SetMass(2)

	b.Sleep()
	require.True(t, b.IsSleeping())

	b.AddForce(mgl64.Vec3{10, 0, 0}, physics.ForceModeImpulse)
	assert.False(t, b.IsSleeping(), "the request wakes the body immediately")

	f.step()
	assert.InDelta(t, 5, b.Velocity().X(), 1e-12)
	assert.InDelta(t, 0.5, b.Position().X(), 1e-12)
}

func TestKinematicIgnoresForces(t *testing.T) {
	f := newFixture(t, backend.DefaultOptions())
	b := f.body(0.5)
	b.SetIsKinematic(true)

	b.AddForce(mgl64.Vec3{100, 0, 0}, physics.ForceModeImpulse)
	b.AddTorque(mgl64.Vec3{0, 100, 0}, physics.ForceModeVelocity)
	b.AddForceAtPoint(mgl64.Vec3{0, 0, 5}, mgl64.Vec3{1, 0, 0}, physics.PointForceModeForce)
	b.SetVelocity(mgl64.Vec3{1, 1, 1})
	f.step()

	assert.Equal(t, mgl64.Vec3{}, b.Velocity())
	assert.Equal(t, mgl64.Vec3{}, b.AngularVelocity())
	assert.Equal(t, mgl64.Vec3{}, b.Position(), "gravity does not move kinematic bodies")
	assert.False(t, b.IsSleeping())
}

func TestAddForceAtPointImpulse(t *testing.T) {
	f := newFixture(t, zeroGravity())
	b := f.body(0.5)
	b.SetFlags(physics.FlagNone)
	b.SetMass(1)
	b.SetInertiaTensor(mgl64.Vec3{1, 1, 1})

	b.AddForceAtPoint(mgl64.Vec3{0, 0, 1}, mgl64.Vec3{1, 0, 0}, physics.PointForceModeImpulse)
	f.step()

	assert.True(t, b.Velocity().ApproxEqualThreshold(mgl64.Vec3{0, 0, 1}, 1e-12), "%v", b.Velocity())
	assert.True(t, b.AngularVelocity().ApproxEqualThreshold(mgl64.Vec3{0, -1, 0}, 1e-12), "%v", b.AngularVelocity())
	assert.Equal(t, b.Velocity(), b.VelocityAtPoint(b.WorldCenterOfMass()))
}

func TestZeroMassLocksLinearMotion(t *testing.T) {
	f := newFixture(t, backend.DefaultOptions())
	b := f.body(0.5)
	b.SetFlags(physics.FlagNone)
	b.SetMass(0)

	b.AddForce(mgl64.Vec3{1, 0, 0}, physics.ForceModeVelocity)
	b.AddTorque(mgl64.Vec3{0, 0, 2}, physics.ForceModeVelocity)
	f.step()

	assert.Equal(t, mgl64.Vec3{}, b.Velocity())
	assert.Equal(t, mgl64.Vec3{}, b.Position())
	assert.InDelta(t, 2, b.AngularVelocity().Z(), 1e-12, "a massless body still rotates")
}

func TestZeroInertiaAxisLocksRotation(t *testing.T) {
	f := newFixture(t, zeroGravity())
	b := f.body(0.5)
	b.SetFlags(physics.FlagNone)
	b.SetInertiaTensor(mgl64.Vec3{0, 1, 1})
	spinAboutLockedAxis := func() float64 {
		return b.AngularVelocity().Dot(b.Rotation().Rotate(mgl64.Vec3{1, 0, 0}))
	}

	b.SetAngularVelocity(mgl64.Vec3{3, 2, 0})
	f.step()
	assert.InDelta(t, 0, spinAboutLockedAxis(), 1e-9)
	assert.InDelta(t, 2, b.AngularVelocity().Len(), 1e-9, "spin about the free axes is kept")

	b.AddTorque(mgl64.Vec3{50, 0, 0}, physics.ForceModeImpulse)
	f.step()
	assert.InDelta(t, 0, spinAboutLockedAxis(), 1e-9)

	// The locked axis turns with the body: a quarter turn about z puts it
	// on world y.
	b.SetTransform(mgl64.Vec3{}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1}))
	b.SetAngularVelocity(mgl64.Vec3{0, 2, 0})
	f.step()
	assert.InDelta(t, 0, b.AngularVelocity().Len(), 1e-9)
}

func TestDragAndAngularClamp(t *testing.T) {
	f := newFixture(t, zeroGravity())
	b := f.body(0.5)
	b.SetDrag(10)
	b.SetMaxAngularVelocity(2)
	b.SetVelocity(mgl64.Vec3{4, 0, 0})
	b.SetAngularVelocity(mgl64.Vec3{0, 10, 0})
	f.step()

	assert.InDelta(t, 2, b.Velocity().X(), 1e-12)
	assert.InDelta(t, 2, b.AngularVelocity().Len(), 1e-12)
}

func TestAutoSleepAfterCalmTicks(t *testing.T) {
	opts := zeroGravity()
	opts.SleepTicks = 3
	f := newFixture(t, opts)
	b := f.body(0.5)

	f.step()
	f.step()
	assert.False(t, b.IsSleeping())
	report := f.step()
	assert.True(t, b.IsSleeping())
	assert.Equal(t, 1, report.Sleeping)

	b.WakeUp()
	assert.False(t, b.IsSleeping())
}

func TestMassDistributionDetachRestoresTensor(t *testing.T) {
	f := newFixture(t, zeroGravity())
	b := f.body(0)
	neverAttached := b.InertiaTensor()

	core := shape.NewSphere(0.5)
	require.NoError(t, b.AddCollider(core))
	withCore := b.InertiaTensor()
	coreMass := b.Mass()
	assert.NotEqual(t, neverAttached, withCore)

	extra := shape.NewBox(mgl64.Vec3{0.5, 0.25, 0.25})
	extra.SetLocalPose(physics.Pose{Position: mgl64.Vec3{2, 0, 0}, Rotation: mgl64.QuatIdent()})
	require.NoError(t, b.AddCollider(extra))
	assert.Greater(t, b.Mass(), coreMass)
	assert.Greater(t, b.CenterOfMassPosition().X(), 0.0)

	b.RemoveCollider(extra)
	assert.InDelta(t, coreMass, b.Mass(), 1e-9)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, withCore[i], b.InertiaTensor()[i], 1e-9)
	}
	assert.True(t, b.CenterOfMassPosition().ApproxEqualThreshold(mgl64.Vec3{}, 1e-12))

	b.RemoveCollider(core)
	assert.Equal(t, neverAttached, b.InertiaTensor())
}

func TestExplicitMassWithoutAutoTensors(t *testing.T) {
	f := newFixture(t, zeroGravity())
	b := f.body(0)
	b.SetFlags(physics.FlagNone)
	b.SetMass(7)
	b.SetInertiaTensor(mgl64.Vec3{1, 2, 3})

	require.NoError(t, b.AddCollider(shape.NewSphere(1)))
	assert.Equal(t, 7.0, b.Mass())
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, b.InertiaTensor())
}

func TestCollisionBeginAndEnd(t *testing.T) {
	f := newFixture(t, zeroGravity())
	a, b := f.body(0.5), f.body(0.5)
	b.SetTransform(mgl64.Vec3{0.8, 0, 0}, mgl64.QuatIdent())

	report := f.step()
	require.Equal(t, []physics.CollisionKind{physics.CollisionBegin}, eventKinds(report))
	data := report.Events[0].Data
	assert.Equal(t, a.PhysicsID(), data.Colliders[0].Body)
	assert.Equal(t, b.PhysicsID(), data.Colliders[1].Body)
	require.Len(t, data.Contacts, 1)
	assert.True(t, data.Contacts[0].Normal.ApproxEqualThreshold(mgl64.Vec3{1, 0, 0}, 1e-12))
	assert.Equal(t, 1, report.Contacts)
	assert.Greater(t, b.Position().X()-a.Position().X(), 0.8, "overlap is pushed apart")

	report = f.step()
	assert.Equal(t, []physics.CollisionKind{physics.CollisionStay}, eventKinds(report))

	b.SetTransform(mgl64.Vec3{10, 0, 0}, mgl64.QuatIdent())
	report = f.step()
	assert.Equal(t, []physics.CollisionKind{physics.CollisionEnd}, eventKinds(report))
}

func TestHeadOnImpactStopsBodies(t *testing.T) {
	f := newFixture(t, zeroGravity())
	a, b := f.body(0.5), f.body(0.5)
	b.SetTransform(mgl64.Vec3{1.25, 0, 0}, mgl64.QuatIdent())
	f.step()

	// Gap closes by 0.2 per tick: 1.05 apart after one, overlapping after two.
	a.SetVelocity(mgl64.Vec3{1, 0, 0})
	b.SetVelocity(mgl64.Vec3{-1, 0, 0})
	f.step()
	report := f.step()
	require.Equal(t, []physics.CollisionKind{physics.CollisionBegin}, eventKinds(report))
	assert.InDelta(t, 0, a.Velocity().X(), 1e-9)
	assert.InDelta(t, 0, b.Velocity().X(), 1e-9)
}

func TestCollisionWakesSleepingBody(t *testing.T) {
	f := newFixture(t, zeroGravity())
	a, b := f.body(0.5), f.body(0.5)
	b.SetTransform(mgl64.Vec3{1.3, 0, 0}, mgl64.QuatIdent())
	f.step()

	a.Sleep()
	b.SetVelocity(mgl64.Vec3{-2, 0, 0})
	f.step()
	require.True(t, a.IsSleeping())

	report := f.step()
	require.Equal(t, []physics.CollisionKind{physics.CollisionBegin}, eventKinds(report))
	assert.False(t, a.IsSleeping())
}

func TestMoveStopsAtBlockingBody(t *testing.T) {
	f := newFixture(t, zeroGravity())
	k, obstacle := f.body(0.5), f.body(0.5)
	k.SetIsKinematic(true)
	obstacle.SetTransform(mgl64.Vec3{3, 0, 0}, mgl64.QuatIdent())
	f.step()

	k.Move(mgl64.Vec3{5, 0, 0})
	f.step()
	assert.InDelta(t, 2, k.Position().X(), 1e-9)
	assert.InDelta(t, 3, obstacle.Position().X(), 1e-9)

	k.SetTransform(mgl64.Vec3{5, 0, 0}, mgl64.QuatIdent())
	f.step()
	assert.Equal(t, mgl64.Vec3{5, 0, 0}, k.Position(), "teleports ignore obstacles")
}

func TestRotateAppliesNextStep(t *testing.T) {
	f := newFixture(t, zeroGravity())
	b := f.body(0.5)
	target := mgl64.QuatRotate(1, mgl64.Vec3{0, 1, 0})

	b.Rotate(target)
	assert.Equal(t, mgl64.QuatIdent(), b.Rotation())
	f.step()
	assert.True(t, b.Rotation().ApproxEqualThreshold(target, 1e-12))
}

func TestRotateIntoOverlapIsResolvedThatTick(t *testing.T) {
	f := newFixture(t, zeroGravity())
	arm, target := f.body(0), f.body(0.5)
	tip := shape.NewSphere(0.5)
	tip.SetLocalPose(physics.Pose{Position: mgl64.Vec3{1, 0, 0}, Rotation: mgl64.QuatIdent()})
	require.NoError(t, arm.AddCollider(tip))
	arm.SetIsKinematic(true)
	target.SetTransform(mgl64.Vec3{-1.6, 0, 0}, mgl64.QuatIdent())
	require.Empty(t, f.step().Events)

	half := mgl64.QuatRotate(math.Pi, mgl64.Vec3{0, 1, 0})
	arm.Rotate(half)
	report := f.step()

	assert.True(t, arm.Rotation().ApproxEqualThreshold(half, 1e-12), "rotation is not swept")
	assert.Equal(t, []physics.CollisionKind{physics.CollisionBegin}, eventKinds(report))
	assert.Less(t, target.Position().X(), -1.6, "the solver pushes the other body out")
}

func TestCCDStopsTunnelling(t *testing.T) {
	f := newFixture(t, zeroGravity())
	bullet, wall := f.body(0.1), f.body(0.5)
	wall.SetIsKinematic(true)
	wall.SetTransform(mgl64.Vec3{5, 0, 0}, mgl64.QuatIdent())
	bullet.SetFlags(bullet.Flags().With(physics.FlagCCD))
	f.step()

	bullet.SetVelocity(mgl64.Vec3{100, 0, 0})
	report := f.step()
	assert.Less(t, bullet.Position().X(), 5.0)
	assert.Equal(t, []physics.CollisionKind{physics.CollisionBegin}, eventKinds(report))
}

func TestSweptTouchThatDoesNotLastBeginsAndEnds(t *testing.T) {
	f := newFixture(t, zeroGravity())
	fast, runner := f.body(0.5), f.body(0.5)
	fast.SetFlags(fast.Flags().With(physics.FlagCCD))
	runner.SetTransform(mgl64.Vec3{1.2, 0, 0}, mgl64.QuatIdent())
	f.step()

	// fast is integrated first and its sweep meets runner where runner
	// started; runner then moves far out of reach within the same tick.
	fast.SetVelocity(mgl64.Vec3{10, 0, 0})
	runner.SetVelocity(mgl64.Vec3{30, 0, 0})
	report := f.step()

	assert.Zero(t, report.Contacts)
	require.Equal(t, []physics.CollisionKind{physics.CollisionBegin, physics.CollisionEnd}, eventKinds(report))
	for _, ev := range report.Events {
		assert.Equal(t, fast.PhysicsID(), ev.Data.Colliders[0].Body)
		assert.Equal(t, runner.PhysicsID(), ev.Data.Colliders[1].Body)
		assert.Equal(t, uint64(2), ev.Data.Tick)
	}
	assert.Less(t, fast.Position().X(), 1.0, "the sweep stopped at the touch")
	assert.InDelta(t, 4.2, runner.Position().X(), 1e-9)

	report = f.step()
	assert.Empty(t, report.Events, "a transient touch leaves nothing active")
}

func TestPriorityOrder(t *testing.T) {
	f := newFixture(t, zeroGravity())
	a, b, c := f.body(0), f.body(0), f.body(0)
	c.SetPriority(5)
	b.SetPriority(5)

	order := f.world.Bodies()
	require.Len(t, order, 3)
	assert.Same(t, b, order[0])
	assert.Same(t, c, order[1])
	assert.Same(t, a, order[2])
}

func TestReleaseEndsContactsAndFreesColliders(t *testing.T) {
	f := newFixture(t, zeroGravity())
	a := f.body(0.5)
	b := f.body(0)
	s := shape.NewSphere(0.5)
	require.NoError(t, b.AddCollider(s))
	b.SetTransform(mgl64.Vec3{0.5, 0, 0}, mgl64.QuatIdent())
	require.Equal(t, []physics.CollisionKind{physics.CollisionBegin}, eventKinds(f.step()))

	f.world.DestroyBody(b)
	assert.Nil(t, s.Body(), "colliders outlive their body")
	assert.Len(t, f.world.Bodies(), 1)
	_, ok := f.world.Body(b.PhysicsID())
	assert.False(t, ok)

	report := f.step()
	assert.Equal(t, []physics.CollisionKind{physics.CollisionEnd}, eventKinds(report))
	require.NoError(t, a.AddCollider(s))
}

func TestTickTransformReachesNode(t *testing.T) {
	f := newFixture(t, backend.DefaultOptions())
	var writes []mgl64.Vec3
	rb, err := f.world.CreateBody(physics.SceneNodeFunc(func(p mgl64.Vec3, _ mgl64.Quat) {
		writes = append(writes, p)
	}))
	require.NoError(t, err)
	require.NoError(t, rb.AddCollider(shape.NewSphere(0.5)))

	f.step()
	f.step()
	require.Len(t, writes, 2)
	assert.Equal(t, rb.Position(), writes[1])
}

func TestRegistry(t *testing.T) {
	r := backend.NewRegistry()
	require.NoError(t, Register(r))
	assert.ErrorIs(t, Register(r), backend.ErrBackendExists)

	b, err := r.New(Kind, backend.Options{})
	require.NoError(t, err)
	assert.Equal(t, Kind, b.Kind())
	assert.Equal(t, mgl64.Vec3{}, b.Gravity(), "gravity is taken as given")

	_, err = r.New("bullet", backend.Options{})
	assert.ErrorIs(t, err, backend.ErrUnknownBackend)
	assert.Equal(t, []physics.BackendKind{Kind}, r.Kinds())
}
