package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineStartsAwakeDynamic(t *testing.T) {
	m := NewMachine(DefaultSleepThreshold, 0)
	assert.Equal(t, AwakeDynamic, m.State())
	assert.Equal(t, DefaultSleepTicks, m.SleepTicks())
	assert.False(t, m.IsSleeping())
}

func TestMachineFallsAsleepAfterCalmTicks(t *testing.T) {
	m := NewMachine(0.1, 3)

	assert.False(t, m.Observe(0.01))
	assert.False(t, m.Observe(0.01))
	assert.True(t, m.Observe(0.01))
	assert.Equal(t, Asleep, m.State())
}

func TestMachineMotionResetsCalmRun(t *testing.T) {
	m := NewMachine(0.1, 3)

	m.Observe(0.01)
	m.Observe(0.01)
	m.Observe(5)
	assert.Equal(t, 0, m.CalmTicks())
	m.Observe(0.01)
	m.Observe(0.01)
	assert.Equal(t, AwakeDynamic, m.State())
	assert.True(t, m.Observe(0.01))
}

func TestMachineForcedSleepIgnoresMotion(t *testing.T) {
	m := NewMachine(0.1, 3)
	m.Sleep()
	assert.True(t, m.IsSleeping())
	assert.False(t, m.Observe(100), "observing motion never wakes")
	assert.True(t, m.IsSleeping())
}

func TestMachineWakeReportsPriorState(t *testing.T) {
	m := NewMachine(0.1, 3)
	assert.False(t, m.Wake(CauseForce))

	m.Sleep()
	assert.True(t, m.Wake(CauseForce))
	assert.Equal(t, AwakeDynamic, m.State())
}

func TestMachineKinematicNeverAutoSleeps(t *testing.T) {
	m := NewMachine(0.1, 1)
	m.SetKinematic(true)
	assert.Equal(t, AwakeKinematic, m.State())

	for i := 0; i < 10; i++ {
		assert.False(t, m.Observe(0))
	}
	assert.False(t, m.IsSleeping())

	m.Sleep()
	assert.Equal(t, Asleep, m.State())
	assert.True(t, m.IsKinematic())
}

func TestMachineKinematicToggleWakes(t *testing.T) {
	m := NewMachine(0.1, 1)
	m.Sleep()
	m.SetKinematic(true)
	assert.Equal(t, AwakeKinematic, m.State())

	m.Sleep()
	m.SetKinematic(false)
	assert.Equal(t, AwakeDynamic, m.State())
}

func TestMachineTransitions(t *testing.T) {
	m := NewMachine(0.1, 1)
	var got []Transition
	m.OnTransition(func(tr Transition) { got = append(got, tr) })

	m.Observe(0)
	m.Wake(CauseCollision)
	m.SetKinematic(true)
	m.SetKinematic(true)

	require.Len(t, got, 3)
	assert.Equal(t, Transition{From: AwakeDynamic, To: Asleep, Cause: CauseCalm}, got[0])
	assert.Equal(t, Transition{From: Asleep, To: AwakeDynamic, Cause: CauseCollision}, got[1])
	assert.Equal(t, Transition{From: AwakeDynamic, To: AwakeKinematic, Cause: CauseKinematicChange}, got[2])
}

func TestEnergy(t *testing.T) {
	assert.InDelta(t, 2.5, Energy(4, 1), 1e-12)
}
