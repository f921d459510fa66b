package motion

// State is the externally visible motion state of a body.
type State uint8

const (
	AwakeDynamic State = iota
	AwakeKinematic
	Asleep
)

func (s State) String() string {
	switch s {
	case AwakeDynamic:
		return "awake_dynamic"
	case AwakeKinematic:
		return "awake_kinematic"
	case Asleep:
		return "asleep"
	default:
		return "unknown"
	}
}

// Cause records what triggered a transition.
type Cause uint8

const (
	CauseExplicit Cause = iota
	CauseForce
	CauseVelocity
	CauseMove
	CauseCollision
	CauseGravity
	CauseKinematicChange
	CauseCalm
)

func (c Cause) String() string {
	switch c {
	case CauseExplicit:
		return "explicit"
	case CauseForce:
		return "force"
	case CauseVelocity:
		return "velocity"
	case CauseMove:
		return "move"
	case CauseCollision:
		return "collision"
	case CauseGravity:
		return "gravity"
	case CauseKinematicChange:
		return "kinematic_change"
	case CauseCalm:
		return "calm"
	default:
		return "unknown"
	}
}

const (
	// DefaultSleepTicks is how many consecutive calm ticks put a body to sleep.
	// Half a second at 60 Hz.
	DefaultSleepTicks = 30
	// DefaultSleepThreshold is the mass-normalised kinetic energy below which
	// a tick counts as calm.
	DefaultSleepThreshold = 0.005
)

// Transition is emitted whenever the state changes.
type Transition struct {
	From  State
	To    State
	Cause Cause
}

// Machine tracks the kinematic and sleeping flags of one body. Kinematic and
// sleeping are independent: a kinematic body only sleeps when told to.
type Machine struct {
	kinematic  bool
	sleeping   bool
	threshold  float64
	sleepTicks int
	calmTicks  int
	onChange   func(Transition)
}

func NewMachine(threshold float64, sleepTicks int) *Machine {
	if sleepTicks <= 0 {
		sleepTicks = DefaultSleepTicks
	}
	return &Machine{
		threshold:  threshold,
		sleepTicks: sleepTicks,
	}
}

// OnTransition registers a single observer for state changes.
func (m *Machine) OnTransition(fn func(Transition)) {
	m.onChange = fn
}

func (m *Machine) State() State {
	switch {
	case m.sleeping:
		return Asleep
	case m.kinematic:
		return AwakeKinematic
	default:
		return AwakeDynamic
	}
}

func (m *Machine) IsSleeping() bool { return m.sleeping }

func (m *Machine) IsKinematic() bool { return m.kinematic }

func (m *Machine) Threshold() float64 { return m.threshold }

func (m *Machine) SetThreshold(threshold float64) { m.threshold = threshold }

func (m *Machine) SleepTicks() int { return m.sleepTicks }

// CalmTicks is the current run of below-threshold ticks.
func (m *Machine) CalmTicks() int { return m.calmTicks }

// SetKinematic toggles kinematic mode. Switching in either direction leaves
// the body awake.
func (m *Machine) SetKinematic(kinematic bool) {
	if m.kinematic == kinematic {
		return
	}
	from := m.State()
	m.kinematic = kinematic
	m.calmTicks = 0
	m.sleeping = false
	m.emit(from, CauseKinematicChange)
}

// Sleep forces the body asleep regardless of its motion.
func (m *Machine) Sleep() {
	if m.sleeping {
		return
	}
	from := m.State()
	m.sleeping = true
	m.calmTicks = 0
	m.emit(from, CauseExplicit)
}

// Wake moves a sleeping body to its awake state and resets the calm counter.
// It reports whether the body was asleep.
func (m *Machine) Wake(cause Cause) bool {
	m.calmTicks = 0
	if !m.sleeping {
		return false
	}
	from := m.State()
	m.sleeping = false
	m.emit(from, cause)
	return true
}

// Observe feeds one tick's motion measure. Dynamic awake bodies fall asleep
// after SleepTicks consecutive observations below the threshold. It reports
// whether the body fell asleep on this tick.
func (m *Machine) Observe(energy float64) bool {
	if m.sleeping || m.kinematic {
		return false
	}
	if energy >= m.threshold {
		m.calmTicks = 0
		return false
	}
	m.calmTicks++
	if m.calmTicks < m.sleepTicks {
		return false
	}
	from := m.State()
	m.sleeping = true
	m.calmTicks = 0
	m.emit(from, CauseCalm)
	return true
}

func (m *Machine) emit(from State, cause Cause) {
	to := m.State()
	if from == to || m.onChange == nil {
		return
	}
	m.onChange(Transition{From: from, To: to, Cause: cause})
}

// Energy is the mass-normalised kinetic energy used as the sleep measure.
// Angular speed is weighted as if the inertia were unit per unit mass.
func Energy(linearSpeedSq, angularSpeedSq float64) float64 {
	return 0.5 * (linearSpeedSq + angularSpeedSq)
}
