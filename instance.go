package fixtest

type instanceState int

const (
	statePending instanceState = iota
	stateActive
	stateTornDown
)

func (s instanceState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateActive:
		return "active"
	case stateTornDown:
		return "torn-down"
	default:
		return "unknown"
	}
}

// Instance is one live value of a fixture definition within a scope
// instance. At most one exists per (definition, scope instance); it is
// created on first resolution and torn down when the scope closes.
type Instance struct {
	def      *Definition
	value    any
	teardown Teardown
	state    instanceState
}

func (i *Instance) Definition() *Definition {
	return i.def
}

func (i *Instance) Value() any {
	return i.value
}
