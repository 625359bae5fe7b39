package provisioning

import "sync/atomic"

// ReadinessState tracks how far provisioning has progressed. It is
// monotonic: it never regresses except to StateFailed, which is terminal.
type ReadinessState int32

const (
	StateNotStarted ReadinessState = iota
	StateSpawned
	StateInstanceCreated
	StateSubnetsConfigured
	StateCanistersInstalled
	StateFunded
	StateReady
	StateFailed
)

func (s ReadinessState) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateSpawned:
		return "spawned"
	case StateInstanceCreated:
		return "instance-created"
	case StateSubnetsConfigured:
		return "subnets-configured"
	case StateCanistersInstalled:
		return "canisters-installed"
	case StateFunded:
		return "funded"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// stateCell makes the current state readable from the shutdown path without
// synchronizing with the provisioning flow.
type stateCell struct {
	v atomic.Int32
}

func (c *stateCell) load() ReadinessState {
	return ReadinessState(c.v.Load())
}

func (c *stateCell) store(s ReadinessState) {
	c.v.Store(int32(s))
}
