// Package shutdown coordinates state-preserving teardown on termination
// signals.
//
// The coordinator owns the process-wide signal state as an explicit
// ShutdownState with a single-shot guard; there is no ambient mutable flag.
// The graceful-stop control-plane call is only issued once the provisioning
// flow has returned, so shutdown calls and provisioning calls are never in
// flight concurrently.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/imamik/icnet/internal/controlplane"
	"github.com/imamik/icnet/internal/provisioning"
)

// State is the launcher's shutdown progression.
type State int32

const (
	// StateRunning is the normal operating state.
	StateRunning State = iota
	// StateDraining means a signal arrived and state preservation is in
	// progress.
	StateDraining
	// StateTerminated means the child has exited.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// drainTimeout bounds the graceful-stop call; past it, preservation is
// abandoned and the child is terminated anyway.
const drainTimeout = 30 * time.Second

// Stopper is the slice of the control plane the coordinator needs.
type Stopper interface {
	RequestGracefulStop(ctx context.Context, id controlplane.InstanceID) error
}

// Terminator is the slice of the server process the coordinator needs.
// Shutdown interrupts the child, waits for exit (with a kill grace), and
// returns its exit code.
type Terminator interface {
	Shutdown(ctx context.Context) int
}

// Coordinator intercepts termination signals and drives teardown.
type Coordinator struct {
	signals  chan os.Signal
	state    atomic.Int32
	exit     atomic.Int32
	once     sync.Once
	observer provisioning.Observer
}

// New installs the signal handler. Call at launcher start, before the
// server is spawned, so an early interrupt is never lost.
func New(observer provisioning.Observer) *Coordinator {
	c := &Coordinator{
		signals:  make(chan os.Signal, 2),
		observer: observer,
	}
	signal.Notify(c.signals, os.Interrupt, syscall.SIGTERM)
	return c
}

// Signaled delivers the first termination signal. The handler stays
// installed after that; Execute absorbs further signals while draining.
func (c *Coordinator) Signaled() <-chan os.Signal {
	return c.signals
}

// State returns the current shutdown state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Execute performs teardown exactly once and returns the launcher's exit
// code. When ready is true the instance has state worth preserving and the
// graceful-stop call is issued before the child sees any termination
// request; otherwise preservation is skipped (nothing meaningful to flush)
// and the child is terminated directly. A failed or timed-out graceful stop
// is reported but never blocks termination.
func (c *Coordinator) Execute(ctx context.Context, ready bool, id controlplane.InstanceID, stopper Stopper, proc Terminator) int {
	c.once.Do(func() {
		c.state.Store(int32(StateDraining))

		// The handler stays installed for the whole drain: a second
		// interrupt must be absorbed, not restore the default
		// disposition and kill the launcher mid-preservation.
		done := make(chan struct{})
		defer close(done)
		go func() {
			for {
				select {
				case <-c.signals:
					c.observer.Printf("launcher: shutdown already in progress")
				case <-done:
					return
				}
			}
		}()

		if ready && stopper != nil {
			c.observer.Printf("launcher: requesting graceful stop")
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
			defer cancel()
			if err := stopper.RequestGracefulStop(drainCtx, id); err != nil {
				c.observer.Printf("launcher: graceful stop failed, state preservation is best-effort: %v", err)
			}
		}

		childCode := proc.Shutdown(ctx)
		c.state.Store(int32(StateTerminated))
		c.exit.Store(int32(mapChildExit(childCode)))
	})
	return int(c.exit.Load())
}

// mapChildExit derives the launcher exit status from the child's. A clean
// exit or death by the interrupt we sent both count as success.
func mapChildExit(code int) int {
	if code == 0 || code == -1 {
		return 0
	}
	return 1
}
