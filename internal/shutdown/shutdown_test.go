package shutdown

import (
	"context"
	"errors"
	"os"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/icnet/internal/controlplane"
	"github.com/imamik/icnet/internal/provisioning"
)

// sequenceRecorder is shared between the stopper and terminator doubles so
// the cross-component call ordering is observable.
type sequenceRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *sequenceRecorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

type fakeStopper struct {
	rec *sequenceRecorder
	err error
	id  controlplane.InstanceID
}

func (f *fakeStopper) RequestGracefulStop(_ context.Context, id controlplane.InstanceID) error {
	f.id = id
	f.rec.add("graceful-stop")
	return f.err
}

type fakeProc struct {
	rec      *sequenceRecorder
	exitCode int
}

func (f *fakeProc) Shutdown(context.Context) int {
	f.rec.add("terminate-child")
	return f.exitCode
}

func TestExecute_GracefulStopBeforeChildTermination(t *testing.T) {
	t.Parallel()
	rec := &sequenceRecorder{}
	stopper := &fakeStopper{rec: rec}
	proc := &fakeProc{rec: rec}
	c := New(provisioning.NopObserver{})

	code := c.Execute(context.Background(), true, 42, stopper, proc)

	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"graceful-stop", "terminate-child"}, rec.calls)
	assert.Equal(t, controlplane.InstanceID(42), stopper.id)
	assert.Equal(t, StateTerminated, c.State())
}

func TestExecute_NotReadySkipsGracefulStop(t *testing.T) {
	t.Parallel()
	rec := &sequenceRecorder{}
	stopper := &fakeStopper{rec: rec}
	proc := &fakeProc{rec: rec}
	c := New(provisioning.NopObserver{})

	c.Execute(context.Background(), false, 0, stopper, proc)

	assert.Equal(t, []string{"terminate-child"}, rec.calls)
}

func TestExecute_GracefulStopFailureStillTerminates(t *testing.T) {
	t.Parallel()
	rec := &sequenceRecorder{}
	stopper := &fakeStopper{rec: rec, err: errors.New("drain timed out")}
	proc := &fakeProc{rec: rec}
	c := New(provisioning.NopObserver{})

	code := c.Execute(context.Background(), true, 1, stopper, proc)

	assert.Equal(t, 0, code)
	assert.Equal(t, []string{"graceful-stop", "terminate-child"}, rec.calls)
}

func TestExecute_SingleShot(t *testing.T) {
	t.Parallel()
	rec := &sequenceRecorder{}
	stopper := &fakeStopper{rec: rec}
	proc := &fakeProc{rec: rec, exitCode: 7}
	c := New(provisioning.NopObserver{})

	first := c.Execute(context.Background(), true, 1, stopper, proc)
	second := c.Execute(context.Background(), true, 1, stopper, proc)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"graceful-stop", "terminate-child"}, rec.calls, "second execute must not re-enter")
}

func TestExecute_ExitCodeDerivedFromChild(t *testing.T) {
	t.Parallel()
	cases := []struct {
		child int
		want  int
	}{
		{child: 0, want: 0},
		{child: -1, want: 0}, // killed by the interrupt we sent
		{child: 3, want: 1},
	}
	for _, tc := range cases {
		rec := &sequenceRecorder{}
		c := New(provisioning.NopObserver{})
		code := c.Execute(context.Background(), false, 0, nil, &fakeProc{rec: rec, exitCode: tc.child})
		assert.Equal(t, tc.want, code, "child exit %d", tc.child)
	}
}

// blockingStopper holds the drain open until released so a signal can be
// delivered mid-drain.
type blockingStopper struct {
	rec     *sequenceRecorder
	entered chan struct{}
	release chan struct{}
}

func (f *blockingStopper) RequestGracefulStop(context.Context, controlplane.InstanceID) error {
	f.rec.add("graceful-stop")
	close(f.entered)
	<-f.release
	return nil
}

// Deliberately not parallel: it delivers a real SIGINT to the test process.
func TestExecute_SecondInterruptAbsorbedWhileDraining(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("self-delivered signals require unix")
	}
	rec := &sequenceRecorder{}
	stopper := &blockingStopper{
		rec:     rec,
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	proc := &fakeProc{rec: rec}
	c := New(provisioning.NopObserver{})

	done := make(chan int, 1)
	go func() { done <- c.Execute(context.Background(), true, 1, stopper, proc) }()

	<-stopper.entered
	self, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, self.Signal(os.Interrupt))

	// If the handler had been uninstalled, the interrupt above would have
	// killed the process by now.
	time.Sleep(100 * time.Millisecond)
	close(stopper.release)

	select {
	case code := <-done:
		assert.Equal(t, 0, code)
	case <-time.After(5 * time.Second):
		t.Fatal("drain did not finish after a second interrupt")
	}
	assert.Equal(t, []string{"graceful-stop", "terminate-child"}, rec.calls)
	assert.Equal(t, StateTerminated, c.State())
}

func TestState_StartsRunning(t *testing.T) {
	t.Parallel()
	c := New(provisioning.NopObserver{})
	require.Equal(t, StateRunning, c.State())
	assert.Equal(t, "running", c.State().String())
}
