// Package server owns the external network-simulation server process: binary
// resolution, spawning with stdio redirection, config-port discovery, signal
// delivery, and termination.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/icnet/internal/config"
)

// BinaryName is the server binary the launcher looks for next to its own
// executable when no override is given.
const BinaryName = "pocket-ic"

// instanceTTL is passed to the server so it does not reap the instance on
// idle; the launcher shuts the network down explicitly.
const instanceTTL = 30 * 24 * time.Hour

// killGrace is how long the child gets to exit after an interrupt before
// it is killed outright.
const killGrace = 5 * time.Second

// ResolveBinary returns the server binary path: the override if given,
// otherwise BinaryName next to the launcher executable. A missing binary is
// reported before anything is spawned.
func ResolveBinary(override string) (string, error) {
	if override != "" {
		if _, err := os.Stat(override); err != nil {
			return "", fmt.Errorf("server binary %s: %w", override, err)
		}
		return override, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("locate launcher executable: %w", err)
	}
	assumed := filepath.Join(filepath.Dir(exe), BinaryName)
	if _, err := os.Stat(assumed); err != nil {
		return "", fmt.Errorf("--pocketic-server-path not provided and no %s found next to the launcher", BinaryName)
	}
	return assumed, nil
}

// Process is a running server process. It exclusively owns the child handle;
// the child is reaped by an internal goroutine so the exit status is
// available to every caller without a second Wait.
type Process struct {
	cmd     *exec.Cmd
	log     logr.Logger
	portDir string
	ports   <-chan portResult
	stop    func()

	stdout *os.File
	stderr *os.File

	exited   chan struct{}
	exitCode int
}

// Spawn launches the server binary for the given configuration. Stdio
// redirect files are opened before the spawn and closed by Close on every
// exit path. The config-port watcher is armed before the process starts so
// the port write cannot be missed.
func Spawn(cfg *config.Config, binary string, log logr.Logger) (*Process, error) {
	portDir, err := os.MkdirTemp("", "icnet-*")
	if err != nil {
		return nil, fmt.Errorf("create port file directory: %w", err)
	}
	portFile := filepath.Join(portDir, "icnet.port")

	p := &Process{
		log:     log,
		portDir: portDir,
		exited:  make(chan struct{}),
	}

	args := buildArgs(cfg, portFile)
	cmd := exec.Command(binary, args...)
	cmd.SysProcAttr = sysProcAttr()

	if cfg.StdoutFile != "" {
		f, err := os.Create(cfg.StdoutFile)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("create stdout file: %w", err)
		}
		p.stdout = f
		cmd.Stdout = f
	}
	if cfg.StderrFile != "" {
		f, err := os.Create(cfg.StderrFile)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("create stderr file: %w", err)
		}
		p.stderr = f
		cmd.Stderr = f
	}

	ports, stopWatch, err := watchPortFile(portDir, portFile)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.ports = ports
	p.stop = stopWatch

	log.V(1).Info("spawning server", "binary", binary, "args", args)
	if err := cmd.Start(); err != nil {
		p.Close()
		return nil, fmt.Errorf("spawn server process: %w", err)
	}
	p.cmd = cmd

	go func() {
		err := cmd.Wait()
		p.exitCode = exitCodeOf(cmd, err)
		close(p.exited)
	}()

	return p, nil
}

// buildArgs assembles the server's command line from the launch
// configuration.
func buildArgs(cfg *config.Config, portFile string) []string {
	args := []string{
		"--ttl", strconv.Itoa(int(instanceTTL.Seconds())),
		"--port-file", portFile,
	}
	if cfg.ConfigPort != 0 {
		args = append(args, "--port", strconv.Itoa(int(cfg.ConfigPort)))
	}
	if cfg.Bind != "" {
		args = append(args, "--ip-addr", cfg.Bind)
	}
	if !cfg.Verbose {
		args = append(args, "--log-levels", "error")
	}
	return args
}

// ErrStartupTimeout means the server never advertised its config port
// within the startup budget.
var ErrStartupTimeout = errors.New("server start timed out")

// ErrEarlyExit means the server process died before it was usable. This is
// distinct from a provisioning rejection: the child is gone.
var ErrEarlyExit = errors.New("server process exited prematurely")

// ConfigPort blocks until the server has advertised its config port, the
// process exits, or the timeout elapses.
func (p *Process) ConfigPort(ctx context.Context, timeout time.Duration) (uint16, error) {
	defer p.stopWatcher()

	select {
	case res := <-p.ports:
		if res.err != nil {
			return 0, res.err
		}
		p.log.V(1).Info("server advertised config port", "port", res.port)
		return res.port, nil
	case <-p.exited:
		return 0, fmt.Errorf("%w with status %d before advertising its port", ErrEarlyExit, p.exitCode)
	case <-time.After(timeout):
		return 0, fmt.Errorf("%w after %s waiting for the config port", ErrStartupTimeout, timeout)
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Exited is closed once the child has been reaped.
func (p *Process) Exited() <-chan struct{} {
	return p.exited
}

// Alive reports whether the child is still running.
func (p *Process) Alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// Interrupt delivers SIGINT (or the platform equivalent) to the child.
func (p *Process) Interrupt() error {
	if p.cmd == nil || p.cmd.Process == nil {
		return nil
	}
	p.log.V(1).Info("interrupting server", "pid", p.cmd.Process.Pid)
	return p.cmd.Process.Signal(os.Interrupt)
}

// Shutdown interrupts the child and waits for it to exit, killing it after
// the grace period. It returns the child's exit code.
func (p *Process) Shutdown(ctx context.Context) int {
	if err := p.Interrupt(); err != nil && p.Alive() {
		p.log.V(1).Info("interrupt failed", "error", err.Error())
	}
	select {
	case <-p.exited:
	case <-time.After(killGrace):
		p.log.V(1).Info("server did not exit in time, killing", "grace", killGrace)
		if p.cmd != nil && p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		<-p.exited
	case <-ctx.Done():
		if p.cmd != nil && p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		<-p.exited
	}
	return p.exitCode
}

// ExitCode is valid once Exited is closed.
func (p *Process) ExitCode() int {
	return p.exitCode
}

// Close releases the port watcher, stdio files, and the port file
// directory. Safe to call on every exit path, including spawn failures.
func (p *Process) Close() {
	p.stopWatcher()
	if p.stdout != nil {
		_ = p.stdout.Close()
		p.stdout = nil
	}
	if p.stderr != nil {
		_ = p.stderr.Close()
		p.stderr = nil
	}
	if p.portDir != "" {
		_ = os.RemoveAll(p.portDir)
		p.portDir = ""
	}
}

func (p *Process) stopWatcher() {
	if p.stop != nil {
		p.stop()
		p.stop = nil
	}
}

func exitCodeOf(cmd *exec.Cmd, err error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if err != nil {
		return -1
	}
	return 0
}
