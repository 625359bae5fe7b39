// Package handlers executes the launcher's commands. The commands package
// parses and validates flags; this package drives the launch itself.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/imamik/icnet/internal/config"
	"github.com/imamik/icnet/internal/controlplane"
	"github.com/imamik/icnet/internal/provisioning"
	"github.com/imamik/icnet/internal/server"
	"github.com/imamik/icnet/internal/shutdown"
	"github.com/imamik/icnet/internal/status"
	"github.com/imamik/icnet/internal/util/netutil"
	"github.com/imamik/icnet/internal/util/retry"
)

// startupTimeout bounds the whole startup path: port-file discovery, the
// listening socket opening, and the first successful instance creation.
const startupTimeout = 60 * time.Second

// Launch runs one complete launcher lifetime: spawn the server, provision
// the instance, publish status, idle until a termination signal, then drive
// state-preserving shutdown. The returned error, if any, carries a distinct
// exit code per failure class.
func Launch(ctx context.Context, cfg *config.Config) error {
	observer := provisioning.NewConsoleObserver()
	logger := newLogger(cfg.Verbose)

	// Installed before the spawn so an early interrupt is never lost.
	coordinator := shutdown.New(observer)

	binary, err := server.ResolveBinary(cfg.ServerPath)
	if err != nil {
		return exitErr(ExitSpawn, err)
	}

	proc, err := server.Spawn(cfg, binary, logger)
	if err != nil {
		return exitErr(ExitSpawn, err)
	}
	defer proc.Close()

	// launchCtx ends on the first termination signal; provisioning checks
	// it at step boundaries and the idle phase blocks on it.
	launchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-coordinator.Signaled():
			cancel()
		case <-launchCtx.Done():
		}
	}()

	configPort, err := proc.ConfigPort(launchCtx, startupTimeout)
	if err != nil {
		if interrupted(launchCtx, ctx) {
			// Interrupted before the server came up: the same clean
			// shutdown as a later interrupt, minus preservation.
			return exitFromShutdown(coordinator.Execute(ctx, false, 0, nil, proc), proc)
		}
		proc.Shutdown(ctx)
		return exitErr(startupExitCode(err), err)
	}
	if err := netutil.WaitForListen(launchCtx, cfg.Host(), configPort, startupTimeout); err != nil {
		if interrupted(launchCtx, ctx) {
			return exitFromShutdown(coordinator.Execute(ctx, false, 0, nil, proc), proc)
		}
		proc.Shutdown(ctx)
		return exitErr(ExitTimeout, fmt.Errorf("server did not become ready: %w", err))
	}

	baseURL := fmt.Sprintf("http://%s:%d", cfg.Host(), configPort)
	client := controlplane.NewClient(baseURL, retry.Default(), logger)
	orchestrator := provisioning.New(cfg, config.DerivePlan(cfg), client, observer)
	orchestrator.ServerSpawned()

	result, err := orchestrator.Run(launchCtx, configPort)
	if err != nil {
		if interrupted(launchCtx, ctx) {
			// Interrupted mid-provisioning: shut down without a status
			// file; preservation is best-effort this early.
			id, haveID := orchestrator.InstanceID()
			return exitFromShutdown(coordinator.Execute(ctx, haveID, id, client, proc), proc)
		}
		died := !proc.Alive()
		proc.Shutdown(ctx)
		if died {
			return exitErr(ExitProvisioning, fmt.Errorf("server process died during provisioning: %w", err))
		}
		return exitErr(provisioningExitCode(err), err)
	}

	if cfg.StatusDir != "" {
		record := status.NewRecord(result)
		publisher := status.NewPublisher(cfg.StatusDir)
		observer.Printf("launcher: writing status to %s/%s", cfg.StatusDir, status.FileName)
		if err := publisher.Publish(record); err != nil {
			coordinator.Execute(ctx, true, result.InstanceID, client, proc)
			return exitErr(ExitGeneric, err)
		}
	}

	log.Printf("launcher: instance %d ready, gateway on port %d", result.InstanceID, result.GatewayPort)

	// Idle until a signal (or parent cancellation, or the child dying
	// underneath us).
	select {
	case <-launchCtx.Done():
	case <-proc.Exited():
		return exitErr(ExitGeneric, fmt.Errorf("server process exited unexpectedly with status %d", proc.ExitCode()))
	}

	return exitFromShutdown(coordinator.Execute(ctx, true, result.InstanceID, client, proc), proc)
}

// interrupted reports whether launchCtx ended because of a termination
// signal rather than parent cancellation.
func interrupted(launchCtx, parent context.Context) bool {
	return launchCtx.Err() != nil && parent.Err() == nil
}

// exitFromShutdown converts the coordinator's exit code into the launcher's
// return value.
func exitFromShutdown(code int, proc *server.Process) error {
	if code != 0 {
		return exitErr(code, fmt.Errorf("server exited with status %d during shutdown", proc.ExitCode()))
	}
	return nil
}

// startupExitCode separates "never became reachable" from "died on us".
func startupExitCode(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return ExitGeneric
	case errors.Is(err, server.ErrStartupTimeout):
		return ExitTimeout
	default:
		return ExitProvisioning
	}
}

// provisioningExitCode maps control-plane failures: a spent startup retry
// budget means the server never became ready (timeout class); everything
// else is a provisioning rejection or transport failure.
func provisioningExitCode(err error) int {
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		return ExitTimeout
	}
	return ExitProvisioning
}

// newLogger builds the diagnostic logger. Verbose mode surfaces V(1)/V(2)
// detail; otherwise only explicit progress lines are printed.
func newLogger(verbose bool) logr.Logger {
	level := 0
	if verbose {
		level = 2
	}
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintf(os.Stderr, "%s: %s\n", prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: level})
}
