// Package provisioning sequences the configuration of a freshly spawned
// server instance: instance creation, adapter registration, canister
// installs, funding, and the transition to ready.
//
// The sequence is strictly ordered because later steps depend on earlier
// ones (canister installs require an instance; NNS requires Internet
// Identity). There is no rollback: any step failure is terminal and the
// launcher exits without publishing a status record.
package provisioning

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/icnet/internal/config"
	"github.com/imamik/icnet/internal/controlplane"
)

// AnonymousPrincipal is the principal the launcher funds for development
// use.
const AnonymousPrincipal = "2vxsx-fae"

// Funding magnitudes are not part of the external contract, only
// "sufficient for development use".
const (
	devCycles = 100_000_000_000_000 // 100T cycles
	devIcpE8s = 1_000_000 * 100_000_000
)

// Result holds everything the status record needs once the instance is
// ready.
type Result struct {
	InstanceID                 controlplane.InstanceID
	GatewayPort                uint16
	ConfigPort                 uint16
	DefaultEffectiveCanisterID string
	RootKey                    []byte
}

// Orchestrator drives the provisioning state machine over a control plane.
type Orchestrator struct {
	cfg      *config.Config
	plan     config.Plan
	client   controlplane.ControlPlane
	observer Observer

	state    stateCell
	instance *controlplane.Instance
}

// New creates an orchestrator for one launch. The orchestrator owns the
// instance handle for the lifetime of the launch.
func New(cfg *config.Config, plan config.Plan, client controlplane.ControlPlane, observer Observer) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		plan:     plan,
		client:   client,
		observer: observer,
	}
	o.state.store(StateNotStarted)
	return o
}

// State returns the current readiness state. Safe to call from the
// shutdown path.
func (o *Orchestrator) State() ReadinessState {
	return o.state.load()
}

// InstanceID is valid once State has reached StateInstanceCreated.
func (o *Orchestrator) InstanceID() (controlplane.InstanceID, bool) {
	if o.instance == nil {
		return 0, false
	}
	return o.instance.ID, true
}

// ServerSpawned records the successful server spawn.
func (o *Orchestrator) ServerSpawned() {
	o.advance(StateSpawned)
}

// Run executes the provisioning sequence and returns the ready result.
// Shutdown cancels ctx; it is consulted only between steps, so no new step
// starts after shutdown was requested, while an in-flight call completes on
// a detached context and the server's state writes are not torn
// mid-request.
func (o *Orchestrator) Run(ctx context.Context, configPort uint16) (*Result, error) {
	calls := context.WithoutCancel(ctx)

	if err := o.checkpoint(ctx); err != nil {
		return nil, o.fail(err)
	}
	if err := o.createInstance(calls); err != nil {
		return nil, o.fail(err)
	}
	if err := o.checkpoint(ctx); err != nil {
		return nil, o.fail(err)
	}
	if err := o.configureSubnets(calls); err != nil {
		return nil, o.fail(err)
	}
	if err := o.checkpoint(ctx); err != nil {
		return nil, o.fail(err)
	}
	if err := o.installCanisters(calls); err != nil {
		return nil, o.fail(err)
	}
	if err := o.checkpoint(ctx); err != nil {
		return nil, o.fail(err)
	}
	if err := o.fund(calls); err != nil {
		return nil, o.fail(err)
	}
	if err := o.checkpoint(ctx); err != nil {
		return nil, o.fail(err)
	}

	rootKey, err := o.client.RootKey(calls, o.instance.ID)
	if err != nil {
		return nil, o.fail(err)
	}

	o.advance(StateReady)
	gatewayPort := o.instance.GatewayPort
	if gatewayPort == 0 {
		gatewayPort = o.cfg.GatewayPort
	}
	return &Result{
		InstanceID:                 o.instance.ID,
		GatewayPort:                gatewayPort,
		ConfigPort:                 configPort,
		DefaultEffectiveCanisterID: o.instance.DefaultEffectiveCanisterID,
		RootKey:                    rootKey,
	}, nil
}

func (o *Orchestrator) createInstance(ctx context.Context) error {
	o.step("creating instance with subnets %v", o.plan.Subnets)

	spec := controlplane.InstanceSpec{
		Subnets:  o.plan.Subnets,
		StateDir: o.cfg.StateDir,
		Gateway: controlplane.GatewaySpec{
			IPAddr:  o.cfg.Bind,
			Port:    o.cfg.GatewayPort,
			Domains: []string{"localhost"},
		},
	}
	instance, err := o.client.CreateInstance(ctx, spec)
	if err != nil {
		return err
	}
	o.instance = instance
	o.advance(StateInstanceCreated)
	return nil
}

// configureSubnets registers the regtest adapters and the latency/progress
// configuration. Adapter registrations augment the already-created subnets;
// they are not separate subnet-creation calls.
func (o *Orchestrator) configureSubnets(ctx context.Context) error {
	for _, addr := range o.plan.BitcoindAddrs {
		o.step("registering bitcoind adapter %s", addr)
		if err := o.client.RegisterBitcoindAdapter(ctx, o.instance.ID, addr); err != nil {
			return err
		}
	}
	for _, addr := range o.plan.DogecoindAddrs {
		o.step("registering dogecoind adapter %s", addr)
		if err := o.client.RegisterDogecoindAdapter(ctx, o.instance.ID, addr); err != nil {
			return err
		}
	}
	if err := o.client.SetArtificialDelay(ctx, o.instance.ID, o.plan.ArtificialDelay); err != nil {
		return err
	}
	o.advance(StateSubnetsConfigured)
	return nil
}

func (o *Orchestrator) installCanisters(ctx context.Context) error {
	for _, kind := range o.plan.Canisters {
		o.step("installing %s canisters", kind)
		if err := o.client.InstallCanister(ctx, o.instance.ID, kind); err != nil {
			return err
		}
	}
	o.advance(StateCanistersInstalled)
	return nil
}

func (o *Orchestrator) fund(ctx context.Context) error {
	o.step("funding %s", AnonymousPrincipal)
	if err := o.client.SetBalances(ctx, o.instance.ID, AnonymousPrincipal, devCycles, devIcpE8s); err != nil {
		return err
	}
	o.advance(StateFunded)
	return nil
}

// checkpoint aborts before starting a new step once shutdown was requested.
func (o *Orchestrator) checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("provisioning aborted: %w", err)
	}
	return nil
}

func (o *Orchestrator) advance(next ReadinessState) {
	o.state.store(next)
	o.observer.Event(Event{
		Type:      EventStateChanged,
		State:     next,
		Timestamp: time.Now(),
	})
}

func (o *Orchestrator) step(format string, args ...any) {
	o.observer.Printf("launcher: "+format, args...)
	o.observer.Event(Event{
		Type:      EventStepStarted,
		State:     o.state.load(),
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now(),
	})
}

func (o *Orchestrator) fail(err error) error {
	o.observer.Event(Event{
		Type:      EventStepFailed,
		State:     o.state.load(),
		Message:   err.Error(),
		Timestamp: time.Now(),
	})
	o.state.store(StateFailed)
	return err
}
