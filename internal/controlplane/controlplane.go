// Package controlplane provides the client for the network-simulation
// server's configuration protocol.
//
// The orchestrator and the shutdown path depend only on the [ControlPlane]
// interface; [Client] is the HTTP implementation. Provisioning calls and the
// graceful-stop call are never issued concurrently: they belong to disjoint
// protocol phases.
package controlplane

import (
	"context"
	"fmt"
	"time"

	"github.com/imamik/icnet/internal/config"
)

// InstanceID identifies a running instance on the server. It is required
// for every configuration call after creation.
type InstanceID uint64

// GatewaySpec configures the instance's HTTP gateway.
type GatewaySpec struct {
	IPAddr  string   `json:"ip_addr,omitempty"`
	Port    uint16   `json:"port,omitempty"`
	Domains []string `json:"domains"`
}

// InstanceSpec is the request body for instance creation.
type InstanceSpec struct {
	Subnets  []config.SubnetKind `json:"subnets"`
	StateDir string              `json:"state_dir,omitempty"`
	Gateway  GatewaySpec         `json:"gateway"`
}

// Instance is the server's response to a successful creation.
type Instance struct {
	ID                         InstanceID `json:"instance_id"`
	DefaultEffectiveCanisterID string     `json:"default_effective_canister_id"`
	GatewayPort                uint16     `json:"gateway_port"`
}

// ControlPlane is the capability the orchestrator provisions through. Any
// transport that implements it can back a launch; tests use an in-memory
// recording fake.
type ControlPlane interface {
	// CreateInstance provisions a new instance with the given subnet
	// specification. It is retried only for connection-refused errors
	// while the server is still opening its socket, never for
	// application-level rejections.
	CreateInstance(ctx context.Context, spec InstanceSpec) (*Instance, error)

	// InstallCanister installs one canister set. Not idempotent: a second
	// install of the same kind is an error surfaced to the caller.
	InstallCanister(ctx context.Context, id InstanceID, kind config.CanisterKind) error

	// SetBalances funds a principal with cycles and ICP.
	SetBalances(ctx context.Context, id InstanceID, principal string, cycles, icpE8s uint64) error

	// SetArtificialDelay configures update-call latency injection and
	// enables automatic progress. A nil delay leaves the server default;
	// an explicit zero disables injection.
	SetArtificialDelay(ctx context.Context, id InstanceID, delay *time.Duration) error

	// RegisterBitcoindAdapter wires one bitcoin regtest adapter address.
	// Repeatable for multiple addresses.
	RegisterBitcoindAdapter(ctx context.Context, id InstanceID, addr string) error

	// RegisterDogecoindAdapter wires one dogecoin regtest adapter address.
	RegisterDogecoindAdapter(ctx context.Context, id InstanceID, addr string) error

	// RootKey returns the instance's root public key (DER bytes).
	RootKey(ctx context.Context, id InstanceID) ([]byte, error)

	// RequestGracefulStop asks the instance to flush and preserve its
	// state directory. It must complete (or time out) before the server
	// process is asked to exit.
	RequestGracefulStop(ctx context.Context, id InstanceID) error
}

// RejectionError is an application-level rejection from the server. It is
// always fatal: the server understood the request and refused it.
type RejectionError struct {
	StatusCode int
	Message    string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server rejected request (HTTP %d)", e.StatusCode)
	}
	return fmt.Sprintf("server rejected request (HTTP %d): %s", e.StatusCode, e.Message)
}
