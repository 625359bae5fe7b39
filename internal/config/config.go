// Package config defines the validated launch configuration and derives the
// provisioning plan from it.
package config

import (
	"fmt"
	"net"
	"time"

	"github.com/imamik/icnet/internal/util/netutil"
)

// SubnetKind is a category of consensus group the instance can host.
type SubnetKind string

const (
	SubnetApplication         SubnetKind = "application"
	SubnetSystem              SubnetKind = "system"
	SubnetVerifiedApplication SubnetKind = "verified-application"
	SubnetBitcoin             SubnetKind = "bitcoin"
	SubnetFiduciary           SubnetKind = "fiduciary"
	SubnetNNS                 SubnetKind = "nns"
	SubnetSNS                 SubnetKind = "sns"
)

// ParseSubnetKind validates a --subnet flag value.
func ParseSubnetKind(s string) (SubnetKind, error) {
	switch k := SubnetKind(s); k {
	case SubnetApplication, SubnetSystem, SubnetVerifiedApplication,
		SubnetBitcoin, SubnetFiduciary, SubnetNNS, SubnetSNS:
		return k, nil
	default:
		return "", fmt.Errorf("unknown subnet kind %q", s)
	}
}

// CanisterKind identifies a canister set the launcher can pre-install.
type CanisterKind string

const (
	CanisterII  CanisterKind = "ii"
	CanisterNNS CanisterKind = "nns"
	CanisterSNS CanisterKind = "sns"
)

// Config is the validated, normalized launch configuration. It is immutable
// once built; all components read it, none mutate it.
type Config struct {
	// GatewayPort is the HTTP gateway port. Zero lets the server pick.
	GatewayPort uint16

	// ConfigPort is the requested control-plane port. Zero means ephemeral;
	// the effective port is always learned from the server's port file.
	ConfigPort uint16

	// Bind is the IP address the server binds. Empty means the server
	// default (loopback).
	Bind string

	// StateDir is the instance state directory forwarded to the server.
	StateDir string

	// ArtificialDelay is the update-call latency to inject. Nil means "not
	// set" (server default); an explicit zero disables injection.
	ArtificialDelay *time.Duration

	// Subnets are the explicitly requested subnet kinds, in flag order.
	Subnets []SubnetKind

	// BitcoindAddrs and DogecoindAddrs are regtest adapter addresses.
	// Each implies a bitcoin subnet.
	BitcoindAddrs  []string
	DogecoindAddrs []string

	// InstallII and InstallNNS are the canister preinstall toggles.
	// InstallNNS implies InstallII and an sns subnet.
	InstallII  bool
	InstallNNS bool

	// ServerPath overrides the server binary location. Empty means "look
	// next to the launcher executable".
	ServerPath string

	// StdoutFile and StderrFile redirect the server's stdio when set.
	StdoutFile string
	StderrFile string

	// StatusDir is where the status record is published. Empty disables
	// publication.
	StatusDir string

	// Verbose enables server debug logging and launcher diagnostics.
	Verbose bool
}

// Host returns the address the control-plane client connects to.
func (c *Config) Host() string {
	if c.Bind == "" {
		return "127.0.0.1"
	}
	return c.Bind
}

func validatePortValue(name string, v uint) (uint16, error) {
	if v < 1 || v > 65535 {
		return 0, fmt.Errorf("invalid %s %d: out of range 1-65535", name, v)
	}
	return uint16(v), nil
}

func validateBind(s string) error {
	if net.ParseIP(s) == nil {
		return fmt.Errorf("invalid bind address %q: not an IP literal", s)
	}
	return nil
}

func validateAdapterAddr(flag, s string) error {
	_, port, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", flag, s, err)
	}
	if _, err := netutil.ValidatePort(port); err != nil {
		return fmt.Errorf("invalid %s %q: %w", flag, s, err)
	}
	return nil
}
