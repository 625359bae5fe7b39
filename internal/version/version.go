// Package version implements interface-version negotiation for the launcher's
// CLI contract.
//
// The launcher's flag surface is versioned independently of the launcher
// binary. A consumer states the interface version it was written against; the
// negotiated result decides whether flags unknown to this launcher are hard
// errors (consumer is on our version or older, so an unknown flag is a typo)
// or warnings (consumer is newer, so an unknown flag is plausibly an additive
// future flag this launcher should tolerate).
package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Supported is the interface version this launcher implements.
var Supported = semver.MustParse("1.0.0")

// supportedRange rejects interface versions from a different major release:
// major bumps may change the meaning of existing flags and are never
// silently tolerated.
var supportedRange = mustConstraint("^1.0.0")

// InterfaceVersionFlag is the CLI flag carrying the requested version.
const InterfaceVersionFlag = "interface-version"

// InterfaceVersionEnv is the environment fallback; the flag takes precedence.
const InterfaceVersionEnv = "ICNET_INTERFACE_VERSION"

// UnknownFlagPolicy decides how flags unknown to this launcher are treated.
type UnknownFlagPolicy int

const (
	// PolicyError treats unknown flags as fatal parse errors.
	PolicyError UnknownFlagPolicy = iota
	// PolicyWarn demotes unknown flags to stderr warnings.
	PolicyWarn
)

func (p UnknownFlagPolicy) String() string {
	if p == PolicyWarn {
		return "warn"
	}
	return "error"
}

// Negotiation is the resolved outcome of version negotiation.
type Negotiation struct {
	// Requested is the effective requested version. Defaults to Supported
	// when the consumer did not state one.
	Requested *semver.Version

	// Explicit records whether the consumer stated a version at all.
	Explicit bool

	// Policy is the unknown-flag severity derived from Requested.
	Policy UnknownFlagPolicy
}

// Negotiate resolves the requested interface version string (empty means
// "not stated") against Supported. Versions outside the supported major are
// rejected. A requested version newer than Supported demotes unknown flags
// to warnings; same or older keeps them fatal.
func Negotiate(requested string) (Negotiation, error) {
	if requested == "" {
		return Negotiation{Requested: Supported, Policy: PolicyError}, nil
	}
	v, err := semver.NewVersion(requested)
	if err != nil {
		return Negotiation{}, fmt.Errorf("invalid interface version %q: %w", requested, err)
	}
	if !supportedRange.Check(v) {
		return Negotiation{}, fmt.Errorf("unsupported interface version %s, supported versions: %s", v, supportedRange)
	}
	n := Negotiation{Requested: v, Explicit: true, Policy: PolicyError}
	if v.GreaterThan(Supported) {
		n.Policy = PolicyWarn
	}
	return n, nil
}

// RequestedFrom extracts the requested interface version from raw arguments
// and the environment, before full flag parsing runs. This has to happen
// first because the outcome changes the parse-time severity of every other
// flag. Supported argument forms are --interface-version=X and
// --interface-version X.
func RequestedFrom(args []string, getenv func(string) string) string {
	prefix := "--" + InterfaceVersionFlag
	for i, arg := range args {
		if arg == "--" {
			break
		}
		if v, ok := strings.CutPrefix(arg, prefix+"="); ok {
			return v
		}
		if arg == prefix && i+1 < len(args) {
			return args[i+1]
		}
	}
	return getenv(InterfaceVersionEnv)
}

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}
