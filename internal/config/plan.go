package config

import "time"

// Plan is the derived, ordered provisioning plan. It is computed once from
// a Config and is immutable afterwards; the orchestrator walks it step by
// step.
type Plan struct {
	// Subnets is the final subnet list handed to instance creation, with
	// the system subnet always last.
	Subnets []SubnetKind

	// BitcoindAddrs and DogecoindAddrs are the adapter registrations, one
	// call per address.
	BitcoindAddrs  []string
	DogecoindAddrs []string

	// Canisters is the install sequence. Order is fixed: II before NNS
	// before SNS, because NNS installation depends on II being present.
	Canisters []CanisterKind

	// ArtificialDelay is the latency injection to configure. Nil leaves
	// the server default untouched.
	ArtificialDelay *time.Duration
}

// DerivePlan applies the derivation rules in a fixed order so the result is
// deterministic regardless of flag order:
//
//  1. explicitly requested subnets, as given;
//  2. adapter addresses ensure a single bitcoin subnet (never one per
//     address, and never a duplicate of an explicit request);
//  3. --nns adds one sns subnet and the full canister set; --ii alone adds
//     only the Internet Identity canisters;
//  4. when no subnet was requested explicitly, one application subnet;
//  5. the system subnet, always, last.
func DerivePlan(cfg *Config) Plan {
	plan := Plan{
		BitcoindAddrs:   cfg.BitcoindAddrs,
		DogecoindAddrs:  cfg.DogecoindAddrs,
		ArtificialDelay: cfg.ArtificialDelay,
	}

	subnets := make([]SubnetKind, 0, len(cfg.Subnets)+3)
	subnets = append(subnets, cfg.Subnets...)

	hasAdapters := len(cfg.BitcoindAddrs) > 0 || len(cfg.DogecoindAddrs) > 0
	if hasAdapters && !containsKind(subnets, SubnetBitcoin) {
		subnets = append(subnets, SubnetBitcoin)
	}

	if cfg.InstallNNS {
		subnets = append(subnets, SubnetSNS)
	}
	if cfg.InstallII {
		plan.Canisters = append(plan.Canisters, CanisterII)
	}
	if cfg.InstallNNS {
		plan.Canisters = append(plan.Canisters, CanisterNNS, CanisterSNS)
	}

	if len(cfg.Subnets) == 0 {
		subnets = append(subnets, SubnetApplication)
	}
	subnets = append(subnets, SubnetSystem)

	plan.Subnets = subnets
	return plan
}

// Contains reports whether kind is part of the derived subnet list.
func (p Plan) Contains(kind SubnetKind) bool {
	return containsKind(p.Subnets, kind)
}

// Count returns how many subnets of the given kind the plan contains.
func (p Plan) Count(kind SubnetKind) int {
	n := 0
	for _, k := range p.Subnets {
		if k == kind {
			n++
		}
	}
	return n
}

func containsKind(kinds []SubnetKind, kind SubnetKind) bool {
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
