package config

import (
	"fmt"
	"time"
)

// Flags holds the raw launch flag values as bound by the CLI layer.
// The changed callback passed to Build reports whether a given flag was
// present on the command line, which decides flag-vs-file precedence and
// whether zero values were explicit.
type Flags struct {
	GatewayPort       uint
	ConfigPort        uint
	Bind              string
	StateDir          string
	ArtificialDelayMs uint
	Subnets           []string
	BitcoindAddrs     []string
	DogecoindAddrs    []string
	II                bool
	NNS               bool
	ServerPath        string
	StdoutFile        string
	StderrFile        string
	StatusDir         string
	Verbose           bool
}

// Build merges flags with optional file-provided defaults into a validated
// Config. Precedence is flag > file > built-in default. All validation
// failures are fatal and happen before any subprocess is spawned.
//
// interfaceExplicit reports whether the consumer stated an interface version;
// status publication is only meaningful under a negotiated contract, so
// --status-dir without it is rejected.
func Build(flags Flags, changed func(name string) bool, file *File, interfaceExplicit bool) (*Config, error) {
	if file == nil {
		file = &File{}
	}
	cfg := &Config{
		Bind:       pick(changed, "bind", flags.Bind, file.Bind),
		StateDir:   pick(changed, "state-dir", flags.StateDir, file.StateDir),
		ServerPath: pick(changed, "pocketic-server-path", flags.ServerPath, file.ServerPath),
		StdoutFile: pick(changed, "stdout-file", flags.StdoutFile, file.StdoutFile),
		StderrFile: pick(changed, "stderr-file", flags.StderrFile, file.StderrFile),
		StatusDir:  pick(changed, "status-dir", flags.StatusDir, file.StatusDir),
		Verbose:    flags.Verbose || boolOr(file.Verbose),
	}
	cfg.InstallII = flags.II || boolOr(file.II)
	cfg.InstallNNS = flags.NNS || boolOr(file.NNS)
	if cfg.InstallNNS {
		cfg.InstallII = true
	}

	if port, ok := pickUint(changed, "gateway-port", flags.GatewayPort, file.GatewayPort); ok {
		p, err := validatePortValue("gateway port", port)
		if err != nil {
			return nil, err
		}
		cfg.GatewayPort = p
	}
	if port, ok := pickUint(changed, "config-port", flags.ConfigPort, file.ConfigPort); ok {
		p, err := validatePortValue("config port", port)
		if err != nil {
			return nil, err
		}
		cfg.ConfigPort = p
	}

	if cfg.Bind != "" {
		if err := validateBind(cfg.Bind); err != nil {
			return nil, err
		}
	}

	subnets := flags.Subnets
	if !changed("subnet") && len(file.Subnets) > 0 {
		subnets = file.Subnets
	}
	for _, s := range subnets {
		kind, err := ParseSubnetKind(s)
		if err != nil {
			return nil, err
		}
		cfg.Subnets = append(cfg.Subnets, kind)
	}

	cfg.BitcoindAddrs = flags.BitcoindAddrs
	if !changed("bitcoind-addr") && len(file.BitcoindAddrs) > 0 {
		cfg.BitcoindAddrs = file.BitcoindAddrs
	}
	cfg.DogecoindAddrs = flags.DogecoindAddrs
	if !changed("dogecoind-addr") && len(file.DogecoindAddrs) > 0 {
		cfg.DogecoindAddrs = file.DogecoindAddrs
	}
	for _, a := range cfg.BitcoindAddrs {
		if err := validateAdapterAddr("bitcoind address", a); err != nil {
			return nil, err
		}
	}
	for _, a := range cfg.DogecoindAddrs {
		if err := validateAdapterAddr("dogecoind address", a); err != nil {
			return nil, err
		}
	}

	if changed("artificial-delay-ms") {
		d := time.Duration(flags.ArtificialDelayMs) * time.Millisecond
		cfg.ArtificialDelay = &d
	} else if file.ArtificialDelayMs != nil {
		d := time.Duration(*file.ArtificialDelayMs) * time.Millisecond
		cfg.ArtificialDelay = &d
	}

	if cfg.StatusDir != "" && !interfaceExplicit {
		return nil, fmt.Errorf("--status-dir requires --interface-version")
	}
	if cfg.StateDir != "" && cfg.StateDir == cfg.StatusDir {
		return nil, fmt.Errorf("state directory and status directory must differ: %s", cfg.StateDir)
	}

	return cfg, nil
}

func pick(changed func(string) bool, name, flagVal string, fileVal *string) string {
	if changed(name) {
		return flagVal
	}
	if fileVal != nil {
		return *fileVal
	}
	return flagVal
}

// pickUint returns the effective value and whether anything was set at all.
func pickUint(changed func(string) bool, name string, flagVal uint, fileVal *uint) (uint, bool) {
	if changed(name) {
		return flagVal, true
	}
	if fileVal != nil {
		return *fileVal, true
	}
	return 0, false
}

func boolOr(p *bool) bool {
	return p != nil && *p
}
