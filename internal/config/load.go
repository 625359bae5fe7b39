package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File holds launch defaults loaded from a YAML file. Every field is a
// pointer or slice so "absent" is distinguishable from an explicit zero;
// flags always override file values.
type File struct {
	GatewayPort       *uint    `yaml:"gateway_port"`
	ConfigPort        *uint    `yaml:"config_port"`
	Bind              *string  `yaml:"bind"`
	StateDir          *string  `yaml:"state_dir"`
	ArtificialDelayMs *uint    `yaml:"artificial_delay_ms"`
	Subnets           []string `yaml:"subnets"`
	BitcoindAddrs     []string `yaml:"bitcoind_addrs"`
	DogecoindAddrs    []string `yaml:"dogecoind_addrs"`
	II                *bool    `yaml:"ii"`
	NNS               *bool    `yaml:"nns"`
	ServerPath        *string  `yaml:"server_path"`
	StdoutFile        *string  `yaml:"stdout_file"`
	StderrFile        *string  `yaml:"stderr_file"`
	StatusDir         *string  `yaml:"status_dir"`
	Verbose           *bool    `yaml:"verbose"`
}

// LoadFile reads launch defaults from a YAML file. Unknown keys are
// rejected so typos surface instead of being silently ignored.
func LoadFile(path string) (*File, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return &f, nil
}
