// Package status publishes the launcher's readiness record for downstream
// tooling.
//
// The record is written exactly once per launch, only when the instance is
// fully provisioned, and never on any failure path. Consumers poll for the
// file's existence, so the write is atomic: a reader sees either nothing or
// a complete, valid document.
package status

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/imamik/icnet/internal/provisioning"
)

// FileName is the status file name inside the status directory.
const FileName = "status.json"

// Record is the externally visible status document. The schema is part of
// the versioned CLI contract; `v` is bumped only with the interface major.
type Record struct {
	V                          string `json:"v"`
	InstanceID                 uint64 `json:"instance_id"`
	ConfigPort                 uint16 `json:"config_port"`
	GatewayPort                uint16 `json:"gateway_port"`
	RootKey                    string `json:"root_key"`
	DefaultEffectiveCanisterID string `json:"default_effective_canister_id"`
}

// NewRecord builds the status record from a completed provisioning result.
func NewRecord(result *provisioning.Result) Record {
	return Record{
		V:                          "1",
		InstanceID:                 uint64(result.InstanceID),
		ConfigPort:                 result.ConfigPort,
		GatewayPort:                result.GatewayPort,
		RootKey:                    hex.EncodeToString(result.RootKey),
		DefaultEffectiveCanisterID: result.DefaultEffectiveCanisterID,
	}
}

// Publisher writes the status record to a directory.
type Publisher struct {
	dir       string
	published bool
}

// NewPublisher creates a publisher for the given status directory.
func NewPublisher(dir string) *Publisher {
	return &Publisher{dir: dir}
}

// Publish writes the record atomically: the JSON is written to a temporary
// file in the same directory and renamed into place. It must be called at
// most once per launcher run.
func (p *Publisher) Publish(record Record) error {
	if p.published {
		return fmt.Errorf("status record already published")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode status record: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(p.dir, FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("status directory %s not writable: %w", p.dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write status record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync status record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close status record: %w", err)
	}

	final := filepath.Join(p.dir, FileName)
	if err := os.Rename(tmpName, final); err != nil {
		return fmt.Errorf("publish status record: %w", err)
	}
	p.published = true
	return nil
}
