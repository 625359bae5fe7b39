package status

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/icnet/internal/provisioning"
)

func sampleResult() *provisioning.Result {
	return &provisioning.Result{
		InstanceID:                 3,
		GatewayPort:                4943,
		ConfigPort:                 8081,
		DefaultEffectiveCanisterID: "rwlgt-iiaaa-aaaaa-aaaaa-cai",
		RootKey:                    []byte{0x30, 0x81, 0x02},
	}
}

func TestPublish(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := NewPublisher(dir)

	require.NoError(t, p.Publish(NewRecord(sampleResult())))

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"))

	var got Record
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "1", got.V)
	assert.Equal(t, uint64(3), got.InstanceID)
	assert.Equal(t, uint16(4943), got.GatewayPort)
	assert.Equal(t, uint16(8081), got.ConfigPort)
	assert.Equal(t, "308102", got.RootKey)
	assert.Equal(t, "rwlgt-iiaaa-aaaaa-aaaaa-cai", got.DefaultEffectiveCanisterID)
}

func TestPublish_SchemaFieldNames(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := NewPublisher(dir)
	require.NoError(t, p.Publish(NewRecord(sampleResult())))

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, field := range []string{"v", "instance_id", "config_port", "gateway_port", "root_key", "default_effective_canister_id"} {
		assert.Contains(t, raw, field)
	}
	assert.Equal(t, `"1"`, string(raw["v"]))
}

func TestPublish_NoPartialFileLeftBehind(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := NewPublisher(dir)
	require.NoError(t, p.Publish(NewRecord(sampleResult())))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FileName, entries[0].Name())
}

func TestPublish_AtMostOnce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := NewPublisher(dir)
	record := NewRecord(sampleResult())

	require.NoError(t, p.Publish(record))
	assert.Error(t, p.Publish(record))
}

func TestPublish_MissingDirectory(t *testing.T) {
	t.Parallel()
	p := NewPublisher(filepath.Join(t.TempDir(), "absent"))
	err := p.Publish(NewRecord(sampleResult()))
	require.Error(t, err)

	assert.False(t, p.published)
}
