package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/icnet/internal/util/ptr"
)

func changedSet(names ...string) func(string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(name string) bool { return set[name] }
}

func TestParseSubnetKind(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"application", "system", "verified-application", "bitcoin", "fiduciary", "nns", "sns"} {
		k, err := ParseSubnetKind(s)
		require.NoError(t, err)
		assert.Equal(t, SubnetKind(s), k)
	}

	_, err := ParseSubnetKind("appplication")
	assert.Error(t, err)
	_, err = ParseSubnetKind("")
	assert.Error(t, err)
}

func TestBuild_Valid(t *testing.T) {
	t.Parallel()
	flags := Flags{
		GatewayPort:       4943,
		ConfigPort:        8081,
		Bind:              "127.0.0.1",
		Subnets:           []string{"application", "fiduciary"},
		BitcoindAddrs:     []string{"127.0.0.1:18444"},
		ArtificialDelayMs: 0,
		StatusDir:         "/tmp/status",
	}
	changed := changedSet("gateway-port", "config-port", "bind", "subnet", "bitcoind-addr", "artificial-delay-ms", "status-dir")

	cfg, err := Build(flags, changed, nil, true)
	require.NoError(t, err)

	assert.Equal(t, uint16(4943), cfg.GatewayPort)
	assert.Equal(t, uint16(8081), cfg.ConfigPort)
	assert.Equal(t, []SubnetKind{SubnetApplication, SubnetFiduciary}, cfg.Subnets)
	require.NotNil(t, cfg.ArtificialDelay, "explicit zero delay must be recorded")
	assert.Equal(t, time.Duration(0), *cfg.ArtificialDelay)
}

func TestBuild_DelayUnsetStaysNil(t *testing.T) {
	t.Parallel()
	cfg, err := Build(Flags{}, changedSet(), nil, false)
	require.NoError(t, err)
	assert.Nil(t, cfg.ArtificialDelay)
}

func TestBuild_ValidationFailures(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		flags   Flags
		changed func(string) bool
	}{
		{
			name:    "gateway port zero",
			flags:   Flags{GatewayPort: 0},
			changed: changedSet("gateway-port"),
		},
		{
			name:    "config port out of range",
			flags:   Flags{ConfigPort: 70000},
			changed: changedSet("config-port"),
		},
		{
			name:    "bind not an IP",
			flags:   Flags{Bind: "localhost"},
			changed: changedSet("bind"),
		},
		{
			name:    "unknown subnet kind",
			flags:   Flags{Subnets: []string{"galactic"}},
			changed: changedSet("subnet"),
		},
		{
			name:    "bitcoind addr without port",
			flags:   Flags{BitcoindAddrs: []string{"127.0.0.1"}},
			changed: changedSet("bitcoind-addr"),
		},
		{
			name:    "bitcoind addr with non-numeric port",
			flags:   Flags{BitcoindAddrs: []string{"127.0.0.1:http"}},
			changed: changedSet("bitcoind-addr"),
		},
		{
			name:    "dogecoind addr port out of range",
			flags:   Flags{DogecoindAddrs: []string{"127.0.0.1:70000"}},
			changed: changedSet("dogecoind-addr"),
		},
		{
			name:    "state dir equals status dir",
			flags:   Flags{StateDir: "/tmp/x", StatusDir: "/tmp/x"},
			changed: changedSet("state-dir", "status-dir"),
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Build(tc.flags, tc.changed, nil, true)
			assert.Error(t, err)
		})
	}
}

func TestBuild_StatusDirRequiresInterfaceVersion(t *testing.T) {
	t.Parallel()
	flags := Flags{StatusDir: "/tmp/status"}
	_, err := Build(flags, changedSet("status-dir"), nil, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "interface-version")

	_, err = Build(flags, changedSet("status-dir"), nil, true)
	assert.NoError(t, err)
}

func TestBuild_NNSImpliesII(t *testing.T) {
	t.Parallel()
	cfg, err := Build(Flags{NNS: true}, changedSet("nns"), nil, false)
	require.NoError(t, err)
	assert.True(t, cfg.InstallII)
	assert.True(t, cfg.InstallNNS)
}

func TestBuild_FilePrecedence(t *testing.T) {
	t.Parallel()
	file := &File{
		GatewayPort: ptr.To(uint(9090)),
		Bind:        ptr.To("0.0.0.0"),
		NNS:         ptr.To(true),
		Subnets:     []string{"fiduciary"},
	}

	// Nothing on the command line: file values apply.
	cfg, err := Build(Flags{}, changedSet(), file, false)
	require.NoError(t, err)
	assert.Equal(t, uint16(9090), cfg.GatewayPort)
	assert.Equal(t, "0.0.0.0", cfg.Bind)
	assert.True(t, cfg.InstallNNS)
	assert.Equal(t, []SubnetKind{SubnetFiduciary}, cfg.Subnets)

	// Flags override the file.
	cfg, err = Build(
		Flags{GatewayPort: 4943, Subnets: []string{"application"}},
		changedSet("gateway-port", "subnet"),
		file, false)
	require.NoError(t, err)
	assert.Equal(t, uint16(4943), cfg.GatewayPort)
	assert.Equal(t, []SubnetKind{SubnetApplication}, cfg.Subnets)
}

func TestBuild_FileValuesValidated(t *testing.T) {
	t.Parallel()
	_, err := Build(Flags{}, changedSet(), &File{ConfigPort: ptr.To(uint(0))}, false)
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "icnet.yaml")
	content := `
gateway_port: 4943
bind: 127.0.0.1
artificial_delay_ms: 0
subnets: [application, sns]
nns: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	f, err := LoadFile(path)
	require.NoError(t, err)
	require.NotNil(t, f.GatewayPort)
	assert.Equal(t, uint(4943), *f.GatewayPort)
	require.NotNil(t, f.ArtificialDelayMs)
	assert.Equal(t, uint(0), *f.ArtificialDelayMs)
	assert.Equal(t, []string{"application", "sns"}, f.Subnets)
	require.NotNil(t, f.NNS)
	assert.True(t, *f.NNS)
	assert.Nil(t, f.ConfigPort)
}

func TestLoadFile_UnknownKey(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "icnet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gatewayport: 1\n"), 0600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_Empty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "icnet.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.Nil(t, f.GatewayPort)
}
