package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivePlan_DefaultApplicationSubnet(t *testing.T) {
	t.Parallel()
	plan := DerivePlan(&Config{})

	assert.Equal(t, []SubnetKind{SubnetApplication, SubnetSystem}, plan.Subnets)
	assert.Empty(t, plan.Canisters)
	assert.Nil(t, plan.ArtificialDelay)
}

func TestDerivePlan_SystemSubnetAlwaysLast(t *testing.T) {
	t.Parallel()
	cases := []Config{
		{},
		{Subnets: []SubnetKind{SubnetFiduciary}},
		{Subnets: []SubnetKind{SubnetSystem, SubnetApplication}},
		{InstallNNS: true, InstallII: true},
		{BitcoindAddrs: []string{"127.0.0.1:18444"}},
	}
	for _, cfg := range cases {
		plan := DerivePlan(&cfg)
		require.NotEmpty(t, plan.Subnets)
		assert.Equal(t, SubnetSystem, plan.Subnets[len(plan.Subnets)-1])
	}
}

func TestDerivePlan_NNSImpliesSNSSubnetAndInstallOrder(t *testing.T) {
	t.Parallel()
	plan := DerivePlan(&Config{InstallII: true, InstallNNS: true})

	assert.True(t, plan.Contains(SubnetSNS))
	assert.True(t, plan.Contains(SubnetSystem))
	assert.True(t, plan.Contains(SubnetApplication), "default application subnet still added")
	assert.Equal(t, []CanisterKind{CanisterII, CanisterNNS, CanisterSNS}, plan.Canisters)
}

func TestDerivePlan_IIAlone(t *testing.T) {
	t.Parallel()
	plan := DerivePlan(&Config{InstallII: true})

	assert.Equal(t, []CanisterKind{CanisterII}, plan.Canisters)
	assert.False(t, plan.Contains(SubnetSNS))
}

func TestDerivePlan_BitcoinSubnetOncePerManyAdapters(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		BitcoindAddrs:  []string{"127.0.0.1:18444", "127.0.0.1:18445", "127.0.0.1:18446"},
		DogecoindAddrs: []string{"127.0.0.1:22556"},
	}
	plan := DerivePlan(cfg)

	assert.Equal(t, 1, plan.Count(SubnetBitcoin))
	assert.Len(t, plan.BitcoindAddrs, 3)
	assert.Len(t, plan.DogecoindAddrs, 1)
}

func TestDerivePlan_ExplicitBitcoinNotDuplicatedByAdapters(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Subnets:       []SubnetKind{SubnetBitcoin},
		BitcoindAddrs: []string{"127.0.0.1:18444"},
	}
	plan := DerivePlan(cfg)

	assert.Equal(t, 1, plan.Count(SubnetBitcoin))
}

func TestDerivePlan_ExplicitSubnetsSuppressDefault(t *testing.T) {
	t.Parallel()
	plan := DerivePlan(&Config{Subnets: []SubnetKind{SubnetFiduciary}})

	assert.False(t, plan.Contains(SubnetApplication))
	assert.Equal(t, []SubnetKind{SubnetFiduciary, SubnetSystem}, plan.Subnets)
}

func TestDerivePlan_DuplicateExplicitSubnetsPreserved(t *testing.T) {
	t.Parallel()
	plan := DerivePlan(&Config{Subnets: []SubnetKind{SubnetApplication, SubnetApplication}})

	assert.Equal(t, 2, plan.Count(SubnetApplication))
}

func TestDerivePlan_DelayCarriedThrough(t *testing.T) {
	t.Parallel()
	d := 10 * time.Millisecond
	plan := DerivePlan(&Config{ArtificialDelay: &d})

	require.NotNil(t, plan.ArtificialDelay)
	assert.Equal(t, d, *plan.ArtificialDelay)
}
