package address_test

import (
	"strings"
	"testing"

	"github.com/Cogwheel-Validator/spectra-send/recipient/address"
	"github.com/Cogwheel-Validator/spectra-send/recipient/registry/registrytest"
	"github.com/zeebo/assert"
)

func TestConvertBech32Address(t *testing.T) {
	tests := []struct {
		name    string
		address string
		prefix  string
		want    string
		wantErr bool
	}{
		{"cosmos to osmo", cosmosAddr, "osmo", osmoAddr, false},
		{"osmo to init", osmoAddr, "init", initAddr, false},
		{"same prefix", cosmosAddr, "cosmos", cosmosAddr, false},
		{"invalid source", "cosmos1invalid", "osmo", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := address.ConvertBech32Address(tt.address, tt.prefix)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, got, tt.want)
		})
	}
}

func TestAddressConverter(t *testing.T) {
	converter := address.NewAddressConverter(registrytest.Chains())

	got, err := converter.ConvertAddress(cosmosAddr, "juno")
	assert.NoError(t, err)
	assert.Equal(t, got, "juno1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5fs09pq")

	prefix, ok := converter.GetPrefix("evmos")
	assert.True(t, ok)
	assert.Equal(t, prefix, "evmos")

	// EVM-only chains have no bech32 prefix
	_, ok = converter.GetPrefix("ethereum")
	assert.False(t, ok)
	_, err = converter.ConvertAddress(cosmosAddr, "ethereum")
	assert.Error(t, err)
}

func TestBech32HexRoundTrip(t *testing.T) {
	hexAddr, err := address.Bech32ToHex(cosmosAddr)
	assert.NoError(t, err)
	assert.True(t, strings.EqualFold(hexAddr, evmAddr))

	evmos, err := address.HexToBech32(hexAddr, "evmos")
	assert.NoError(t, err)
	assert.Equal(t, evmos, "evmos1qypqxpq9qcrsszg2pvxq6rs0zqg3yyc5arasu5")

	_, err = address.HexToBech32("0x1234", "evmos")
	assert.Error(t, err)
	_, err = address.Bech32ToHex("leap.arch")
	assert.Error(t, err)
}
