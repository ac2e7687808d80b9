package ledger

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatEth(t *testing.T) {
	tests := []struct {
		name string
		wei  *big.Int
		want string
	}{
		{name: "nil", wei: nil, want: "0.000000"},
		{name: "micro", wei: MicroEth, want: "0.000100"},
		{name: "breath", wei: Gwei(1500), want: "0.000002"},
		{name: "one eth", wei: big.NewInt(1_000_000_000_000_000_000), want: "1.000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEth(tt.wei, 6))
		})
	}

	huge, _ := new(big.Int).SetString("123456789012345678901", 10)
	assert.Equal(t, "123.456789", FormatEth(huge, 6))
}

func TestShortAddress(t *testing.T) {
	addr := "0xcf38e8aF885529c457f766a01c22473dBcCe3396"
	assert.Equal(t, "0xcf38...3396", ShortAddress(addr, 6, 4))
	assert.Equal(t, "0xab", ShortAddress("0xab", 6, 4))
	assert.True(t, SameAddress(addr, "0xCF38E8AF885529C457F766A01C22473DBCCE3396"))
}
