package ledger

import (
	"math/big"
	"strings"
)

var (
	weiPerEth  = big.NewInt(1_000_000_000_000_000_000)
	weiPerGwei = big.NewInt(1_000_000_000)
)

// MicroEth is 0.0001 ETH in wei, the standard action amount.
var MicroEth = big.NewInt(100_000_000_000_000)

// Gwei converts n gwei to wei.
func Gwei(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), weiPerGwei)
}

// FormatEth renders wei as ETH with a fixed number of decimals, rounding the
// last digit. A nil amount formats as zero.
func FormatEth(wei *big.Int, decimals int) string {
	if wei == nil {
		wei = new(big.Int)
	}
	return new(big.Rat).SetFrac(wei, weiPerEth).FloatString(decimals)
}

// ShortAddress keeps the first head and last tail characters of addr.
func ShortAddress(addr string, head, tail int) string {
	if len(addr) <= head+tail {
		return addr
	}
	return addr[:head] + "..." + addr[len(addr)-tail:]
}

// SameAddress compares two hex addresses case-insensitively.
func SameAddress(a, b string) bool {
	return strings.EqualFold(a, b)
}
