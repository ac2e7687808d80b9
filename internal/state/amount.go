package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
)

// Amount is a non-negative arbitrary-precision integer in the ledger's smallest
// unit. It persists as a decimal JSON string so large values never pass
// through a float.
type Amount struct {
	v big.Int
}

// NewAmount copies x into an Amount. A nil x is zero.
func NewAmount(x *big.Int) Amount {
	var a Amount
	if x != nil {
		a.v.Set(x)
	}
	return a
}

// ParseAmount parses a base-10 string.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if _, ok := a.v.SetString(s, 10); !ok {
		return Amount{}, fmt.Errorf("invalid amount %q", s)
	}
	if a.v.Sign() < 0 {
		return Amount{}, fmt.Errorf("negative amount %q", s)
	}
	return a, nil
}

// Int returns a copy of the value.
func (a Amount) Int() *big.Int { return new(big.Int).Set(&a.v) }

// Add returns a + x. Negative or nil x is ignored.
func (a Amount) Add(x *big.Int) Amount {
	out := NewAmount(&a.v)
	if x != nil && x.Sign() > 0 {
		out.v.Add(&out.v, x)
	}
	return out
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.v.Sign() == 0 }

func (a Amount) String() string { return a.v.String() }

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v.String())
}

// UnmarshalJSON accepts a quoted decimal string or a bare JSON integer.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		a.v.SetInt64(0)
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	if s == "" {
		a.v.SetInt64(0)
		return nil
	}
	parsed, err := ParseAmount(s)
	if err != nil {
		return err
	}
	a.v.Set(&parsed.v)
	return nil
}
