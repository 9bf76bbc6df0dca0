// Package money provides exact decimal amounts for prices and totals.
//
// Amounts are backed by apd decimals so that sums of menu prices never pick
// up binary floating point error. Rendering always uses two fractional
// digits with half-up rounding.
package money

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/apd/v3"
)

// Amount is an immutable decimal amount. The zero value is 0.
type Amount struct {
	d apd.Decimal
}

// arith is the context used for every operation.
var arith = func() *apd.Context {
	c := apd.BaseContext.WithPrecision(34)
	c.Rounding = apd.RoundHalfUp
	return c
}()

// Zero is the zero amount.
var Zero = Amount{}

// New returns coeff * 10^exp, e.g. New(399, -2) is 3.99.
func New(coeff int64, exp int32) Amount {
	var a Amount
	a.d.SetFinite(coeff, exp)
	return a
}

// Parse parses a decimal string such as "12.50".
func Parse(s string) (Amount, error) {
	d, _, err := apd.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.Form != apd.Finite {
		return Amount{}, fmt.Errorf("parse amount %q: not a finite number", s)
	}
	return Amount{d: *d}, nil
}

// MustParse is Parse for constants. It panics on malformed input.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	var out Amount
	if _, err := arith.Add(&out.d, &a.d, &b.d); err != nil {
		panic(fmt.Sprintf("money: add: %v", err))
	}
	return out
}

// Mul returns a * b.
func (a Amount) Mul(b Amount) Amount {
	var out Amount
	if _, err := arith.Mul(&out.d, &a.d, &b.d); err != nil {
		panic(fmt.Sprintf("money: mul: %v", err))
	}
	return out
}

// Times returns a * n.
func (a Amount) Times(n int) Amount {
	return a.Mul(New(int64(n), 0))
}

// Round returns a rounded half-up to two fractional digits.
func (a Amount) Round() Amount {
	var out Amount
	if _, err := arith.Quantize(&out.d, &a.d, -2); err != nil {
		panic(fmt.Sprintf("money: quantize: %v", err))
	}
	return out
}

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(&b.d)
}

// Sign returns -1, 0 or +1.
func (a Amount) Sign() int {
	return a.d.Sign()
}

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool {
	return a.d.IsZero()
}

// String renders a with exactly two fractional digits, e.g. "15.00".
func (a Amount) String() string {
	r := a.Round()
	return r.d.Text('f')
}

// MarshalJSON encodes a as a JSON number with two fractional digits.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number, a numeric string or null (zero).
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = Amount{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(s)
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
