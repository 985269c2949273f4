// Package money implements the engine's fixed-precision amount type.
//
// Postings are denominated in the smallest unit of their currency
// (satoshi, wei, STQ base unit) and must never lose precision to a
// float, so amounts are backed by github.com/holiman/uint256 rather
// than a machine uint64 or float64.
package money

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Value is an unsigned fixed-precision integer amount in a currency's
// smallest unit (§3 Invariant 5: value > 0, integer units).
type Value struct {
	i uint256.Int
}

func Zero() Value { return Value{} }

func FromUint64(v uint64) Value {
	var out Value
	out.i.SetUint64(v)
	return out
}

func FromBigInt(v *big.Int) (Value, error) {
	var out Value
	if v.Sign() < 0 {
		return out, fmt.Errorf("money: negative amount %s", v.String())
	}
	overflow := out.i.SetFromBig(v)
	if overflow {
		return out, fmt.Errorf("money: amount %s overflows 256 bits", v.String())
	}
	return out, nil
}

func (v Value) BigInt() *big.Int { return v.i.ToBig() }

func (v Value) IsZero() bool { return v.i.IsZero() }

func (v Value) IsPositive() bool { return !v.i.IsZero() }

func (v Value) String() string { return v.i.Dec() }

func (v Value) Add(other Value) Value {
	var out Value
	out.i.Add(&v.i, &other.i)
	return out
}

func (v Value) Sub(other Value) (Value, error) {
	if v.LessThan(other) {
		return Value{}, fmt.Errorf("money: %s - %s underflows", v.String(), other.String())
	}
	var out Value
	out.i.Sub(&v.i, &other.i)
	return out, nil
}

func (v Value) LessThan(other Value) bool { return v.i.Lt(&other.i) }

func (v Value) GreaterOrEqual(other Value) bool { return !v.i.Lt(&other.i) }

func (v Value) Equal(other Value) bool { return v.i.Eq(&other.i) }

// MulRat multiplies v by a floating-point ratio, truncating toward
// zero to a whole integer unit. Used for exchange-rate and fee-price
// conversions (§4.2, §4.4.2), where the spec explicitly tolerates a
// floating-point fallback to avoid losing precision on tiny results.
func (v Value) MulRat(ratio float64) Value {
	f := new(big.Float).SetInt(v.BigInt())
	f.Mul(f, big.NewFloat(ratio))
	i, _ := f.Int(nil)
	if i.Sign() < 0 {
		i.SetInt64(0)
	}
	out, err := FromBigInt(i)
	if err != nil {
		// Overflow here means an upstream caller fed a nonsensical
		// ratio; clamp rather than propagate a panic into a posting.
		return Value{i: *uint256.NewInt(0).SetAllOne()}
	}
	return out
}

// DivUint64 performs an integer quotient, used by fee-price
// computation (§4.2) which explicitly wants integer division with a
// float fallback when the quotient is small.
func (v Value) DivUint64(d uint64) (Value, bool) {
	if d == 0 {
		return Value{}, false
	}
	var out Value
	dd := uint256.NewInt(d)
	out.i.Div(&v.i, dd)
	return out, true
}
