// Package model defines ledger data shared by the vesting engine components.
package model

import (
	"fmt"
	"math"
	"sort"
)

// Unit identifies an asset. Lovelace is the native unit; token units are the
// policy id followed by the hex encoded asset name.
type Unit string

// Lovelace is the native ledger unit.
const Lovelace Unit = "lovelace"

// PolicyIDHexLen is the length of a hex encoded minting policy id.
const PolicyIDHexLen = 56

// AssetValue maps units to non-negative quantities.
type AssetValue map[Unit]uint64

// NewCoin returns a value holding only the native unit.
func NewCoin(lovelace uint64) AssetValue {
	return AssetValue{Lovelace: lovelace}
}

// Coin returns the native quantity.
func (v AssetValue) Coin() uint64 {
	return v[Lovelace]
}

// Units returns the units with a non-zero quantity, native unit first and tokens in lexical order.
func (v AssetValue) Units() []Unit {
	units := make([]Unit, 0, len(v))
	for unit, qty := range v {
		if qty == 0 || unit == Lovelace {
			continue
		}
		units = append(units, unit)
	}
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })
	if v[Lovelace] > 0 {
		units = append([]Unit{Lovelace}, units...)
	}
	return units
}

// Clone returns a copy without zero entries.
func (v AssetValue) Clone() AssetValue {
	out := make(AssetValue, len(v))
	for unit, qty := range v {
		if qty > 0 {
			out[unit] = qty
		}
	}
	return out
}

// IsZero reports whether every quantity is zero.
func (v AssetValue) IsZero() bool {
	for _, qty := range v {
		if qty > 0 {
			return false
		}
	}
	return true
}

// Equal compares two values ignoring zero entries.
func (v AssetValue) Equal(other AssetValue) bool {
	a, b := v.Clone(), other.Clone()
	if len(a) != len(b) {
		return false
	}
	for unit, qty := range a {
		if b[unit] != qty {
			return false
		}
	}
	return true
}

// Add returns v + other.
func (v AssetValue) Add(other AssetValue) (AssetValue, error) {
	out := v.Clone()
	for unit, qty := range other {
		if qty == 0 {
			continue
		}
		if out[unit] > math.MaxUint64-qty {
			return nil, fmt.Errorf("unit %s overflows", unit)
		}
		out[unit] += qty
	}
	return out, nil
}

// Sub returns v - other and fails when any unit would go negative.
func (v AssetValue) Sub(other AssetValue) (AssetValue, error) {
	out := v.Clone()
	for unit, qty := range other {
		if qty == 0 {
			continue
		}
		if out[unit] < qty {
			return nil, fmt.Errorf("unit %s: have %d, need %d", unit, out[unit], qty)
		}
		out[unit] -= qty
		if out[unit] == 0 {
			delete(out, unit)
		}
	}
	return out, nil
}

// Shortfall returns the first unit (in Units order of target) that v does not
// cover together with the missing quantity. ok is true when v covers target.
func (v AssetValue) Shortfall(target AssetValue) (unit Unit, missing uint64, ok bool) {
	for _, u := range target.Units() {
		if have, want := v[u], target[u]; have < want {
			return u, want - have, false
		}
	}
	return "", 0, true
}

// String renders the value in deterministic unit order.
func (v AssetValue) String() string {
	s := "{"
	for i, unit := range v.Units() {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s: %d", unit, v[unit])
	}
	return s + "}"
}

// SumValues adds the values of the given outputs.
func SumValues(utxos []UTxO) (AssetValue, error) {
	total := AssetValue{}
	for _, u := range utxos {
		next, err := total.Add(u.Value)
		if err != nil {
			return nil, fmt.Errorf("sum utxo %s: %w", u.Ref, err)
		}
		total = next
	}
	return total, nil
}
