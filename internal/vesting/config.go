package vesting

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/address"
	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/slot"
)

const (
	// DefaultSkewMs tolerates drift between local time and the ledger's slot clock.
	DefaultSkewMs int64 = 19_000
	// DefaultCollateralMin is the smallest pure-lovelace output accepted as collateral.
	DefaultCollateralMin uint64 = 5_000_000
)

// Ratio is a non-negative rational protocol parameter.
type Ratio struct {
	Num uint64
	Den uint64
}

// ParseRatio parses a decimal such as "0.0577" into an exact ratio.
func ParseRatio(s string) (Ratio, error) {
	r, ok := new(big.Rat).SetString(s)
	if !ok || r.Sign() < 0 {
		return Ratio{}, fmt.Errorf("invalid ratio %q", s)
	}
	if !r.Num().IsUint64() || !r.Denom().IsUint64() {
		return Ratio{}, fmt.Errorf("ratio %q out of range", s)
	}
	return Ratio{Num: r.Num().Uint64(), Den: r.Denom().Uint64()}, nil
}

// MulCeil returns ceil(n * r).
func (r Ratio) MulCeil(n uint64) uint64 {
	return ceilRat(r.mul(n))
}

func (r Ratio) mul(n uint64) *big.Rat {
	if r.Den == 0 {
		return new(big.Rat)
	}
	num := new(big.Int).Mul(new(big.Int).SetUint64(r.Num), new(big.Int).SetUint64(n))
	return new(big.Rat).SetFrac(num, new(big.Int).SetUint64(r.Den))
}

func ceilRat(x *big.Rat) uint64 {
	q, m := new(big.Int).QuoRem(x.Num(), x.Denom(), new(big.Int))
	if m.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Uint64()
}

// FeeParams are the fee related protocol parameters plus the selection buffer.
type FeeParams struct {
	MinFeeA    uint64
	MinFeeB    uint64
	PriceMem   Ratio
	PriceSteps Ratio
	// Margin is added to the native target during selection to leave room for the fee.
	Margin uint64
}

// DefaultFees returns the current public network fee parameters.
func DefaultFees() FeeParams {
	return FeeParams{
		MinFeeA:    44,
		MinFeeB:    155_381,
		PriceMem:   Ratio{Num: 577, Den: 10_000},
		PriceSteps: Ratio{Num: 721, Den: 10_000_000},
		Margin:     2_000_000,
	}
}

// ProtocolParameters are the ledger parameters the builders depend on.
type ProtocolParameters struct {
	MinFeeA     uint64
	MinFeeB     uint64
	PriceMem    Ratio
	PriceSteps  Ratio
	CostModelV3 []int64
}

// DefaultExUnits is the execution budget declared for the vesting validator.
var DefaultExUnits = model.ExUnits{Mem: 7_000_000, Steps: 3_000_000_000}

// Script references the precompiled vesting validator.
type Script struct {
	CBOR    []byte
	Address model.Address
}

// Config is the network and script configuration passed to every builder.
type Config struct {
	Network       address.NetworkID
	Slot          slot.Config
	Script        Script
	Fees          FeeParams
	ExUnits       model.ExUnits
	SkewMs        int64
	CollateralMin uint64
	// CostModel is the PlutusV3 cost model; withdrawals cannot be built without it.
	CostModel []int64
}

// NewConfig returns a configuration for a named network with default parameters.
// When scriptAddress is empty it is derived from the script bytes.
func NewConfig(network string, scriptCBOR []byte, scriptAddress model.Address) (Config, error) {
	slots, err := slot.ForNetwork(network)
	if err != nil {
		return Config{}, err
	}
	netID := address.Testnet
	if network == "mainnet" {
		netID = address.Mainnet
	}
	cfg := Config{
		Network:       netID,
		Slot:          slots,
		Script:        Script{CBOR: scriptCBOR, Address: scriptAddress},
		Fees:          DefaultFees(),
		ExUnits:       DefaultExUnits,
		SkewMs:        DefaultSkewMs,
		CollateralMin: DefaultCollateralMin,
	}
	if cfg.Script.Address == "" && len(scriptCBOR) > 0 {
		hash, err := address.ScriptHash(address.PlutusV3, scriptCBOR)
		if err != nil {
			return Config{}, fmt.Errorf("hash script: %w", err)
		}
		if cfg.Script.Address, err = address.ScriptAddress(hash, netID); err != nil {
			return Config{}, fmt.Errorf("derive script address: %w", err)
		}
	}
	return cfg, cfg.Validate()
}

// Validate checks that the configuration is usable by the builders.
func (c Config) Validate() error {
	if err := c.Slot.Validate(); err != nil {
		return err
	}
	if c.Script.Address == "" {
		return errors.New("script address is required")
	}
	if _, err := address.Decode(c.Script.Address); err != nil {
		return fmt.Errorf("script address: %w", err)
	}
	if c.SkewMs < 0 {
		return fmt.Errorf("skew must not be negative, got %d", c.SkewMs)
	}
	return nil
}

// ApplyProtocolParameters replaces the fee parameters and cost model with the
// ledger's current values. The selection margin is kept.
func (c *Config) ApplyProtocolParameters(p ProtocolParameters) {
	c.Fees.MinFeeA = p.MinFeeA
	c.Fees.MinFeeB = p.MinFeeB
	c.Fees.PriceMem = p.PriceMem
	c.Fees.PriceSteps = p.PriceSteps
	c.CostModel = append([]int64(nil), p.CostModelV3...)
}

// ScriptFee returns the execution fee of the configured budget,
// ceil(PriceMem*mem + PriceSteps*steps).
func (c Config) ScriptFee() uint64 {
	fee := new(big.Rat).Add(c.Fees.PriceMem.mul(c.ExUnits.Mem), c.Fees.PriceSteps.mul(c.ExUnits.Steps))
	return ceilRat(fee)
}
