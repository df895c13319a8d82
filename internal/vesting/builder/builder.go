// Package builder assembles the deposit, withdrawal and funding transactions of a vesting escrow.
package builder

import (
	"errors"
	"fmt"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/address"
	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/txcbor"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting"
)

const (
	// vkeyWitnessSize is the serialized size of one [vkey, signature] witness.
	vkeyWitnessSize = 101
	maxFeeRounds    = 8
)

// Builder builds unsigned transactions for one network configuration.
// It holds no mutable state and is safe for concurrent use.
type Builder struct {
	cfg vesting.Config
}

// New validates cfg and returns a Builder.
func New(cfg vesting.Config) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Builder{cfg: cfg}, nil
}

// Config returns the configuration the builder was created with.
func (b *Builder) Config() vesting.Config {
	return b.cfg
}

// LinearFee returns the size based part of the fee for a serialized transaction
// that still needs the given number of key witnesses.
func (b *Builder) LinearFee(size, witnesses int) uint64 {
	total := uint64(size + witnesses*vkeyWitnessSize)
	return b.cfg.Fees.MinFeeA*total + b.cfg.Fees.MinFeeB
}

// finalize sets the fee and the value of tx.Outputs[balanceIdx] so that the
// transaction spends exactly available plus the fee. The fee is re-estimated
// until the serialized size stops growing it.
func (b *Builder) finalize(tx *model.UnsignedTransaction, balanceIdx int, available model.AssetValue, witnesses int, extraFee uint64) error {
	var fee uint64
	for round := 0; round < maxFeeRounds; round++ {
		if have := available.Coin(); have < fee {
			return &vesting.InsufficientFundsError{Unit: model.Lovelace, Shortfall: fee - have}
		}
		balance, err := available.Sub(model.NewCoin(fee))
		if err != nil {
			return err
		}
		tx.Fee = fee
		tx.Outputs[balanceIdx].Value = balance

		raw, err := txcbor.Encode(tx)
		if err != nil {
			return fmt.Errorf("encode draft: %w", err)
		}
		next := b.LinearFee(len(raw), witnesses) + extraFee
		if next <= fee {
			return nil
		}
		fee = next
	}
	return errors.New("fee estimate did not converge")
}

func identity(addr model.Address, role string) (model.IdentityHash, error) {
	h, err := address.IdentityHash(addr)
	if err != nil {
		return model.IdentityHash{}, fmt.Errorf("%w: %s address %s: %v", vesting.ErrInvalidAddress, role, addr, err)
	}
	return h, nil
}
