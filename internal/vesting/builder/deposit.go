package builder

import (
	"errors"
	"fmt"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting/datum"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting/selector"
)

// BuildDeposit locks amount at the script address with an inline escrow datum
// releasing it to beneficiary at lockUntil (Unix milliseconds).
func (b *Builder) BuildDeposit(
	ownerUtxos []model.UTxO,
	owner model.Address,
	beneficiary model.Address,
	amount model.AssetValue,
	lockUntil int64,
) (*model.UnsignedTransaction, error) {
	if len(ownerUtxos) == 0 {
		return nil, vesting.ErrNoUtxosAvailable
	}
	ownerID, err := identity(owner, "owner")
	if err != nil {
		return nil, err
	}
	beneficiaryID, err := identity(beneficiary, "beneficiary")
	if err != nil {
		return nil, err
	}

	encoded, err := datum.Encode(datum.EscrowDatum{
		LockUntil:   lockUntil,
		Owner:       ownerID,
		Beneficiary: beneficiaryID,
	})
	if err != nil {
		return nil, fmt.Errorf("encode datum: %w", err)
	}

	return b.pay(ownerUtxos, owner, model.TxOutput{
		Address:     b.cfg.Script.Address,
		Value:       amount.Clone(),
		InlineDatum: encoded,
	})
}

// BuildTransfer sends amount from one wallet to another address, returning change to from.
func (b *Builder) BuildTransfer(utxos []model.UTxO, from, to model.Address, amount model.AssetValue) (*model.UnsignedTransaction, error) {
	if len(utxos) == 0 {
		return nil, vesting.ErrNoUtxosAvailable
	}
	if _, err := identity(from, "sender"); err != nil {
		return nil, err
	}
	return b.pay(utxos, from, model.TxOutput{Address: to, Value: amount.Clone()})
}

// pay builds [out, change] from utxos selected for out plus the fee margin.
func (b *Builder) pay(utxos []model.UTxO, changeAddress model.Address, out model.TxOutput) (*model.UnsignedTransaction, error) {
	if out.Value.Coin() == 0 {
		return nil, errors.New("amount must include a positive lovelace quantity")
	}

	target, err := out.Value.Add(model.NewCoin(b.cfg.Fees.Margin))
	if err != nil {
		return nil, err
	}
	sel, err := selector.Select(utxos, target)
	if err != nil {
		return nil, fmt.Errorf("select inputs: %w", err)
	}

	available, err := sel.Total.Sub(out.Value)
	if err != nil {
		return nil, fmt.Errorf("compute change: %w", err)
	}

	tx := &model.UnsignedTransaction{
		Inputs: sel.Chosen,
		Outputs: []model.TxOutput{
			out,
			{Address: changeAddress},
		},
	}
	if err := b.finalize(tx, 1, available, 1, 0); err != nil {
		return nil, fmt.Errorf("balance transaction: %w", err)
	}
	if tx.Outputs[1].Value.IsZero() {
		tx.Outputs = tx.Outputs[:1]
	}
	return tx, nil
}
