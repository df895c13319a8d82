package builder

import (
	"fmt"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/plutus"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting/datum"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting/selector"
)

// ValidFrom returns the validity lower bound for a withdrawal built at nowMs.
// The bound may precede lockUntil by up to the configured skew; the validator
// re-checks the lock time against the ledger clock.
func (b *Builder) ValidFrom(lockUntil, nowMs int64) uint64 {
	return b.cfg.Slot.TimeToSlot(min(lockUntil, nowMs-b.cfg.SkewMs)) + 1
}

// BuildWithdrawal spends the deposit output to beneficiary. The fee is taken from
// the spent value and collateral[0] is pledged against script failure.
func (b *Builder) BuildWithdrawal(
	deposit model.UTxO,
	beneficiary model.Address,
	beneficiaryUtxos []model.UTxO,
	collateral []model.UTxO,
	nowMs int64,
) (*model.UnsignedTransaction, error) {
	if !deposit.HasInlineDatum() {
		if deposit.DatumHash != "" {
			return nil, fmt.Errorf("%w: output %s only references datum hash %s", vesting.ErrMissingDatum, deposit.Ref, deposit.DatumHash)
		}
		return nil, fmt.Errorf("%w: output %s", vesting.ErrMissingDatum, deposit.Ref)
	}
	escrow, err := datum.Decode(deposit.InlineDatum)
	if err != nil {
		return nil, err
	}

	validFrom := b.ValidFrom(escrow.LockUntil, nowMs)

	if len(beneficiaryUtxos) == 0 {
		return nil, fmt.Errorf("%w: beneficiary has no utxos to pay the fee", vesting.ErrInsufficientFunds)
	}
	if len(collateral) == 0 {
		return nil, vesting.ErrMissingCollateral
	}

	beneficiaryID, err := identity(beneficiary, "beneficiary")
	if err != nil {
		return nil, err
	}
	if beneficiaryID != escrow.Beneficiary {
		return nil, fmt.Errorf("%w: datum names %s, address has %s",
			vesting.ErrBeneficiaryMismatch, escrow.Beneficiary.Hex(), beneficiaryID.Hex())
	}

	if len(b.cfg.CostModel) == 0 {
		return nil, vesting.ErrMissingCostModel
	}

	// Zero native target: the deposit itself carries the fee.
	sel, err := selector.Select(beneficiaryUtxos, model.AssetValue{})
	if err != nil {
		return nil, fmt.Errorf("select fee inputs: %w", err)
	}

	inputs := make([]model.UTxO, 0, 1+len(sel.Chosen))
	inputs = append(inputs, deposit)
	inputs = append(inputs, sel.Chosen...)
	available, err := model.SumValues(inputs)
	if err != nil {
		return nil, err
	}

	pledged := collateral[0]
	tx := &model.UnsignedTransaction{
		Inputs:          inputs,
		Outputs:         []model.TxOutput{{Address: beneficiary}},
		Collateral:      &pledged,
		ValidFrom:       &validFrom,
		RequiredSigners: []model.IdentityHash{escrow.Beneficiary},
		ScriptSpend: &model.ScriptSpend{
			Input:     deposit.Ref,
			Script:    b.cfg.Script.CBOR,
			Redeemer:  plutus.Unit(),
			ExUnits:   b.cfg.ExUnits,
			CostModel: b.cfg.CostModel,
		},
	}
	if err := b.finalize(tx, 0, available, len(tx.RequiredSigners), b.cfg.ScriptFee()); err != nil {
		return nil, fmt.Errorf("balance transaction: %w", err)
	}
	return tx, nil
}
