package builder

import (
	"errors"
	"testing"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting/datum"
	"github.com/stretchr/testify/require"
)

const lockUntil int64 = 1_700_000_060_000

func TestBuilder_BuildDeposit(t *testing.T) {
	b := newTestBuilder(t)
	owner, beneficiary := keyAddress(t, 0x01), keyAddress(t, 0x02)
	utxos := []model.UTxO{{
		Ref:     model.OutRef{TxID: txid("a"), Index: 0},
		Address: owner,
		Value:   model.NewCoin(10_000_000),
	}}

	tx, err := b.BuildDeposit(utxos, owner, beneficiary, model.NewCoin(3_000_000), lockUntil)
	require.NoError(t, err)

	require.Equal(t, utxos, tx.Inputs)
	require.Len(t, tx.Outputs, 2)

	script := tx.Outputs[0]
	require.Equal(t, b.Config().Script.Address, script.Address)
	require.True(t, script.Value.Equal(model.NewCoin(3_000_000)))
	escrow, err := datum.Decode(script.InlineDatum)
	require.NoError(t, err)
	require.Equal(t, datum.EscrowDatum{LockUntil: lockUntil, Owner: hash(0x01), Beneficiary: hash(0x02)}, escrow)

	change := tx.Outputs[1]
	require.Equal(t, owner, change.Address)
	require.Nil(t, change.InlineDatum)
	require.Greater(t, tx.Fee, uint64(0))
	require.Less(t, tx.Fee, uint64(500_000))
	require.Equal(t, uint64(10_000_000-3_000_000)-tx.Fee, change.Value.Coin())

	require.Nil(t, tx.ValidFrom)
	require.Nil(t, tx.ScriptSpend)
	require.Nil(t, tx.Collateral)
	requireBalanced(t, b, tx, 1, 0)
}

func TestBuilder_BuildDeposit_CarriesTokensToChange(t *testing.T) {
	b := newTestBuilder(t)
	owner := keyAddress(t, 0x01)
	token := model.Unit("ab000000000000000000000000000000000000000000000000000000" + "746f6b")
	utxos := []model.UTxO{
		{Ref: model.OutRef{TxID: txid("a")}, Address: owner, Value: model.AssetValue{model.Lovelace: 2_000_000, token: 7}},
		{Ref: model.OutRef{TxID: txid("b")}, Address: owner, Value: model.NewCoin(8_000_000)},
	}

	tx, err := b.BuildDeposit(utxos, owner, keyAddress(t, 0x02), model.NewCoin(5_000_000), lockUntil)
	require.NoError(t, err)
	require.Len(t, tx.Inputs, 2)
	require.Equal(t, uint64(7), tx.Outputs[1].Value[token])
	requireBalanced(t, b, tx, 1, 0)
}

func TestBuilder_BuildDeposit_Errors(t *testing.T) {
	owner, beneficiary := keyAddress(t, 0x01), keyAddress(t, 0x02)
	small := []model.UTxO{{Ref: model.OutRef{TxID: txid("a")}, Address: owner, Value: model.NewCoin(1_000_000)}}

	tests := []struct {
		name    string
		prepare func(b *Builder) *Builder
		utxos   []model.UTxO
		owner   model.Address
		amount  model.AssetValue
		wantErr error
	}{
		{
			name:    "no utxos",
			owner:   owner,
			amount:  model.NewCoin(3_000_000),
			wantErr: vesting.ErrNoUtxosAvailable,
		},
		{
			name:    "selection shortfall",
			utxos:   small,
			owner:   owner,
			amount:  model.NewCoin(3_000_000),
			wantErr: vesting.ErrInsufficientFunds,
		},
		{
			name: "fee not covered without margin",
			prepare: func(b *Builder) *Builder {
				cfg := b.Config()
				cfg.Fees.Margin = 0
				return &Builder{cfg: cfg}
			},
			utxos:   small,
			owner:   owner,
			amount:  model.NewCoin(1_000_000),
			wantErr: vesting.ErrInsufficientFunds,
		},
		{
			name:    "owner is not a key address",
			utxos:   small,
			owner:   "addr_test1invalid",
			amount:  model.NewCoin(1),
			wantErr: vesting.ErrInvalidAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(t)
			if tt.prepare != nil {
				b = tt.prepare(b)
			}
			tx, err := b.BuildDeposit(tt.utxos, tt.owner, beneficiary, tt.amount, lockUntil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("BuildDeposit() error = %v, want %v", err, tt.wantErr)
			}
			if tx != nil {
				t.Fatalf("BuildDeposit() returned a transaction on error")
			}
		})
	}
}

func TestBuilder_BuildTransfer(t *testing.T) {
	b := newTestBuilder(t)
	owner, beneficiary := keyAddress(t, 0x01), keyAddress(t, 0x02)
	utxos := []model.UTxO{{Ref: model.OutRef{TxID: txid("d"), Index: 2}, Address: owner, Value: model.NewCoin(20_000_000)}}

	tx, err := b.BuildTransfer(utxos, owner, beneficiary, model.NewCoin(5_000_000))
	require.NoError(t, err)
	require.Len(t, tx.Outputs, 2)
	require.Equal(t, beneficiary, tx.Outputs[0].Address)
	require.Nil(t, tx.Outputs[0].InlineDatum)
	require.Equal(t, uint64(5_000_000), tx.Outputs[0].Value.Coin())
	require.Equal(t, uint64(15_000_000)-tx.Fee, tx.Outputs[1].Value.Coin())
	requireBalanced(t, b, tx, 1, 0)

	_, err = b.BuildTransfer(nil, owner, beneficiary, model.NewCoin(5_000_000))
	require.ErrorIs(t, err, vesting.ErrNoUtxosAvailable)

	_, err = b.BuildTransfer(utxos, owner, beneficiary, model.AssetValue{})
	require.Error(t, err)
}
