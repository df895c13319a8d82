package builder

import (
	"strings"
	"testing"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/address"
	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/txcbor"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting"
	"github.com/stretchr/testify/require"
)

var (
	testScript    = []byte{0x46, 0x01, 0x00, 0x00, 0x22, 0x49, 0x9d}
	testCostModel = []int64{100788, 420, 1, 1, 1000, 173, 0, 1, -1}
)

func hash(b byte) model.IdentityHash {
	var h model.IdentityHash
	for i := range h {
		h[i] = b
	}
	return h
}

func keyAddress(t *testing.T, b byte) model.Address {
	t.Helper()
	addr, err := address.KeyAddress(hash(b), address.Testnet)
	require.NoError(t, err)
	return addr
}

func txid(c string) string {
	return strings.Repeat(c, 64)
}

func newTestBuilder(t *testing.T) *Builder {
	t.Helper()
	cfg, err := vesting.NewConfig("preview", testScript, "")
	require.NoError(t, err)
	cfg.CostModel = testCostModel
	b, err := New(cfg)
	require.NoError(t, err)
	return b
}

// requireBalanced checks value conservation and that the fee covers the serialized size.
func requireBalanced(t *testing.T, b *Builder, tx *model.UnsignedTransaction, witnesses int, extraFee uint64) {
	t.Helper()
	in, err := model.SumValues(tx.Inputs)
	require.NoError(t, err)

	out := model.NewCoin(tx.Fee)
	for _, o := range tx.Outputs {
		out, err = out.Add(o.Value)
		require.NoError(t, err)
	}
	require.True(t, in.Equal(out), "inputs %v != outputs+fee %v", in, out)

	raw, err := txcbor.Encode(tx)
	require.NoError(t, err)
	require.LessOrEqual(t, b.LinearFee(len(raw), witnesses)+extraFee, tx.Fee)
}
