package model

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Address is a bech32 encoded ledger address.
type Address string

// IdentityHashSize is the length of a payment key hash.
const IdentityHashSize = 28

// IdentityHash is the hashed payment credential of an address.
type IdentityHash [IdentityHashSize]byte

// Hex returns the hex encoding of the hash.
func (h IdentityHash) Hex() string {
	return hex.EncodeToString(h[:])
}

// IdentityHashFromBytes copies b into an IdentityHash.
func IdentityHashFromBytes(b []byte) (IdentityHash, error) {
	var h IdentityHash
	if len(b) != IdentityHashSize {
		return h, fmt.Errorf("identity hash must be %d bytes, got %d", IdentityHashSize, len(b))
	}
	copy(h[:], b)
	return h, nil
}

// OutRef points at a transaction output.
type OutRef struct {
	TxID  string
	Index uint32
}

func (r OutRef) String() string {
	return fmt.Sprintf("%s#%d", r.TxID, r.Index)
}

// ParseOutRef parses the txid#index form produced by String.
func ParseOutRef(s string) (OutRef, error) {
	id, idx, ok := strings.Cut(s, "#")
	if !ok {
		return OutRef{}, fmt.Errorf("out ref %q: missing #index", s)
	}
	if raw, err := hex.DecodeString(id); err != nil || len(raw) != 32 {
		return OutRef{}, fmt.Errorf("out ref %q: tx id must be 32 hex encoded bytes", s)
	}
	index, err := strconv.ParseUint(idx, 10, 32)
	if err != nil {
		return OutRef{}, fmt.Errorf("out ref %q: %w", s, err)
	}
	return OutRef{TxID: strings.ToLower(id), Index: uint32(index)}, nil
}

// UTxO is an unspent output as reported by the ledger indexer.
type UTxO struct {
	Ref         OutRef
	Address     Address
	Value       AssetValue
	InlineDatum []byte
	DatumHash   string
}

// HasInlineDatum reports whether the output carries its datum inline.
func (u UTxO) HasInlineDatum() bool {
	return len(u.InlineDatum) > 0
}

// TxOutput is an output of a transaction under construction.
type TxOutput struct {
	Address     Address
	Value       AssetValue
	InlineDatum []byte
}

// ExUnits is a script execution budget.
type ExUnits struct {
	Mem   uint64
	Steps uint64
}

// ScriptSpend describes how a script-locked input of a transaction is unlocked.
type ScriptSpend struct {
	Input    OutRef
	Script   []byte
	Redeemer []byte
	ExUnits  ExUnits
	// CostModel is the PlutusV3 cost model committed to by the script data hash.
	CostModel []int64
}

// UnsignedTransaction is a fully balanced transaction awaiting signatures.
type UnsignedTransaction struct {
	Inputs          []UTxO
	Outputs         []TxOutput
	Fee             uint64
	Collateral      *UTxO
	ValidFrom       *uint64
	RequiredSigners []IdentityHash
	ScriptSpend     *ScriptSpend
}

// SignedTransaction is the serialized transaction returned by the signer.
type SignedTransaction struct {
	CBOR []byte
}
