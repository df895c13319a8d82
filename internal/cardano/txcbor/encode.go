// Package txcbor serializes unsigned transactions for the external signer.
package txcbor

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/address"
	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"golang.org/x/crypto/blake2b"
)

// Transaction body keys.
const (
	keyInputs          = 0
	keyOutputs         = 1
	keyFee             = 2
	keyValidFrom       = 8
	keyScriptDataHash  = 11
	keyCollateral      = 13
	keyRequiredSigners = 14
)

// Witness set keys.
const (
	keyRedeemers = 5
	keyPlutusV3  = 7
)

const (
	outputKeyAddress = 0
	outputKeyValue   = 1
	outputKeyDatum   = 2

	datumOptionInline = 1
	encodedCBORTag    = 24
	redeemerTagSpend  = 0

	languagePlutusV3 = 2
)

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{Sort: cbor.SortCoreDeterministic}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("txcbor: build encoding mode: %v", err))
	}
	return em
}

type input struct {
	_     struct{} `cbor:",toarray"`
	TxID  []byte
	Index uint32
}

type redeemer struct {
	_       struct{} `cbor:",toarray"`
	Tag     uint8
	Index   uint32
	Data    cbor.RawMessage
	ExUnits exUnits
}

type exUnits struct {
	_     struct{} `cbor:",toarray"`
	Mem   uint64
	Steps uint64
}

// Encode serializes tx as [body, witness set, true, null]. The witness set carries
// scripts and redeemers only; key witnesses are added by the signer.
func Encode(tx *model.UnsignedTransaction) ([]byte, error) {
	body, redeemers, err := encodeBody(tx)
	if err != nil {
		return nil, err
	}
	ws := map[uint64]any{}
	if tx.ScriptSpend != nil {
		ws[keyPlutusV3] = [][]byte{tx.ScriptSpend.Script}
		ws[keyRedeemers] = redeemers
	}
	return encMode.Marshal([]any{cbor.RawMessage(body), ws, true, nil})
}

// EncodeBody serializes only the transaction body.
func EncodeBody(tx *model.UnsignedTransaction) ([]byte, error) {
	body, _, err := encodeBody(tx)
	return body, err
}

// TxID returns the hex encoded blake2b-256 hash of the transaction body.
func TxID(tx *model.UnsignedTransaction) (string, error) {
	body, err := EncodeBody(tx)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// ScriptDataHash returns blake2b-256 over the encoded redeemers followed by the
// PlutusV3 language view. The datum segment is omitted since escrow datums are inline.
func ScriptDataHash(redeemers []byte, costModel []int64) ([]byte, error) {
	if len(costModel) == 0 {
		return nil, errors.New("cost model is required for the script data hash")
	}
	views, err := encMode.Marshal(map[uint64][]int64{languagePlutusV3: costModel})
	if err != nil {
		return nil, fmt.Errorf("marshal language views: %w", err)
	}
	preimage := make([]byte, 0, len(redeemers)+len(views))
	preimage = append(preimage, redeemers...)
	preimage = append(preimage, views...)
	sum := blake2b.Sum256(preimage)
	return sum[:], nil
}

// encodeBody returns the body and, for script spends, the encoded redeemers the
// body commits to.
func encodeBody(tx *model.UnsignedTransaction) ([]byte, cbor.RawMessage, error) {
	refs := make([]model.OutRef, 0, len(tx.Inputs))
	for _, in := range tx.Inputs {
		refs = append(refs, in.Ref)
	}
	sortRefs(refs)

	inputs, err := encodeInputs(refs)
	if err != nil {
		return nil, nil, err
	}

	outputs := make([]any, 0, len(tx.Outputs))
	for i, out := range tx.Outputs {
		o, err := encodeOutput(out)
		if err != nil {
			return nil, nil, fmt.Errorf("output %d: %w", i, err)
		}
		outputs = append(outputs, o)
	}

	body := map[uint64]any{
		keyInputs:  inputs,
		keyOutputs: outputs,
		keyFee:     tx.Fee,
	}
	if tx.ValidFrom != nil {
		body[keyValidFrom] = *tx.ValidFrom
	}
	if tx.Collateral != nil {
		collateral, err := encodeInputs([]model.OutRef{tx.Collateral.Ref})
		if err != nil {
			return nil, nil, fmt.Errorf("collateral: %w", err)
		}
		body[keyCollateral] = collateral
	}
	if len(tx.RequiredSigners) > 0 {
		signers := make([][]byte, 0, len(tx.RequiredSigners))
		for _, s := range tx.RequiredSigners {
			signers = append(signers, append([]byte(nil), s[:]...))
		}
		body[keyRequiredSigners] = signers
	}

	var redeemers cbor.RawMessage
	if spend := tx.ScriptSpend; spend != nil {
		if redeemers, err = encodeRedeemers(spend, refs); err != nil {
			return nil, nil, err
		}
		dataHash, err := ScriptDataHash(redeemers, spend.CostModel)
		if err != nil {
			return nil, nil, err
		}
		body[keyScriptDataHash] = dataHash
	}

	raw, err := encMode.Marshal(body)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal body: %w", err)
	}
	return raw, redeemers, nil
}

func encodeRedeemers(spend *model.ScriptSpend, sortedInputs []model.OutRef) (cbor.RawMessage, error) {
	index := -1
	for i, ref := range sortedInputs {
		if ref == spend.Input {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("script input %s is not an input of the transaction", spend.Input)
	}

	raw, err := encMode.Marshal([]redeemer{{
		Tag:     redeemerTagSpend,
		Index:   uint32(index),
		Data:    spend.Redeemer,
		ExUnits: exUnits{Mem: spend.ExUnits.Mem, Steps: spend.ExUnits.Steps},
	}})
	if err != nil {
		return nil, fmt.Errorf("marshal redeemers: %w", err)
	}
	return raw, nil
}

func encodeInputs(refs []model.OutRef) ([]input, error) {
	out := make([]input, 0, len(refs))
	for _, ref := range refs {
		id, err := hex.DecodeString(ref.TxID)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", ref, err)
		}
		out = append(out, input{TxID: id, Index: ref.Index})
	}
	return out, nil
}

func encodeOutput(out model.TxOutput) (map[uint64]any, error) {
	addr, err := address.Bytes(out.Address)
	if err != nil {
		return nil, fmt.Errorf("address %s: %w", out.Address, err)
	}
	value, err := encodeValue(out.Value)
	if err != nil {
		return nil, err
	}
	o := map[uint64]any{
		outputKeyAddress: addr,
		outputKeyValue:   value,
	}
	if len(out.InlineDatum) > 0 {
		o[outputKeyDatum] = []any{
			datumOptionInline,
			cbor.Tag{Number: encodedCBORTag, Content: out.InlineDatum},
		}
	}
	return o, nil
}

func encodeValue(v model.AssetValue) (any, error) {
	assets := map[cbor.ByteString]map[cbor.ByteString]uint64{}
	for _, unit := range v.Units() {
		if unit == model.Lovelace {
			continue
		}
		policy, name, err := SplitUnit(unit)
		if err != nil {
			return nil, err
		}
		if assets[policy] == nil {
			assets[policy] = map[cbor.ByteString]uint64{}
		}
		assets[policy][name] = v[unit]
	}
	if len(assets) == 0 {
		return v.Coin(), nil
	}
	return []any{v.Coin(), assets}, nil
}

// SplitUnit splits a token unit into raw policy id and asset name.
func SplitUnit(unit model.Unit) (policy, name cbor.ByteString, err error) {
	raw, err := hex.DecodeString(string(unit))
	if err != nil || len(unit) < model.PolicyIDHexLen {
		return "", "", fmt.Errorf("invalid asset unit %q", unit)
	}
	split := model.PolicyIDHexLen / 2
	return cbor.ByteString(raw[:split]), cbor.ByteString(raw[split:]), nil
}

func sortRefs(refs []model.OutRef) {
	sort.Slice(refs, func(i, j int) bool {
		a, _ := hex.DecodeString(refs[i].TxID)
		b, _ := hex.DecodeString(refs[j].TxID)
		if c := bytes.Compare(a, b); c != 0 {
			return c < 0
		}
		return refs[i].Index < refs[j].Index
	})
}
