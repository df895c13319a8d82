// Package datum encodes and decodes the escrow record stored inline at the script output.
package datum

import (
	"encoding/hex"
	"fmt"

	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/plutus"
	"github.com/goodnatureofminers/vesting-escrow/internal/vesting"
)

const (
	escrowConstructor = 0
	escrowFieldCount  = 3
)

// EscrowDatum is the record locked together with the deposit.
type EscrowDatum struct {
	// LockUntil is the release time in milliseconds since the Unix epoch.
	LockUntil   int64
	Owner       model.IdentityHash
	Beneficiary model.IdentityHash
}

// Encode serializes d as constructor 0 [lockUntil, owner, beneficiary].
func Encode(d EscrowDatum) ([]byte, error) {
	return plutus.EncodeConstr(escrowConstructor,
		plutus.Int(d.LockUntil),
		plutus.Bytes(d.Owner[:]),
		plutus.Bytes(d.Beneficiary[:]),
	)
}

// Decode parses an escrow record. Any deviation from the layout written by Encode
// is reported as vesting.ErrMalformedDatum.
func Decode(data []byte) (EscrowDatum, error) {
	c, err := plutus.DecodeConstr(data)
	if err != nil {
		return EscrowDatum{}, fmt.Errorf("%w: %v", vesting.ErrMalformedDatum, err)
	}
	if c.Index != escrowConstructor {
		return EscrowDatum{}, fmt.Errorf("%w: constructor %d", vesting.ErrMalformedDatum, c.Index)
	}
	if len(c.Fields) != escrowFieldCount {
		return EscrowDatum{}, fmt.Errorf("%w: %d fields", vesting.ErrMalformedDatum, len(c.Fields))
	}

	lockUntil, err := plutus.DecodeInt(c.Fields[0])
	if err != nil {
		return EscrowDatum{}, fmt.Errorf("%w: lock time: %v", vesting.ErrMalformedDatum, err)
	}
	owner, err := decodeIdentity(c.Fields[1])
	if err != nil {
		return EscrowDatum{}, fmt.Errorf("%w: owner: %v", vesting.ErrMalformedDatum, err)
	}
	beneficiary, err := decodeIdentity(c.Fields[2])
	if err != nil {
		return EscrowDatum{}, fmt.Errorf("%w: beneficiary: %v", vesting.ErrMalformedDatum, err)
	}

	return EscrowDatum{LockUntil: lockUntil, Owner: owner, Beneficiary: beneficiary}, nil
}

// DecodeHex parses a hex encoded datum as returned by the indexer.
func DecodeHex(s string) (EscrowDatum, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return EscrowDatum{}, fmt.Errorf("%w: %v", vesting.ErrMalformedDatum, err)
	}
	return Decode(raw)
}

func decodeIdentity(raw []byte) (model.IdentityHash, error) {
	b, err := plutus.DecodeBytes(raw)
	if err != nil {
		return model.IdentityHash{}, err
	}
	return model.IdentityHashFromBytes(b)
}
