// Package address decodes Shelley-era bech32 addresses and derives script addresses.
package address

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/goodnatureofminers/vesting-escrow/internal/cardano/model"
	"golang.org/x/crypto/blake2b"
)

// NetworkID is the network nibble of an address header.
type NetworkID byte

const (
	Testnet NetworkID = 0
	Mainnet NetworkID = 1
)

const (
	hrpMainnet = "addr"
	hrpTestnet = "addr_test"

	typeEnterpriseKey    byte = 0x6
	typeEnterpriseScript byte = 0x7
	typeStakeKey         byte = 0xe
	typeStakeScript      byte = 0xf

	credentialSize = model.IdentityHashSize
)

// ErrScriptCredential is returned when a key hash is requested from a script-locked address.
var ErrScriptCredential = errors.New("payment credential is a script hash")

// Shelley is a decoded Shelley address.
type Shelley struct {
	Header  byte
	Payload []byte
}

// Type returns the address type nibble.
func (a Shelley) Type() byte {
	return a.Header >> 4
}

// Network returns the network nibble.
func (a Shelley) Network() NetworkID {
	return NetworkID(a.Header & 0x0f)
}

// Bytes returns the raw address as carried in transaction outputs.
func (a Shelley) Bytes() []byte {
	out := make([]byte, 0, 1+len(a.Payload))
	out = append(out, a.Header)
	return append(out, a.Payload...)
}

// PaymentCredential returns the payment part of the address and whether it is a script hash.
func (a Shelley) PaymentCredential() ([]byte, bool, error) {
	switch t := a.Type(); {
	case t <= typeEnterpriseScript:
		if len(a.Payload) < credentialSize {
			return nil, false, fmt.Errorf("address payload too short: %d bytes", len(a.Payload))
		}
		return a.Payload[:credentialSize], t&1 == 1, nil
	case t == typeStakeKey || t == typeStakeScript:
		return nil, false, fmt.Errorf("reward address has no payment credential")
	default:
		return nil, false, fmt.Errorf("unsupported address type %d", t)
	}
}

// Decode parses a bech32 address.
func Decode(addr model.Address) (Shelley, error) {
	hrp, data, err := bech32.DecodeNoLimit(string(addr))
	if err != nil {
		return Shelley{}, fmt.Errorf("bech32 decode: %w", err)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Shelley{}, fmt.Errorf("convert bits: %w", err)
	}
	if len(raw) < 1+credentialSize {
		return Shelley{}, fmt.Errorf("address too short: %d bytes", len(raw))
	}
	a := Shelley{Header: raw[0], Payload: raw[1:]}
	if want := hrpFor(a.Network()); hrp != want && a.Type() < typeStakeKey {
		return Shelley{}, fmt.Errorf("prefix %q does not match network %d", hrp, a.Network())
	}
	return a, nil
}

// Encode renders an address as bech32.
func Encode(a Shelley) (model.Address, error) {
	data, err := bech32.ConvertBits(a.Bytes(), 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("convert bits: %w", err)
	}
	s, err := bech32.Encode(hrpFor(a.Network()), data)
	if err != nil {
		return "", fmt.Errorf("bech32 encode: %w", err)
	}
	return model.Address(s), nil
}

// IdentityHash derives the payment key hash of addr.
func IdentityHash(addr model.Address) (model.IdentityHash, error) {
	a, err := Decode(addr)
	if err != nil {
		return model.IdentityHash{}, err
	}
	cred, isScript, err := a.PaymentCredential()
	if err != nil {
		return model.IdentityHash{}, err
	}
	if isScript {
		return model.IdentityHash{}, ErrScriptCredential
	}
	return model.IdentityHashFromBytes(cred)
}

// Bytes returns the raw bytes of a bech32 address.
func Bytes(addr model.Address) ([]byte, error) {
	a, err := Decode(addr)
	if err != nil {
		return nil, err
	}
	return a.Bytes(), nil
}

// PlutusV3 is the language tag prefixed to script bytes before hashing.
const PlutusV3 byte = 0x03

// ScriptHash hashes serialized script bytes for the given language tag.
func ScriptHash(lang byte, script []byte) (model.IdentityHash, error) {
	h, err := blake2b.New(credentialSize, nil)
	if err != nil {
		return model.IdentityHash{}, err
	}
	h.Write([]byte{lang})
	h.Write(script)
	return model.IdentityHashFromBytes(h.Sum(nil))
}

// ScriptAddress returns the enterprise address locked by the script hash.
func ScriptAddress(hash model.IdentityHash, network NetworkID) (model.Address, error) {
	return Encode(Shelley{Header: typeEnterpriseScript<<4 | byte(network), Payload: hash[:]})
}

// KeyAddress returns the enterprise address of a payment key hash.
func KeyAddress(hash model.IdentityHash, network NetworkID) (model.Address, error) {
	return Encode(Shelley{Header: typeEnterpriseKey<<4 | byte(network), Payload: hash[:]})
}

func hrpFor(network NetworkID) string {
	if network == Mainnet {
		return hrpMainnet
	}
	return hrpTestnet
}
