// Package plutus encodes and decodes the subset of Plutus data used by escrow datums and redeemers.
package plutus

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// CBOR major types.
const (
	MajorUnsigned byte = 0
	MajorNegative byte = 1
	MajorBytes    byte = 2
	MajorArray    byte = 4
	MajorTag      byte = 6
)

const (
	compactTagBase     = 121
	compactTagMax      = 127
	extendedTagBase    = 1280
	extendedTagMax     = 1400
	generalConstrTag   = 102
	compactIndexLimit  = 7
	extendedIndexLimit = 128

	bytesChunkSize = 64
)

// ErrNotConstr is returned when the data is not a constructor application.
var ErrNotConstr = errors.New("data is not a constructor")

// Constr is a constructor application with undecoded fields.
type Constr struct {
	Index  uint64
	Fields []cbor.RawMessage
}

// Bytes wraps a byte string field so it is chunked the way the ledger expects.
type Bytes []byte

// Int is an integer field.
type Int int64

// MajorType returns the CBOR major type of the first data item in raw.
func MajorType(raw []byte) (byte, error) {
	if len(raw) == 0 {
		return 0, errors.New("empty data item")
	}
	return raw[0] >> 5, nil
}

// EncodeConstr encodes a constructor application. Fields must be Int, Bytes or
// pre-encoded cbor.RawMessage. Non-empty field lists use indefinite-length arrays.
func EncodeConstr(index uint64, fields ...any) ([]byte, error) {
	var list bytes.Buffer
	enc := cbor.NewEncoder(&list)
	if len(fields) == 0 {
		if err := enc.Encode([]any{}); err != nil {
			return nil, err
		}
	} else {
		if err := enc.StartIndefiniteArray(); err != nil {
			return nil, err
		}
		for i, f := range fields {
			if err := encodeField(enc, f); err != nil {
				return nil, fmt.Errorf("field %d: %w", i, err)
			}
		}
		if err := enc.EndIndefinite(); err != nil {
			return nil, err
		}
	}

	switch {
	case index < compactIndexLimit:
		return cbor.Marshal(cbor.RawTag{Number: compactTagBase + index, Content: list.Bytes()})
	case index < extendedIndexLimit:
		return cbor.Marshal(cbor.RawTag{Number: extendedTagBase + index - compactIndexLimit, Content: list.Bytes()})
	default:
		return cbor.Marshal(cbor.Tag{Number: generalConstrTag, Content: []any{index, cbor.RawMessage(list.Bytes())}})
	}
}

func encodeField(enc *cbor.Encoder, f any) error {
	switch v := f.(type) {
	case Int:
		return enc.Encode(int64(v))
	case Bytes:
		if len(v) <= bytesChunkSize {
			return enc.Encode([]byte(v))
		}
		if err := enc.StartIndefiniteByteString(); err != nil {
			return err
		}
		for start := 0; start < len(v); start += bytesChunkSize {
			end := min(start+bytesChunkSize, len(v))
			if err := enc.Encode([]byte(v[start:end])); err != nil {
				return err
			}
		}
		return enc.EndIndefinite()
	case cbor.RawMessage:
		return enc.Encode(v)
	default:
		return fmt.Errorf("unsupported field type %T", f)
	}
}

// DecodeConstr decodes a constructor application, accepting definite and indefinite field lists.
func DecodeConstr(data []byte) (Constr, error) {
	major, err := MajorType(data)
	if err != nil {
		return Constr{}, err
	}
	if major != MajorTag {
		return Constr{}, ErrNotConstr
	}
	var tag cbor.RawTag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return Constr{}, fmt.Errorf("decode tag: %w", err)
	}

	var (
		index   uint64
		content = []byte(tag.Content)
	)
	switch n := tag.Number; {
	case n >= compactTagBase && n <= compactTagMax:
		index = n - compactTagBase
	case n >= extendedTagBase && n <= extendedTagMax:
		index = n - extendedTagBase + compactIndexLimit
	case n == generalConstrTag:
		var general []cbor.RawMessage
		if err := cbor.Unmarshal(content, &general); err != nil || len(general) != 2 {
			return Constr{}, fmt.Errorf("%w: malformed general constructor", ErrNotConstr)
		}
		if err := cbor.Unmarshal(general[0], &index); err != nil {
			return Constr{}, fmt.Errorf("%w: constructor index: %v", ErrNotConstr, err)
		}
		content = general[1]
	default:
		return Constr{}, fmt.Errorf("%w: tag %d", ErrNotConstr, n)
	}

	if major, err := MajorType(content); err != nil || major != MajorArray {
		return Constr{}, fmt.Errorf("%w: fields are not a list", ErrNotConstr)
	}
	var fields []cbor.RawMessage
	if err := cbor.Unmarshal(content, &fields); err != nil {
		return Constr{}, fmt.Errorf("decode fields: %w", err)
	}
	return Constr{Index: index, Fields: fields}, nil
}

// DecodeInt decodes an integer field.
func DecodeInt(raw cbor.RawMessage) (int64, error) {
	major, err := MajorType(raw)
	if err != nil {
		return 0, err
	}
	if major != MajorUnsigned && major != MajorNegative {
		return 0, fmt.Errorf("expected integer, got major type %d", major)
	}
	var v int64
	if err := cbor.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// DecodeBytes decodes a byte string field, joining chunks.
func DecodeBytes(raw cbor.RawMessage) ([]byte, error) {
	major, err := MajorType(raw)
	if err != nil {
		return nil, err
	}
	if major != MajorBytes {
		return nil, fmt.Errorf("expected byte string, got major type %d", major)
	}
	var v []byte
	if err := cbor.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Unit is the constructor 0 with no fields, used as the empty redeemer.
func Unit() []byte {
	return []byte{0xd8, 0x79, 0x80}
}
