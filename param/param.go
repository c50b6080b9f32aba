package param

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Ciphertext is an encrypted integer in wire form: opaque encrypted bytes
// tagged with the operand width. It doubles as the single-ciphertext
// parameter variant.
type Ciphertext struct {
	Width BitWidth `msgpack:"bitWidth"`
	Data  []byte   `msgpack:"value"`
}

// CiphertextArray is a non-empty encrypted vector. Every element must share
// one width; the marshaler enforces both properties.
type CiphertextArray struct {
	Values []Ciphertext `msgpack:"values"`
}

// OutputCiphertextArray declares a result slot of Count elements at Width.
// It produces no argument value beyond the memory handle backing the slot.
type OutputCiphertextArray struct {
	Width BitWidth `msgpack:"bitWidth"`
	Count uint32   `msgpack:"size"`
}

// Plaintext is a single cleartext scalar bounded by its declared width.
type Plaintext struct {
	Width BitWidth `msgpack:"bitWidth"`
	Value uint64   `msgpack:"value"`
}

// PlaintextArray is a cleartext vector whose elements are bounded by the
// declared width.
type PlaintextArray struct {
	Width  BitWidth `msgpack:"bitWidth"`
	Values []uint64 `msgpack:"values"`
}

// Parameter is one typed argument in a parameter list. The variant set is
// closed: Ciphertext, CiphertextArray, OutputCiphertextArray, Plaintext and
// PlaintextArray. Adding a variant forces an update to every exhaustive
// switch over the set.
type Parameter interface {
	isParameter()
}

func (Ciphertext) isParameter()            {}
func (CiphertextArray) isParameter()       {}
func (OutputCiphertextArray) isParameter() {}
func (Plaintext) isParameter()             {}
func (PlaintextArray) isParameter()        {}

// Variant tags used in the externally tagged payload encoding. Each
// parameter serializes as a single-entry map {tag: body}.
const (
	tagCiphertext            = "Ciphertext"
	tagCiphertextArray       = "CiphertextArray"
	tagOutputCiphertextArray = "OutputCiphertextArray"
	tagPlaintext             = "Plaintext"
	tagPlaintextArray        = "PlaintextArray"
)

// List is an order-significant parameter list with a self-describing
// MessagePack encoding: an array of single-entry {variant: body} maps.
type List []Parameter

var (
	_ msgpack.CustomEncoder = (List)(nil)
	_ msgpack.CustomDecoder = (*List)(nil)
)

// EncodeMsgpack implements the externally tagged list encoding
func (l List) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(len(l)); err != nil {
		return err
	}
	for i, p := range l {
		if err := encodeParameter(enc, p); err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
	}
	return nil
}

// DecodeMsgpack implements the externally tagged list decoding
func (l *List) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	out := make(List, 0, n)
	for i := 0; i < n; i++ {
		p, err := decodeParameter(dec)
		if err != nil {
			return fmt.Errorf("parameter %d: %w", i, err)
		}
		out = append(out, p)
	}
	*l = out
	return nil
}

func encodeParameter(enc *msgpack.Encoder, p Parameter) error {
	var tag string
	switch p.(type) {
	case Ciphertext:
		tag = tagCiphertext
	case CiphertextArray:
		tag = tagCiphertextArray
	case OutputCiphertextArray:
		tag = tagOutputCiphertextArray
	case Plaintext:
		tag = tagPlaintext
	case PlaintextArray:
		tag = tagPlaintextArray
	default:
		return fmt.Errorf("unknown parameter variant %T", p)
	}
	if err := enc.EncodeMapLen(1); err != nil {
		return err
	}
	if err := enc.EncodeString(tag); err != nil {
		return err
	}
	return enc.Encode(p)
}

func decodeParameter(dec *msgpack.Decoder) (Parameter, error) {
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	if n != 1 {
		return nil, fmt.Errorf("parameter object has %d keys, want exactly 1", n)
	}
	tag, err := dec.DecodeString()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagCiphertext:
		var v Ciphertext
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case tagCiphertextArray:
		var v CiphertextArray
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case tagOutputCiphertextArray:
		var v OutputCiphertextArray
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		if v.Count == 0 {
			return nil, fmt.Errorf("output ciphertext array size must be positive")
		}
		return v, nil
	case tagPlaintext:
		var v Plaintext
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	case tagPlaintextArray:
		var v PlaintextArray
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown parameter variant %q", tag)
	}
}
