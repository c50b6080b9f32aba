package wire

import (
	"bytes"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Sunscreen-tech/spf-runner/errors"
	"github.com/Sunscreen-tech/spf-runner/param"
)

// Magic is the 4-byte ASCII tag identifying a payload kind.
type Magic [4]byte

var (
	// ParamsMagic tags parameter list envelopes.
	ParamsMagic = Magic{'S', 'P', 'F', 'P'}
	// OutputsMagic tags output list envelopes.
	OutputsMagic = Magic{'S', 'P', 'F', 'O'}
)

const (
	// HeaderSize is the fixed envelope header length: magic plus version.
	HeaderSize = 8

	// ParamsVersion is the current parameter envelope version.
	ParamsVersion uint32 = 1
	// OutputsVersion is the current output envelope version.
	OutputsVersion uint32 = 1
)

func (m Magic) String() string {
	return string(m[:])
}

// PeekVersion validates the header length and magic, then returns the
// big-endian version field without touching the payload. Callers use it to
// fast-fail on a version mismatch before decoding a potentially large
// payload.
func PeekVersion(data []byte, magic Magic) (uint32, error) {
	if len(data) < HeaderSize {
		return 0, errors.TooShort(len(data))
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return 0, errors.InvalidMagic(data[:4], magic.String())
	}
	return binary.BigEndian.Uint32(data[4:HeaderSize]), nil
}

// decode validates the full header, requires exact version equality, then
// deserializes the remaining bytes into payload.
func decode(data []byte, magic Magic, version uint32, payload any) error {
	got, err := PeekVersion(data, magic)
	if err != nil {
		return err
	}
	if got != version {
		return errors.UnsupportedVersion(got, version)
	}
	if err := msgpack.Unmarshal(data[HeaderSize:], payload); err != nil {
		return errors.PayloadDecode(err)
	}
	return nil
}

// encode writes the header followed by the payload's MessagePack encoding.
func encode(magic Magic, version uint32, payload any) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], version)
	buf.Write(v[:])
	if err := msgpack.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, errors.PayloadEncode(err)
	}
	return buf.Bytes(), nil
}

// DecodeParams decodes a parameter list envelope
func DecodeParams(data []byte) (param.List, error) {
	var list param.List
	if err := decode(data, ParamsMagic, ParamsVersion, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// EncodeParams encodes a parameter list envelope
func EncodeParams(list param.List) ([]byte, error) {
	return encode(ParamsMagic, ParamsVersion, list)
}

// DecodeOutputs decodes an output list envelope
func DecodeOutputs(data []byte) ([]param.Ciphertext, error) {
	var outputs []param.Ciphertext
	if err := decode(data, OutputsMagic, OutputsVersion, &outputs); err != nil {
		return nil, err
	}
	return outputs, nil
}

// EncodeOutputs encodes an output list envelope
func EncodeOutputs(outputs []param.Ciphertext) ([]byte, error) {
	return encode(OutputsMagic, OutputsVersion, outputs)
}
