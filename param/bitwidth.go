package param

import (
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Sunscreen-tech/spf-runner/errors"
)

// BitWidth is a validated operand width. The only legal values are 8, 16, 32
// and 64 bits; use Width to construct one from untrusted input.
type BitWidth uint8

const (
	Width8  BitWidth = 8
	Width16 BitWidth = 16
	Width32 BitWidth = 32
	Width64 BitWidth = 64
)

// Widths lists every valid width in ascending order.
var Widths = []BitWidth{Width8, Width16, Width32, Width64}

// Width validates v against the closed width set
func Width(v uint32) (BitWidth, error) {
	switch v {
	case 8, 16, 32, 64:
		return BitWidth(v), nil
	}
	return 0, errors.InvalidBitWidth(v)
}

// Bits returns the width in bits
func (w BitWidth) Bits() uint32 {
	return uint32(w)
}

// ByteWidth returns the width in bytes
func (w BitWidth) ByteWidth() uint32 {
	return uint32(w) / 8
}

// MaxUnsigned returns the largest unsigned value representable at this width
func (w BitWidth) MaxUnsigned() uint64 {
	if w == Width64 {
		return ^uint64(0)
	}
	return (uint64(1) << w.Bits()) - 1
}

// SignedToUnsigned reinterprets v as an unsigned value of this width by
// truncating to the width's two's-complement bit pattern
func (w BitWidth) SignedToUnsigned(v int64) uint64 {
	return uint64(v) & w.MaxUnsigned()
}

// UnsignedToSigned reinterprets the low bits of v as a signed two's-complement
// integer of this width
func (w BitWidth) UnsignedToSigned(v uint64) int64 {
	shift := 64 - w.Bits()
	return int64(v<<shift) >> shift
}

func (w BitWidth) String() string {
	return "u" + strconv.Itoa(int(w))
}

var (
	_ msgpack.CustomEncoder = BitWidth(0)
	_ msgpack.CustomDecoder = (*BitWidth)(nil)
)

// EncodeMsgpack writes the width as its numeric bit count
func (w BitWidth) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.EncodeUint8(uint8(w))
}

// DecodeMsgpack reads a numeric bit count and validates it
func (w *BitWidth) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeUint32()
	if err != nil {
		return err
	}
	width, err := Width(v)
	if err != nil {
		return err
	}
	*w = width
	return nil
}
