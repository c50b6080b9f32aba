package keys

import (
	"fmt"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"

	"github.com/Sunscreen-tech/spf-runner/param"
)

// limbBits is how much of an operand one plaintext slot carries. The
// plaintext modulus 2^16+1 holds any 16-bit limb exactly.
const limbBits = 16

func limbCount(w param.BitWidth) int {
	return int((w.Bits() + limbBits - 1) / limbBits)
}

// Cipher encrypts and decrypts operands under one key. Operands are split
// into 16-bit limbs, least significant first, one limb per slot.
type Cipher struct {
	params    bgv.Parameters
	encoder   *bgv.Encoder
	encryptor *rlwe.Encryptor
	decryptor *rlwe.Decryptor
}

// Cipher derives the encryption context from the key material.
func (k *Key) Cipher() *Cipher {
	return &Cipher{
		params:    k.Params,
		encoder:   bgv.NewEncoder(k.Params),
		encryptor: bgv.NewEncryptor(k.Params, k.Secret),
		decryptor: bgv.NewDecryptor(k.Params, k.Secret),
	}
}

// Encrypt produces the wire ciphertext for value at the given width.
func (c *Cipher) Encrypt(width param.BitWidth, value uint64) (param.Ciphertext, error) {
	if value > width.MaxUnsigned() {
		return param.Ciphertext{}, fmt.Errorf("value %d does not fit in %s", value, width)
	}

	limbs := make([]uint64, limbCount(width))
	v := value
	for i := range limbs {
		limbs[i] = v & (1<<limbBits - 1)
		v >>= limbBits
	}

	pt := bgv.NewPlaintext(c.params, c.params.MaxLevel())
	if err := c.encoder.Encode(limbs, pt); err != nil {
		return param.Ciphertext{}, fmt.Errorf("encode limbs: %w", err)
	}
	ct, err := c.encryptor.EncryptNew(pt)
	if err != nil {
		return param.Ciphertext{}, fmt.Errorf("encrypt: %w", err)
	}
	data, err := ct.MarshalBinary()
	if err != nil {
		return param.Ciphertext{}, fmt.Errorf("marshal ciphertext: %w", err)
	}
	return param.Ciphertext{Width: width, Data: data}, nil
}

// Decrypt recovers the operand value carried by ct at its declared width.
func (c *Cipher) Decrypt(ct param.Ciphertext) (uint64, error) {
	var inner rlwe.Ciphertext
	if err := inner.UnmarshalBinary(ct.Data); err != nil {
		return 0, fmt.Errorf("unmarshal ciphertext: %w", err)
	}

	pt := c.decryptor.DecryptNew(&inner)
	limbs := make([]uint64, c.params.MaxSlots())
	if err := c.encoder.Decode(pt, limbs); err != nil {
		return 0, fmt.Errorf("decode limbs: %w", err)
	}

	var value uint64
	for i := limbCount(ct.Width) - 1; i >= 0; i-- {
		value = value<<limbBits | limbs[i]&(1<<limbBits-1)
	}
	return value & ct.Width.MaxUnsigned(), nil
}
