package keys

import (
	"fmt"
	"os"

	"github.com/tuneinsight/lattigo/v6/core/rlwe"
	"github.com/tuneinsight/lattigo/v6/schemes/bgv"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Sunscreen-tech/spf-runner/errors"
)

// envelopeVersion tracks the key file layout.
const envelopeVersion = 1

// defaultParamsLiteral is the fixed parameter set every context derives
// from: BGV at 128-bit security with a plaintext modulus of 2^16+1, which
// is NTT-friendly for this ring degree and holds one 16-bit operand limb
// per slot.
func defaultParamsLiteral() bgv.ParametersLiteral {
	return bgv.ParametersLiteral{
		LogN:             14,
		LogQ:             []int{56, 55, 55, 54, 54, 54},
		LogP:             []int{55, 55},
		PlaintextModulus: 0x10001,
	}
}

// Key is the compute key material for one context: the scheme parameters,
// the secret key and the relinearization key.
type Key struct {
	Params bgv.Parameters
	Secret *rlwe.SecretKey
	Relin  *rlwe.RelinearizationKey
}

// Generate creates fresh key material under the default parameter set.
func Generate() (*Key, error) {
	params, err := bgv.NewParametersFromLiteral(defaultParamsLiteral())
	if err != nil {
		return nil, fmt.Errorf("derive parameters: %w", err)
	}
	kgen := bgv.NewKeyGenerator(params)
	sk := kgen.GenSecretKeyNew()
	return &Key{
		Params: params,
		Secret: sk,
		Relin:  kgen.GenRelinearizationKeyNew(sk),
	}, nil
}

// envelope is the serialized key file layout.
type envelope struct {
	Version uint32 `msgpack:"version"`
	Params  []byte `msgpack:"params"`
	Secret  []byte `msgpack:"secretKey"`
	Relin   []byte `msgpack:"relinKey"`
}

// Save writes the key envelope to path, readable only by the owner.
func (k *Key) Save(path string) error {
	paramsBytes, err := k.Params.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	secretBytes, err := k.Secret.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal secret key: %w", err)
	}
	relinBytes, err := k.Relin.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal relinearization key: %w", err)
	}
	data, err := msgpack.Marshal(envelope{
		Version: envelopeVersion,
		Params:  paramsBytes,
		Secret:  secretBytes,
		Relin:   relinBytes,
	})
	if err != nil {
		return fmt.Errorf("marshal key envelope: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write key file: %w", err)
	}
	return nil
}

// Load reads a key envelope written by Save and rebuilds the key material.
func Load(path string) (*Key, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.KeyLoadFailed(path, err)
	}
	k, err := decode(data)
	if err != nil {
		return nil, errors.KeyLoadFailed(path, err)
	}
	return k, nil
}

func decode(data []byte) (*Key, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode key envelope: %w", err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("key envelope version %d, want %d", env.Version, envelopeVersion)
	}

	var params bgv.Parameters
	if err := params.UnmarshalBinary(env.Params); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	sk := new(rlwe.SecretKey)
	if err := sk.UnmarshalBinary(env.Secret); err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	rlk := new(rlwe.RelinearizationKey)
	if err := rlk.UnmarshalBinary(env.Relin); err != nil {
		return nil, fmt.Errorf("decode relinearization key: %w", err)
	}
	return &Key{Params: params, Secret: sk, Relin: rlk}, nil
}
