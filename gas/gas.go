package gas

import (
	"math/bits"

	"go.uber.org/zap"

	"github.com/Sunscreen-tech/spf-runner/param"
)

// Charge labels used by the execution pipeline.
const (
	LabelUnpack = "Ciphertext unpacking"
	LabelRun    = "Program running"
	LabelPack   = "Result ciphertext packing"
)

const (
	unpackBaseCost  = 56280
	unpackScale     = 600
	packCostPerByte = 320
)

// UnpackCost returns the gas cost of unpacking one ciphertext of the given
// width: floor((6^log2(byteWidth)/600 + 1) * 56280), computed exactly in
// integers as (6^k + 600) * 56280 / 600. The byte width is a power of two by
// BitWidth construction, so the log term is always exact.
func UnpackCost(w param.BitWidth) uint64 {
	k := bits.TrailingZeros32(w.ByteWidth())
	pow := uint64(1)
	for i := 0; i < k; i++ {
		pow *= 6
	}
	return (pow + unpackScale) * unpackBaseCost / unpackScale
}

// PackCost returns the gas cost of packing the declared output bytes into
// wire ciphertexts. It is charged once per invocation, from the sizes
// declared during marshaling.
func PackCost(declaredOutputBytes uint64) uint64 {
	return declaredOutputBytes * packCostPerByte
}

// Tracker is a monotonic gas counter. It never gates execution: charges are
// bookkeeping only, reported through the logger and readable at the end of
// an invocation. A Tracker belongs to exactly one invocation and is not safe
// for concurrent use.
type Tracker struct {
	log      *zap.Logger
	consumed uint64
}

// NewTracker returns a zeroed tracker reporting through log. A nil log
// disables reporting.
func NewTracker(log *zap.Logger) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("Initial gas consumption set as 0")
	return &Tracker{log: log}
}

// Charge adds amount to the running total. It never blocks or fails.
func (t *Tracker) Charge(amount uint64, label string) {
	t.consumed += amount
	t.log.Sugar().Infof("%s consumes %d gas and the accumulated gas consumption is %d",
		label, amount, t.consumed)
}

// Consumed returns the running total.
func (t *Tracker) Consumed() uint64 {
	return t.consumed
}
