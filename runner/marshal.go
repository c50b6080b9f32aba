package runner

import (
	"fmt"
	"math"

	spfrunner "github.com/Sunscreen-tech/spf-runner"
	"github.com/Sunscreen-tech/spf-runner/errors"
	"github.com/Sunscreen-tech/spf-runner/gas"
	"github.com/Sunscreen-tech/spf-runner/param"
)

// outputBuffer records a declared result region: where it starts, the element
// width, and how many elements the program will store there. Descriptors are
// consumed once by collect after execution and then discarded.
type outputBuffer struct {
	handle spfrunner.Handle
	width  param.BitWidth
	count  uint32
}

// marshaler folds a parameter list into engine-ready state: the argument
// list, the declared output buffers, and the total declared output bytes,
// all append-only and in parameter order.
type marshaler struct {
	eng     spfrunner.Engine
	mem     spfrunner.Memory
	tracker *gas.Tracker

	args        []spfrunner.Arg
	outputs     []outputBuffer
	outputBytes uint64
}

// marshal converts the decoded parameter list into engine arguments,
// allocating and populating engine memory as each variant requires. The
// fold is strictly sequential since later allocations land after earlier
// ones in the same memory space.
func marshal(eng spfrunner.Engine, mem spfrunner.Memory, tracker *gas.Tracker, params param.List) (*marshaler, error) {
	m := &marshaler{eng: eng, mem: mem, tracker: tracker}
	for i, p := range params {
		if err := m.add(i, p); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *marshaler) add(idx int, p param.Parameter) error {
	switch v := p.(type) {
	case param.Ciphertext:
		return m.addCiphertext(idx, v)
	case param.CiphertextArray:
		return m.addCiphertextArray(idx, v)
	case param.OutputCiphertextArray:
		return m.addOutputArray(idx, v)
	case param.Plaintext:
		return m.addPlaintext(idx, v)
	case param.PlaintextArray:
		return m.addPlaintextArray(idx, v)
	default:
		return fmt.Errorf("unhandled parameter variant %T", p)
	}
}

// addCiphertext charges the unpack cost, unpacks the wire ciphertext into
// its computable form and appends the result directly as an argument.
func (m *marshaler) addCiphertext(idx int, v param.Ciphertext) error {
	m.tracker.Charge(gas.UnpackCost(v.Width), gas.LabelUnpack)
	w, err := m.eng.Unpack(v)
	if err != nil {
		return errors.UnpackFailed(idx, err)
	}
	m.args = append(m.args, w)
	return nil
}

// addCiphertextArray unpacks every element, validating each against the
// first element's width, then allocates one contiguous region and writes the
// elements at consecutive offsets. The empty check runs before any engine
// traffic. A mismatching element is still charged and unpacked before the
// width check rejects it.
func (m *marshaler) addCiphertextArray(idx int, v param.CiphertextArray) error {
	if len(v.Values) == 0 {
		return errors.EmptyArray(idx)
	}

	width := v.Values[0].Width
	words := make([]spfrunner.Word, 0, len(v.Values))
	for j, ct := range v.Values {
		m.tracker.Charge(gas.UnpackCost(ct.Width), gas.LabelUnpack)
		w, err := m.eng.Unpack(ct)
		if err != nil {
			return errors.UnpackFailed(idx, err)
		}
		if ct.Width != width {
			return errors.InconsistentBitWidth(idx, j, width.Bits(), ct.Width.Bits())
		}
		words = append(words, w)
	}

	base, _, err := m.allocate(uint32(len(words)), width)
	if err != nil {
		return err
	}
	for j, w := range words {
		if err := m.writeAt(base, uint32(j), w); err != nil {
			return err
		}
	}
	m.args = append(m.args, base)
	return nil
}

// addOutputArray allocates the declared result region and records its
// descriptor. No gas is charged here; packing is charged once after
// collection.
func (m *marshaler) addOutputArray(_ int, v param.OutputCiphertextArray) error {
	base, size, err := m.allocate(v.Count, v.Width)
	if err != nil {
		return err
	}
	m.args = append(m.args, base)
	m.outputs = append(m.outputs, outputBuffer{handle: base, width: v.Width, count: v.Count})
	m.outputBytes += size
	return nil
}

// addPlaintext bound-checks the scalar and appends it directly as an
// argument. No allocation, no gas.
func (m *marshaler) addPlaintext(idx int, v param.Plaintext) error {
	if v.Value > v.Width.MaxUnsigned() {
		return errors.ValueExceedsBitWidth(idx, v.Value, v.Width.Bits(), v.Width.MaxUnsigned())
	}
	m.args = append(m.args, spfrunner.Word{Width: v.Width, Value: v.Value})
	return nil
}

// addPlaintextArray allocates the region first, then bound-checks and writes
// each element at its offset.
func (m *marshaler) addPlaintextArray(idx int, v param.PlaintextArray) error {
	base, _, err := m.allocate(uint32(len(v.Values)), v.Width)
	if err != nil {
		return err
	}

	max := v.Width.MaxUnsigned()
	for j, val := range v.Values {
		if val > max {
			return errors.ValueExceedsBitWidth(idx, val, v.Width.Bits(), max)
		}
		if err := m.writeAt(base, uint32(j), spfrunner.Word{Width: v.Width, Value: val}); err != nil {
			return err
		}
	}
	m.args = append(m.args, base)
	return nil
}

// allocate reserves count elements of the given width as one contiguous
// region and returns its handle and byte size.
func (m *marshaler) allocate(count uint32, width param.BitWidth) (spfrunner.Handle, uint64, error) {
	size := uint64(count) * uint64(width.ByteWidth())
	if size > math.MaxUint32 {
		return 0, 0, errors.New(errors.PhaseEngine, errors.KindAllocation).
			Value(size).
			Detail("region of %d bytes exceeds the engine address space", size).
			Build()
	}
	h, err := m.mem.Alloc(uint32(size))
	if err != nil {
		return 0, 0, errors.AllocationFailed(uint32(size), err)
	}
	return h, size, nil
}

// writeAt stores w as element j of the region at base.
func (m *marshaler) writeAt(base spfrunner.Handle, j uint32, w spfrunner.Word) error {
	off := j * w.Width.ByteWidth()
	h, err := m.mem.Offset(base, off)
	if err != nil {
		return errors.OffsetFailed(uint32(base), off, err)
	}
	if err := m.mem.WriteWord(h, w); err != nil {
		return errors.MemoryAccessFailed("write word", uint32(h), err)
	}
	return nil
}
