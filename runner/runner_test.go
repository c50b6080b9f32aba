package runner

import (
	"bytes"
	"context"
	"encoding/binary"
	stderrors "errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	spfrunner "github.com/Sunscreen-tech/spf-runner"
	"github.com/Sunscreen-tech/spf-runner/enginetest"
	"github.com/Sunscreen-tech/spf-runner/errors"
	"github.com/Sunscreen-tech/spf-runner/gas"
	"github.com/Sunscreen-tech/spf-runner/param"
)

// fakeCiphertext builds the double's wire form: the low byteWidth bytes of
// value, little endian.
func fakeCiphertext(width param.BitWidth, value uint64) param.Ciphertext {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], value)
	data := make([]byte, width.ByteWidth())
	copy(data, b[:])
	return param.Ciphertext{Width: width, Data: data}
}

func TestRun_AddOne(t *testing.T) {
	eng := enginetest.New()
	eng.RunGas = 1000

	prog := enginetest.NewProgram()
	prog.Define("add_one", func(mem *enginetest.Memory, args []spfrunner.Arg) error {
		in, ok := args[0].(spfrunner.Word)
		if !ok {
			t.Fatalf("args[0] = %T, want Word", args[0])
		}
		out, ok := args[1].(spfrunner.Handle)
		if !ok {
			t.Fatalf("args[1] = %T, want Handle", args[1])
		}
		return mem.WriteWord(out, spfrunner.Word{Width: in.Width, Value: in.Value + 1})
	})

	r := NewWithDefaults(eng, prog)
	res, err := r.Run(context.Background(), "add_one", param.List{
		fakeCiphertext(param.Width16, 41),
		param.OutputCiphertextArray{Width: param.Width16, Count: 1},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(res.Outputs) != 1 {
		t.Fatalf("Run() produced %d outputs, want 1", len(res.Outputs))
	}
	out := res.Outputs[0]
	if out.Width != param.Width16 {
		t.Errorf("output width = %v, want u16", out.Width)
	}
	if got := binary.LittleEndian.Uint16(out.Data); got != 42 {
		t.Errorf("output value = %d, want 42", got)
	}

	// One u16 unpack, the engine-reported run cost, one 2-byte pack.
	want := uint64(56842) + 1000 + 2*320
	if res.GasConsumed != want {
		t.Errorf("GasConsumed = %d, want %d", res.GasConsumed, want)
	}

	if eng.UnpackCalls != 1 || eng.PackCalls != 1 || eng.RunCalls != 1 {
		t.Errorf("engine traffic = %d unpacks, %d packs, %d runs, want 1 each",
			eng.UnpackCalls, eng.PackCalls, eng.RunCalls)
	}
}

func TestRun_EmptyCiphertextArray(t *testing.T) {
	eng := enginetest.New()
	prog := enginetest.NewProgram()
	prog.Define("f", func(*enginetest.Memory, []spfrunner.Arg) error { return nil })

	r := NewWithDefaults(eng, prog)
	_, err := r.Run(context.Background(), "f", param.List{param.CiphertextArray{}})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindEmptyArray}) {
		t.Fatalf("Run() error = %v, want empty_array", err)
	}
	if !strings.Contains(err.Error(), "empty ciphertext array") {
		t.Errorf("error = %v, want empty ciphertext array message", err)
	}

	// The check precedes all engine traffic.
	if eng.UnpackCalls != 0 {
		t.Errorf("UnpackCalls = %d, want 0", eng.UnpackCalls)
	}
	if prog.Mem().AllocCalls != 0 {
		t.Errorf("AllocCalls = %d, want 0", prog.Mem().AllocCalls)
	}
	if eng.RunCalls != 0 {
		t.Errorf("RunCalls = %d, want 0", eng.RunCalls)
	}
}

func TestRun_InconsistentBitWidth(t *testing.T) {
	eng := enginetest.New()
	prog := enginetest.NewProgram()
	prog.Define("f", func(*enginetest.Memory, []spfrunner.Arg) error { return nil })

	r := NewWithDefaults(eng, prog)
	_, err := r.Run(context.Background(), "f", param.List{
		param.CiphertextArray{Values: []param.Ciphertext{
			fakeCiphertext(param.Width16, 1),
			fakeCiphertext(param.Width16, 2),
			fakeCiphertext(param.Width32, 3),
		}},
	})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindInconsistentBitWidth}) {
		t.Fatalf("Run() error = %v, want inconsistent_bit_width", err)
	}

	var e *errors.Error
	if !stderrors.As(err, &e) {
		t.Fatal("error is not structured")
	}
	if e.Expected != uint32(16) {
		t.Errorf("Expected = %v, want 16", e.Expected)
	}
	if e.Got != uint32(32) {
		t.Errorf("Got = %v, want 32", e.Got)
	}
	if !strings.Contains(err.Error(), "elem[2]") {
		t.Errorf("error = %v, want the mismatch reported at index 2", err)
	}
	if !strings.Contains(err.Error(), "inconsistent bit width in ciphertext array, first saw 16 then saw 32") {
		t.Errorf("error = %v, want canonical mismatch message", err)
	}

	// The offending element is still unpacked before the check rejects it,
	// and the region is never allocated.
	if eng.UnpackCalls != 3 {
		t.Errorf("UnpackCalls = %d, want 3", eng.UnpackCalls)
	}
	if prog.Mem().AllocCalls != 0 {
		t.Errorf("AllocCalls = %d, want 0", prog.Mem().AllocCalls)
	}
}

func TestRun_PlaintextExceedsWidth(t *testing.T) {
	eng := enginetest.New()
	prog := enginetest.NewProgram()
	prog.Define("f", func(*enginetest.Memory, []spfrunner.Arg) error { return nil })

	r := NewWithDefaults(eng, prog)
	_, err := r.Run(context.Background(), "f", param.List{
		param.Plaintext{Width: param.Width8, Value: 300},
	})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseMarshal, Kind: errors.KindValueExceedsBitWidth}) {
		t.Fatalf("Run() error = %v, want value_exceeds_bit_width", err)
	}
	if !strings.Contains(err.Error(), "plaintext value 300 exceeds maximum for bit width 8 (max: 255)") {
		t.Errorf("error = %v, want canonical bound message", err)
	}
	if eng.UnpackCalls != 0 || prog.Mem().AllocCalls != 0 {
		t.Errorf("engine traffic = %d unpacks, %d allocs, want none",
			eng.UnpackCalls, prog.Mem().AllocCalls)
	}
}

func TestMarshal_ArgumentShapes(t *testing.T) {
	eng := enginetest.New()
	mem := enginetest.NewMemory()
	tracker := gas.NewTracker(nil)

	m, err := marshal(eng, mem, tracker, param.List{
		fakeCiphertext(param.Width8, 7),
		param.Plaintext{Width: param.Width32, Value: 9},
		param.CiphertextArray{Values: []param.Ciphertext{
			fakeCiphertext(param.Width16, 1),
			fakeCiphertext(param.Width16, 2),
		}},
		param.OutputCiphertextArray{Width: param.Width64, Count: 2},
		param.PlaintextArray{Width: param.Width8, Values: []uint64{3, 4, 5}},
	})
	if err != nil {
		t.Fatalf("marshal() error: %v", err)
	}

	if len(m.args) != 5 {
		t.Fatalf("marshal() produced %d args, want 5", len(m.args))
	}

	// Scalars pass through as direct word arguments.
	if w, ok := m.args[0].(spfrunner.Word); !ok || w.Value != 7 || w.Width != param.Width8 {
		t.Errorf("args[0] = %#v, want u8 word 7", m.args[0])
	}
	if w, ok := m.args[1].(spfrunner.Word); !ok || w.Value != 9 || w.Width != param.Width32 {
		t.Errorf("args[1] = %#v, want u32 word 9", m.args[1])
	}

	// Arrays land contiguously at consecutive element offsets.
	ctBase, ok := m.args[2].(spfrunner.Handle)
	if !ok {
		t.Fatalf("args[2] = %T, want Handle", m.args[2])
	}
	for j, want := range []uint64{1, 2} {
		h, err := mem.Offset(ctBase, uint32(j)*2)
		if err != nil {
			t.Fatalf("Offset() error: %v", err)
		}
		w, err := mem.ReadWord(h, param.Width16)
		if err != nil {
			t.Fatalf("ReadWord() error: %v", err)
		}
		if w.Value != want {
			t.Errorf("ciphertext array element %d = %d, want %d", j, w.Value, want)
		}
	}

	ptBase, ok := m.args[4].(spfrunner.Handle)
	if !ok {
		t.Fatalf("args[4] = %T, want Handle", m.args[4])
	}
	for j, want := range []uint64{3, 4, 5} {
		h, err := mem.Offset(ptBase, uint32(j))
		if err != nil {
			t.Fatalf("Offset() error: %v", err)
		}
		w, err := mem.ReadWord(h, param.Width8)
		if err != nil {
			t.Fatalf("ReadWord() error: %v", err)
		}
		if w.Value != want {
			t.Errorf("plaintext array element %d = %d, want %d", j, w.Value, want)
		}
	}

	// One descriptor for the declared output slot, counted in bytes.
	if len(m.outputs) != 1 {
		t.Fatalf("marshal() recorded %d output buffers, want 1", len(m.outputs))
	}
	buf := m.outputs[0]
	if buf.width != param.Width64 || buf.count != 2 {
		t.Errorf("output buffer = %+v, want u64 x2", buf)
	}
	if m.outputBytes != 16 {
		t.Errorf("outputBytes = %d, want 16", m.outputBytes)
	}

	// One u8 unpack plus two u16 unpacks; plaintexts and output slots are
	// free at this stage.
	want := uint64(56373) + 2*56842
	if got := tracker.Consumed(); got != want {
		t.Errorf("gas = %d, want %d", got, want)
	}
}

func TestRun_MultipleOutputBuffers(t *testing.T) {
	eng := enginetest.New()
	prog := enginetest.NewProgram()
	prog.Define("fill", func(mem *enginetest.Memory, args []spfrunner.Arg) error {
		first := args[0].(spfrunner.Handle)
		second := args[1].(spfrunner.Handle)
		for j, v := range []uint64{1, 2} {
			h, err := mem.Offset(first, uint32(j))
			if err != nil {
				return err
			}
			if err := mem.WriteWord(h, spfrunner.Word{Width: param.Width8, Value: v}); err != nil {
				return err
			}
		}
		return mem.WriteWord(second, spfrunner.Word{Width: param.Width16, Value: 0x0303})
	})

	r := NewWithDefaults(eng, prog)
	res, err := r.Run(context.Background(), "fill", param.List{
		param.OutputCiphertextArray{Width: param.Width8, Count: 2},
		param.OutputCiphertextArray{Width: param.Width16, Count: 1},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := []param.Ciphertext{
		{Width: param.Width8, Data: []byte{1}},
		{Width: param.Width8, Data: []byte{2}},
		{Width: param.Width16, Data: []byte{3, 3}},
	}
	if len(res.Outputs) != len(want) {
		t.Fatalf("Run() produced %d outputs, want %d", len(res.Outputs), len(want))
	}
	for i := range want {
		got := res.Outputs[i]
		if got.Width != want[i].Width || !bytes.Equal(got.Data, want[i].Data) {
			t.Errorf("output %d = %+v, want %+v", i, got, want[i])
		}
	}

	// No unpacks, no engine gas, one pack charge over 2*1+1*2 declared bytes.
	if res.GasConsumed != 4*320 {
		t.Errorf("GasConsumed = %d, want %d", res.GasConsumed, 4*320)
	}
}

func TestRun_GasAccountingAcrossVariants(t *testing.T) {
	eng := enginetest.New()
	eng.RunGas = 7

	prog := enginetest.NewProgram()
	prog.Define("f", func(*enginetest.Memory, []spfrunner.Arg) error { return nil })

	r := NewWithDefaults(eng, prog)
	res, err := r.Run(context.Background(), "f", param.List{
		param.CiphertextArray{Values: []param.Ciphertext{
			fakeCiphertext(param.Width32, 1),
			fakeCiphertext(param.Width32, 2),
		}},
		param.Plaintext{Width: param.Width8, Value: 200},
		fakeCiphertext(param.Width64, 3),
		param.OutputCiphertextArray{Width: param.Width16, Count: 5},
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	// Two u32 unpacks, one u64 unpack, the run cost, 10 declared output
	// bytes packed. Plaintexts charge nothing.
	want := uint64(2*59656) + 76540 + 7 + 10*320
	if res.GasConsumed != want {
		t.Errorf("GasConsumed = %d, want %d", res.GasConsumed, want)
	}
}

func TestRun_ChargesBeforeUnpack(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	eng := enginetest.New()
	eng.UnpackErr = stderrors.New("corrupt blob")

	prog := enginetest.NewProgram()
	prog.Define("f", func(*enginetest.Memory, []spfrunner.Arg) error { return nil })

	r := New(eng, prog, Options{Logger: zap.New(core)})
	_, err := r.Run(context.Background(), "f", param.List{fakeCiphertext(param.Width8, 1)})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseEngine, Kind: errors.KindUnpack}) {
		t.Fatalf("Run() error = %v, want unpack failure", err)
	}

	// The unpack cost is charged before the engine call that then fails.
	found := false
	for _, entry := range logs.All() {
		if entry.Message == "Ciphertext unpacking consumes 56373 gas and the accumulated gas consumption is 56373" {
			found = true
		}
	}
	if !found {
		t.Errorf("unpack charge was not logged before the failure; logs: %v", logMessages(logs))
	}
}

func TestRun_EngineFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(eng *enginetest.Engine, prog *enginetest.Program)
		params   param.List
		wantKind errors.Kind
		wantIn   string
	}{
		{
			name:     "unpack failure",
			setup:    func(eng *enginetest.Engine, _ *enginetest.Program) { eng.UnpackErr = stderrors.New("bad blob") },
			params:   param.List{fakeCiphertext(param.Width16, 1)},
			wantKind: errors.KindUnpack,
			wantIn:   "param[0]",
		},
		{
			name:     "execution failure",
			setup:    func(eng *enginetest.Engine, _ *enginetest.Program) { eng.RunErr = stderrors.New("trap") },
			params:   param.List{},
			wantKind: errors.KindExecution,
			wantIn:   "trap",
		},
		{
			name:     "pack failure",
			setup:    func(eng *enginetest.Engine, _ *enginetest.Program) { eng.PackErr = stderrors.New("no key") },
			params:   param.List{param.OutputCiphertextArray{Width: param.Width8, Count: 1}},
			wantKind: errors.KindPack,
			wantIn:   "output[0]",
		},
		{
			name:     "allocation failure",
			setup:    func(_ *enginetest.Engine, prog *enginetest.Program) { prog.Mem().AllocErr = stderrors.New("oom") },
			params:   param.List{param.OutputCiphertextArray{Width: param.Width64, Count: 4}},
			wantKind: errors.KindAllocation,
			wantIn:   "allocate 32 bytes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := enginetest.New()
			prog := enginetest.NewProgram()
			prog.Define("f", func(*enginetest.Memory, []spfrunner.Arg) error { return nil })
			tt.setup(eng, prog)

			r := NewWithDefaults(eng, prog)
			_, err := r.Run(context.Background(), "f", tt.params)
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseEngine, Kind: tt.wantKind}) {
				t.Fatalf("Run() error = %v, want kind %s", err, tt.wantKind)
			}
			if !strings.Contains(err.Error(), tt.wantIn) {
				t.Errorf("error = %v, want %q in message", err, tt.wantIn)
			}
		})
	}
}

func TestRun_FunctionNotFound(t *testing.T) {
	eng := enginetest.New()
	prog := enginetest.NewProgram()

	r := NewWithDefaults(eng, prog)
	_, err := r.Run(context.Background(), "missing", param.List{})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseEngine, Kind: errors.KindFunctionNotFound}) {
		t.Fatalf("Run() error = %v, want function_not_found", err)
	}
	if !strings.Contains(err.Error(), `function "missing" not found`) {
		t.Errorf("error = %v, want missing function message", err)
	}
	if eng.RunCalls != 0 {
		t.Errorf("RunCalls = %d, want 0", eng.RunCalls)
	}
}

func TestRun_ScriptFailureSurfacesAsExecution(t *testing.T) {
	eng := enginetest.New()
	prog := enginetest.NewProgram()
	prog.Define("boom", func(*enginetest.Memory, []spfrunner.Arg) error {
		return stderrors.New("guest fault")
	})

	r := NewWithDefaults(eng, prog)
	_, err := r.Run(context.Background(), "boom", param.List{})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseEngine, Kind: errors.KindExecution}) {
		t.Fatalf("Run() error = %v, want execution failure", err)
	}
	if !strings.Contains(err.Error(), "guest fault") {
		t.Errorf("error = %v, want wrapped guest fault", err)
	}
}

func logMessages(logs *observer.ObservedLogs) []string {
	var msgs []string
	for _, entry := range logs.All() {
		msgs = append(msgs, entry.Message)
	}
	return msgs
}
