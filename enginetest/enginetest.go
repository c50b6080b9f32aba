package enginetest

import (
	"context"
	"encoding/binary"
	"fmt"

	spfrunner "github.com/Sunscreen-tech/spf-runner"
	"github.com/Sunscreen-tech/spf-runner/param"
)

// Engine is a scripted, recording engine double. Ciphertexts are cleartext
// words in little-endian form, program memory is a growable arena, and entry
// points are Go functions registered on the loaded program. Call counters
// record engine traffic so tests can assert what the pipeline did and did
// not do.
type Engine struct {
	// RunGas is reported as the execution cost of every successful run.
	RunGas uint64

	// Error injection; when set the corresponding operation fails with it.
	UnpackErr error
	PackErr   error
	RunErr    error

	UnpackCalls int
	PackCalls   int
	RunCalls    int
}

var _ spfrunner.Engine = (*Engine)(nil)

// New returns an idle engine double.
func New() *Engine {
	return &Engine{}
}

// LoadProgram returns a fresh program with an empty entry point table. The
// image bytes are ignored.
func (e *Engine) LoadProgram(_ context.Context, _ []byte) (spfrunner.Program, error) {
	return NewProgram(), nil
}

// Unpack decodes the little-endian word carried in ct.
func (e *Engine) Unpack(ct param.Ciphertext) (spfrunner.Word, error) {
	e.UnpackCalls++
	if e.UnpackErr != nil {
		return spfrunner.Word{}, e.UnpackErr
	}
	if uint32(len(ct.Data)) < ct.Width.ByteWidth() {
		return spfrunner.Word{}, fmt.Errorf("ciphertext is %d bytes, want %d", len(ct.Data), ct.Width.ByteWidth())
	}
	return spfrunner.Word{Width: ct.Width, Value: getWord(ct.Data, ct.Width)}, nil
}

// Pack encodes w as a little-endian word of its byte width.
func (e *Engine) Pack(w spfrunner.Word) (param.Ciphertext, error) {
	e.PackCalls++
	if e.PackErr != nil {
		return param.Ciphertext{}, e.PackErr
	}
	data := make([]byte, w.Width.ByteWidth())
	putWord(data, w.Width, w.Value)
	return param.Ciphertext{Width: w.Width, Data: data}, nil
}

// Run dispatches to the scripted body registered for fn.
func (e *Engine) Run(_ context.Context, p spfrunner.Program, fn spfrunner.Function, args []spfrunner.Arg, _ spfrunner.RunOptions) (uint64, error) {
	e.RunCalls++
	if e.RunErr != nil {
		return 0, e.RunErr
	}
	prog, ok := p.(*Program)
	if !ok {
		return 0, fmt.Errorf("program %T was not loaded by this engine", p)
	}
	body, ok := prog.bodies[fn.Name()]
	if !ok {
		return 0, fmt.Errorf("function %q has no scripted body", fn.Name())
	}
	if err := body(prog.mem, args); err != nil {
		return 0, err
	}
	return e.RunGas, nil
}

// Body is a scripted entry point. It receives the program memory and the
// marshaled argument list.
type Body func(mem *Memory, args []spfrunner.Arg) error

// Program is the double's loaded-image form.
type Program struct {
	mem    *Memory
	bodies map[string]Body
}

var _ spfrunner.Program = (*Program)(nil)

// NewProgram returns a program with fresh memory and no entry points.
func NewProgram() *Program {
	return &Program{mem: NewMemory(), bodies: map[string]Body{}}
}

// Define registers a scripted body under name.
func (p *Program) Define(name string, body Body) {
	p.bodies[name] = body
}

// Function resolves a registered entry point.
func (p *Program) Function(name string) (spfrunner.Function, error) {
	if _, ok := p.bodies[name]; !ok {
		return nil, fmt.Errorf("no function %q", name)
	}
	return funcName(name), nil
}

// Memory returns the program's arena.
func (p *Program) Memory() spfrunner.Memory {
	return p.mem
}

// Mem returns the concrete arena for direct inspection.
func (p *Program) Mem() *Memory {
	return p.mem
}

type funcName string

func (f funcName) Name() string {
	return string(f)
}

// arenaBase keeps valid handles away from zero so a forgotten handle is
// caught by the bounds checks instead of silently aliasing the first
// allocation.
const arenaBase = 0x1000

// Memory is a bump-allocated byte arena with recorded traffic.
type Memory struct {
	buf []byte

	// AllocErr makes the next Alloc fail when set.
	AllocErr error

	AllocCalls int
	WriteCalls int
	ReadCalls  int
}

var _ spfrunner.Memory = (*Memory)(nil)

// NewMemory returns an empty arena.
func NewMemory() *Memory {
	return &Memory{}
}

// Alloc reserves size zeroed bytes at the end of the arena.
func (m *Memory) Alloc(size uint32) (spfrunner.Handle, error) {
	m.AllocCalls++
	if m.AllocErr != nil {
		return 0, m.AllocErr
	}
	h := spfrunner.Handle(arenaBase + len(m.buf))
	m.buf = append(m.buf, make([]byte, size)...)
	return h, nil
}

// Offset computes h+byteOffset, rejecting addresses past the arena end.
func (m *Memory) Offset(h spfrunner.Handle, byteOffset uint32) (spfrunner.Handle, error) {
	idx, err := m.index(h)
	if err != nil {
		return 0, err
	}
	if uint64(idx)+uint64(byteOffset) > uint64(len(m.buf)) {
		return 0, fmt.Errorf("offset %d from %#x is out of bounds", byteOffset, uint32(h))
	}
	return h + spfrunner.Handle(byteOffset), nil
}

// WriteWord stores w at h.
func (m *Memory) WriteWord(h spfrunner.Handle, w spfrunner.Word) error {
	m.WriteCalls++
	b, err := m.span(h, w.Width)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	putWord(b, w.Width, w.Value)
	return nil
}

// ReadWord loads a value of the given width from h.
func (m *Memory) ReadWord(h spfrunner.Handle, width param.BitWidth) (spfrunner.Word, error) {
	m.ReadCalls++
	b, err := m.span(h, width)
	if err != nil {
		return spfrunner.Word{}, fmt.Errorf("read: %w", err)
	}
	return spfrunner.Word{Width: width, Value: getWord(b, width)}, nil
}

func (m *Memory) index(h spfrunner.Handle) (uint32, error) {
	if h < arenaBase {
		return 0, fmt.Errorf("handle %#x is before the arena base", uint32(h))
	}
	return uint32(h) - arenaBase, nil
}

func (m *Memory) span(h spfrunner.Handle, width param.BitWidth) ([]byte, error) {
	idx, err := m.index(h)
	if err != nil {
		return nil, err
	}
	end := uint64(idx) + uint64(width.ByteWidth())
	if end > uint64(len(m.buf)) {
		return nil, fmt.Errorf("%d bytes at %#x is out of bounds", width.ByteWidth(), uint32(h))
	}
	return m.buf[idx:end], nil
}

func putWord(b []byte, width param.BitWidth, v uint64) {
	switch width {
	case param.Width8:
		b[0] = byte(v)
	case param.Width16:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case param.Width32:
		binary.LittleEndian.PutUint32(b, uint32(v))
	case param.Width64:
		binary.LittleEndian.PutUint64(b, v)
	}
}

func getWord(b []byte, width param.BitWidth) uint64 {
	switch width {
	case param.Width8:
		return uint64(b[0])
	case param.Width16:
		return uint64(binary.LittleEndian.Uint16(b))
	case param.Width32:
		return uint64(binary.LittleEndian.Uint32(b))
	case param.Width64:
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}
