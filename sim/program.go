package sim

import (
	"context"
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"

	spfrunner "github.com/Sunscreen-tech/spf-runner"
	"github.com/Sunscreen-tech/spf-runner/param"
)

// Allocator export names probed on loaded programs, most specific first.
// The export must be (i32) -> i32.
var allocatorExports = []string{"spf_alloc", "alloc", "allocate", "malloc"}

func probeAllocator(mod api.Module) api.Function {
	for _, name := range allocatorExports {
		fn := mod.ExportedFunction(name)
		if fn == nil {
			continue
		}
		def := fn.Definition()
		if len(def.ParamTypes()) == 1 && def.ParamTypes()[0] == api.ValueTypeI32 &&
			len(def.ResultTypes()) == 1 && def.ResultTypes()[0] == api.ValueTypeI32 {
			return fn
		}
	}
	return nil
}

// Program is one instantiated image: its module, exported entry points and
// linear memory.
type Program struct {
	mod api.Module
	mem *Memory
}

var _ spfrunner.Program = (*Program)(nil)

// Function resolves an exported entry point by name.
func (p *Program) Function(name string) (spfrunner.Function, error) {
	fn := p.mod.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("no exported function %q", name)
	}
	return &function{name: name, fn: fn}, nil
}

// Memory returns the program's linear memory.
func (p *Program) Memory() spfrunner.Memory {
	return p.mem
}

// Exports lists the program's exported functions with a rendering of each
// parameter signature, for diagnostics and tooling.
func (p *Program) Exports() map[string]string {
	defs := p.mod.ExportedFunctionDefinitions()
	sigs := make(map[string]string, len(defs))
	for name, def := range defs {
		parts := make([]string, len(def.ParamTypes()))
		for i, t := range def.ParamTypes() {
			parts[i] = api.ValueTypeName(t)
		}
		sigs[name] = "(" + strings.Join(parts, ", ") + ")"
	}
	return sigs
}

// Close releases the program instance.
func (p *Program) Close(ctx context.Context) error {
	return p.mod.Close(ctx)
}

type function struct {
	name string
	fn   api.Function
}

func (f *function) Name() string {
	return f.name
}

const pageSize = 65536

// Memory adapts a program's linear memory to the engine memory contract.
// Handles are linear addresses. Allocation goes through the guest's
// exported allocator when it has one; otherwise the host appends whole
// pages and bump-allocates from them, which never collides with guest data
// because marshaling finishes before the program runs.
type Memory struct {
	mem     api.Memory
	allocFn api.Function

	next uint32
	end  uint32
}

var _ spfrunner.Memory = (*Memory)(nil)

// Alloc reserves size bytes and returns the region's address.
func (m *Memory) Alloc(size uint32) (spfrunner.Handle, error) {
	if m.allocFn != nil {
		res, err := m.allocFn.Call(context.Background(), uint64(size))
		if err != nil {
			return 0, fmt.Errorf("guest allocator: %w", err)
		}
		return spfrunner.Handle(uint32(res[0])), nil
	}
	return m.bump(size)
}

func (m *Memory) bump(size uint32) (spfrunner.Handle, error) {
	if m.end == 0 {
		prev, ok := m.mem.Grow(1)
		if !ok {
			return 0, fmt.Errorf("grow memory by 1 page")
		}
		m.next = prev * pageSize
		m.end = m.next + pageSize
		if m.next == 0 {
			// Never hand out address zero.
			m.next = 8
		}
	}

	// Keep words naturally aligned.
	m.next = (m.next + 7) &^ 7
	needed := uint64(m.next) + uint64(size)
	if needed > 1<<32-1 {
		return 0, fmt.Errorf("allocation of %d bytes exhausts the address space", size)
	}
	if uint32(needed) > m.end {
		pages := (uint32(needed) - m.end + pageSize - 1) / pageSize
		if _, ok := m.mem.Grow(pages); !ok {
			return 0, fmt.Errorf("grow memory by %d pages", pages)
		}
		m.end += pages * pageSize
	}

	h := spfrunner.Handle(m.next)
	m.next += size
	return h, nil
}

// Offset computes the address at byteOffset past h.
func (m *Memory) Offset(h spfrunner.Handle, byteOffset uint32) (spfrunner.Handle, error) {
	addr := uint64(h) + uint64(byteOffset)
	if addr > 1<<32-1 {
		return 0, fmt.Errorf("offset %d from %#x overflows the address space", byteOffset, uint32(h))
	}
	return spfrunner.Handle(addr), nil
}

// WriteWord stores w at h in little-endian form.
func (m *Memory) WriteWord(h spfrunner.Handle, w spfrunner.Word) error {
	var ok bool
	switch w.Width {
	case param.Width8:
		ok = m.mem.WriteByte(uint32(h), byte(w.Value))
	case param.Width16:
		ok = m.mem.WriteUint16Le(uint32(h), uint16(w.Value))
	case param.Width32:
		ok = m.mem.WriteUint32Le(uint32(h), uint32(w.Value))
	case param.Width64:
		ok = m.mem.WriteUint64Le(uint32(h), w.Value)
	}
	if !ok {
		return fmt.Errorf("write of %d bytes at %#x is out of bounds", w.Width.ByteWidth(), uint32(h))
	}
	return nil
}

// ReadWord loads a word of the given width from h.
func (m *Memory) ReadWord(h spfrunner.Handle, width param.BitWidth) (spfrunner.Word, error) {
	var (
		v  uint64
		ok bool
	)
	switch width {
	case param.Width8:
		var b byte
		b, ok = m.mem.ReadByte(uint32(h))
		v = uint64(b)
	case param.Width16:
		var x uint16
		x, ok = m.mem.ReadUint16Le(uint32(h))
		v = uint64(x)
	case param.Width32:
		var x uint32
		x, ok = m.mem.ReadUint32Le(uint32(h))
		v = uint64(x)
	case param.Width64:
		v, ok = m.mem.ReadUint64Le(uint32(h))
	}
	if !ok {
		return spfrunner.Word{}, fmt.Errorf("read of %d bytes at %#x is out of bounds", width.ByteWidth(), uint32(h))
	}
	return spfrunner.Word{Width: width, Value: v}, nil
}
