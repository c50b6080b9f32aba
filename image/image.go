package image

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Sunscreen-tech/spf-runner/image/internal/binary"
)

// Magic and version of the wasm binary format program images use.
const (
	magic   uint32 = 0x6D736100 // "\0asm" little-endian
	version uint32 = 0x01
)

// GasModule and GasName identify the host import a program calls to declare
// execution cost.
const (
	GasModule = "env"
	GasName   = "gas"
)

// Section IDs of the wasm binary format. Inspection decodes type, import,
// function, memory and export; the rest are skipped wholesale.
const (
	sectionCustom    byte = 0
	sectionType      byte = 1
	sectionImport    byte = 2
	sectionFunction  byte = 3
	sectionTable     byte = 4
	sectionMemory    byte = 5
	sectionGlobal    byte = 6
	sectionExport    byte = 7
	sectionStart     byte = 8
	sectionElement   byte = 9
	sectionCode      byte = 10
	sectionData      byte = 11
	sectionDataCount byte = 12
	sectionTag       byte = 13
)

// Import and export descriptor kinds.
const (
	kindFunc   byte = 0
	kindTable  byte = 1
	kindMemory byte = 2
	kindGlobal byte = 3
)

// ValType is a core value type in a function signature.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
	F32 ValType = 0x7D
	F64 ValType = 0x7C
)

func (v ValType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F32:
		return "f32"
	case F64:
		return "f64"
	}
	return fmt.Sprintf("valtype(0x%02x)", byte(v))
}

// Sig is a function signature.
type Sig struct {
	Params  []ValType
	Results []ValType
}

func (s Sig) String() string {
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = p.String()
	}
	out := "(" + strings.Join(params, ", ") + ")"
	if len(s.Results) > 0 {
		results := make([]string, len(s.Results))
		for i, r := range s.Results {
			results[i] = r.String()
		}
		out += " -> " + strings.Join(results, ", ")
	}
	return out
}

// Info describes a program image's callable surface.
type Info struct {
	// Functions maps each exported function name to its signature.
	Functions map[string]Sig

	// HasMemory reports whether the image defines or imports linear memory.
	HasMemory bool

	// MemoryMinPages is the initial size of that memory in 64KiB pages.
	MemoryMinPages uint64

	// MetersGas reports whether the image imports env.gas.
	MetersGas bool
}

// Decoding errors returned by Inspect.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// Inspect decodes the sections of a program image that describe its
// callable surface. Function bodies are neither decoded nor validated;
// the engine does that when it loads the image.
func Inspect(data []byte) (*Info, error) {
	r := binary.NewReader(bytes.NewReader(data))

	m, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if m != magic {
		return nil, ErrInvalidMagic
	}
	v, err := r.ReadU32LE()
	if err != nil {
		return nil, r.WrapError("header", err)
	}
	if v != version {
		return nil, ErrInvalidVersion
	}

	info := &Info{Functions: map[string]Sig{}}
	var (
		types     []Sig    // type section entries
		funcTypes []uint32 // function index space: type index per function, imports first
		lastOrder int
	)

	for {
		id, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, r.WrapError("section header", err)
		}

		// Custom sections can appear anywhere; everything else follows the
		// canonical order.
		if id != sectionCustom {
			order := sectionOrder(id)
			if order == 0 {
				return nil, fmt.Errorf("unknown section ID: 0x%02x", id)
			}
			if order <= lastOrder {
				return nil, fmt.Errorf("section %d appears out of order", id)
			}
			lastOrder = order
		}

		size, err := r.ReadU32()
		if err != nil {
			return nil, r.WrapError("section size", err)
		}
		body, err := r.ReadBytes(int(size))
		if err != nil {
			return nil, r.WrapError("section data", err)
		}

		sr := binary.NewReader(bytes.NewReader(body))
		switch id {
		case sectionType:
			if types, err = parseTypes(sr); err != nil {
				return nil, fmt.Errorf("type section: %w", err)
			}
		case sectionImport:
			if funcTypes, err = parseImports(sr, info); err != nil {
				return nil, fmt.Errorf("import section: %w", err)
			}
		case sectionFunction:
			if funcTypes, err = parseFunctions(sr, funcTypes); err != nil {
				return nil, fmt.Errorf("function section: %w", err)
			}
		case sectionMemory:
			if err := parseMemories(sr, info); err != nil {
				return nil, fmt.Errorf("memory section: %w", err)
			}
		case sectionExport:
			if err := parseExports(sr, info, types, funcTypes); err != nil {
				return nil, fmt.Errorf("export section: %w", err)
			}
		}
	}

	return info, nil
}

// sectionOrder returns the canonical ordering for a section ID, which
// differs from the ID numbering, or 0 for an unknown ID.
func sectionOrder(id byte) int {
	switch id {
	case sectionType:
		return 1
	case sectionImport:
		return 2
	case sectionFunction:
		return 3
	case sectionTable:
		return 4
	case sectionMemory:
		return 5
	case sectionTag:
		return 6
	case sectionGlobal:
		return 7
	case sectionExport:
		return 8
	case sectionStart:
		return 9
	case sectionElement:
		return 10
	case sectionDataCount:
		return 11 // DataCount must come before Code
	case sectionCode:
		return 12
	case sectionData:
		return 13
	}
	return 0
}

func parseTypes(r *binary.Reader) ([]Sig, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	types := make([]Sig, count)
	for i := range types {
		form, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if form != 0x60 {
			return nil, fmt.Errorf("type %d: unsupported form 0x%02x", i, form)
		}
		params, err := readValTypes(r)
		if err != nil {
			return nil, err
		}
		results, err := readValTypes(r)
		if err != nil {
			return nil, err
		}
		types[i] = Sig{Params: params, Results: results}
	}
	return types, nil
}

func readValTypes(r *binary.Reader) ([]ValType, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	out := make([]ValType, count)
	for i := range out {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch ValType(b) {
		case I32, I64, F32, F64:
			out[i] = ValType(b)
		default:
			return nil, fmt.Errorf("unsupported value type 0x%02x", b)
		}
	}
	return out, nil
}

func parseImports(r *binary.Reader, info *Info) ([]uint32, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	var funcTypes []uint32
	for i := uint32(0); i < count; i++ {
		module, err := r.ReadName()
		if err != nil {
			return nil, err
		}
		name, err := r.ReadName()
		if err != nil {
			return nil, err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return nil, err
		}

		switch kind {
		case kindFunc:
			typeIdx, err := r.ReadU32()
			if err != nil {
				return nil, err
			}
			funcTypes = append(funcTypes, typeIdx)
			if module == GasModule && name == GasName {
				info.MetersGas = true
			}
		case kindTable:
			if _, err := r.ReadByte(); err != nil { // reftype
				return nil, err
			}
			if _, err := readLimits(r); err != nil {
				return nil, err
			}
		case kindMemory:
			min, err := readLimits(r)
			if err != nil {
				return nil, err
			}
			info.HasMemory = true
			info.MemoryMinPages = min
		case kindGlobal:
			if _, err := r.ReadByte(); err != nil { // valtype
				return nil, err
			}
			if _, err := r.ReadByte(); err != nil { // mutability
				return nil, err
			}
		default:
			return nil, fmt.Errorf("import %s.%s: unknown kind %d", module, name, kind)
		}
	}
	return funcTypes, nil
}

func readLimits(r *binary.Reader) (uint64, error) {
	flags, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	if flags > 0x01 {
		return 0, fmt.Errorf("unsupported limits flags 0x%02x", flags)
	}
	min, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	if flags&0x01 != 0 {
		if _, err := r.ReadU32(); err != nil {
			return 0, err
		}
	}
	return uint64(min), nil
}

func parseFunctions(r *binary.Reader, funcTypes []uint32) ([]uint32, error) {
	count, err := r.ReadU32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < count; i++ {
		typeIdx, err := r.ReadU32()
		if err != nil {
			return nil, err
		}
		funcTypes = append(funcTypes, typeIdx)
	}
	return funcTypes, nil
}

func parseMemories(r *binary.Reader, info *Info) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		min, err := readLimits(r)
		if err != nil {
			return err
		}
		info.HasMemory = true
		info.MemoryMinPages = min
	}
	return nil
}

func parseExports(r *binary.Reader, info *Info, types []Sig, funcTypes []uint32) error {
	count, err := r.ReadU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < count; i++ {
		name, err := r.ReadName()
		if err != nil {
			return err
		}
		kind, err := r.ReadByte()
		if err != nil {
			return err
		}
		if kind > kindGlobal {
			return fmt.Errorf("export %q: invalid kind 0x%02x", name, kind)
		}
		idx, err := r.ReadU32()
		if err != nil {
			return err
		}
		if kind != kindFunc {
			continue
		}
		if int(idx) >= len(funcTypes) {
			return fmt.Errorf("export %q: function index %d out of range", name, idx)
		}
		typeIdx := funcTypes[idx]
		if int(typeIdx) >= len(types) {
			return fmt.Errorf("export %q: type index %d out of range", name, typeIdx)
		}
		info.Functions[name] = types[typeIdx]
	}
	return nil
}
