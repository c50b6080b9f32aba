package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseWire    Phase = "wire"    // header and payload codec
	PhaseParams  Phase = "params"  // parameter type validation
	PhaseMarshal Phase = "marshal" // parameter marshaling into engine memory
	PhaseEngine  Phase = "engine"  // engine boundary operations
	PhaseKeys    Phase = "keys"    // key material loading and derivation
	PhaseLoad    Phase = "load"    // program image loading
	PhaseIO      Phase = "io"      // parameter/output stream handling
)

// Kind categorizes the error
type Kind string

const (
	KindTooShort             Kind = "too_short"
	KindInvalidMagic         Kind = "invalid_magic"
	KindInvalidVersion       Kind = "invalid_version"
	KindUnsupportedVersion   Kind = "unsupported_version"
	KindPayloadDecode        Kind = "payload_decode"
	KindPayloadEncode        Kind = "payload_encode"
	KindEmptyArray           Kind = "empty_array"
	KindInconsistentBitWidth Kind = "inconsistent_bit_width"
	KindValueExceedsBitWidth Kind = "value_exceeds_bit_width"
	KindInvalidBitWidth      Kind = "invalid_bit_width"
	KindAllocation           Kind = "allocation"
	KindOffset               Kind = "offset"
	KindMemoryAccess         Kind = "memory_access"
	KindFunctionNotFound     Kind = "function_not_found"
	KindExecution            Kind = "execution"
	KindUnpack               Kind = "unpack"
	KindPack                 Kind = "pack"
	KindKeyLoad              Kind = "key_load"
	KindProgramLoad          Kind = "program_load"
	KindStream               Kind = "stream"
)

// Error is the structured error type used throughout the runner
type Error struct {
	Value    any
	Expected any
	Got      any
	Cause    error
	Phase    Phase
	Kind     Kind
	Detail   string
	Path     []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Expected != nil || e.Got != nil {
		b.WriteString(": ")
		if e.Expected != nil && e.Got != nil {
			fmt.Fprintf(&b, "expected %v, got %v", e.Expected, e.Got)
		} else if e.Expected != nil {
			fmt.Fprintf(&b, "expected %v", e.Expected)
		} else {
			fmt.Fprintf(&b, "got %v", e.Got)
		}
	}

	if e.Detail != "" {
		if e.Expected != nil || e.Got != nil {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the positional path (parameter index, element index, field name)
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Expected sets the expected value
func (b *Builder) Expected(v any) *Builder {
	b.err.Expected = v
	return b
}

// Got sets the observed value
func (b *Builder) Got(v any) *Builder {
	b.err.Got = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for the wire header and codec

// TooShort reports a byte stream shorter than the fixed wire header
func TooShort(length int) *Error {
	return &Error{
		Phase:  PhaseWire,
		Kind:   KindTooShort,
		Value:  length,
		Detail: fmt.Sprintf("data is %d bytes, shorter than the 8 byte header", length),
	}
}

// InvalidMagic reports a header whose magic bytes do not match the payload kind
func InvalidMagic(got []byte, expected string) *Error {
	preview := got
	if len(preview) > 4 {
		preview = preview[:4]
	}
	return &Error{
		Phase:    PhaseWire,
		Kind:     KindInvalidMagic,
		Expected: expected,
		Got:      fmt.Sprintf("%q", preview),
	}
}

// InvalidVersion reports an unreadable version field
func InvalidVersion(cause error) *Error {
	return &Error{
		Phase:  PhaseWire,
		Kind:   KindInvalidVersion,
		Detail: "read version field",
		Cause:  cause,
	}
}

// UnsupportedVersion reports an exact-version mismatch during decode
func UnsupportedVersion(got, expected uint32) *Error {
	return &Error{
		Phase:    PhaseWire,
		Kind:     KindUnsupportedVersion,
		Expected: expected,
		Got:      got,
		Detail:   "version field",
	}
}

// PayloadDecode wraps a payload deserialization failure
func PayloadDecode(cause error) *Error {
	return &Error{
		Phase:  PhaseWire,
		Kind:   KindPayloadDecode,
		Detail: "decode payload",
		Cause:  cause,
	}
}

// PayloadEncode wraps a payload serialization failure
func PayloadEncode(cause error) *Error {
	return &Error{
		Phase:  PhaseWire,
		Kind:   KindPayloadEncode,
		Detail: "encode payload",
		Cause:  cause,
	}
}

// Convenience constructors for parameter validation and marshaling

// InvalidBitWidth reports a bit width outside the closed set {8, 16, 32, 64}
func InvalidBitWidth(value uint32) *Error {
	return &Error{
		Phase:  PhaseParams,
		Kind:   KindInvalidBitWidth,
		Value:  value,
		Detail: fmt.Sprintf("invalid bit width: %d", value),
	}
}

// EmptyArray reports a ciphertext array with zero elements
func EmptyArray(paramIndex int) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindEmptyArray,
		Path:   []string{fmt.Sprintf("param[%d]", paramIndex)},
		Detail: "empty ciphertext array",
	}
}

// InconsistentBitWidth reports a ciphertext array element whose width differs
// from the first element's
func InconsistentBitWidth(paramIndex, elemIndex int, expected, got uint32) *Error {
	return &Error{
		Phase:    PhaseMarshal,
		Kind:     KindInconsistentBitWidth,
		Path:     []string{fmt.Sprintf("param[%d]", paramIndex), fmt.Sprintf("elem[%d]", elemIndex)},
		Expected: expected,
		Got:      got,
		Detail:   fmt.Sprintf("inconsistent bit width in ciphertext array, first saw %d then saw %d", expected, got),
	}
}

// ValueExceedsBitWidth reports a plaintext value above the maximum for its width
func ValueExceedsBitWidth(paramIndex int, value uint64, bits uint32, max uint64) *Error {
	return &Error{
		Phase:  PhaseMarshal,
		Kind:   KindValueExceedsBitWidth,
		Path:   []string{fmt.Sprintf("param[%d]", paramIndex)},
		Value:  value,
		Detail: fmt.Sprintf("plaintext value %d exceeds maximum for bit width %d (max: %d)", value, bits, max),
	}
}

// Convenience constructors for the engine boundary

// AllocationFailed wraps an engine memory allocation failure
func AllocationFailed(size uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("allocate %d bytes", size),
		Cause:  cause,
	}
}

// OffsetFailed wraps a handle offset computation failure
func OffsetFailed(handle, offset uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindOffset,
		Detail: fmt.Sprintf("compute offset %d from handle %#x", offset, handle),
		Cause:  cause,
	}
}

// MemoryAccessFailed wraps a typed read or write failure in engine memory
func MemoryAccessFailed(op string, handle uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindMemoryAccess,
		Detail: fmt.Sprintf("%s at %#x", op, handle),
		Cause:  cause,
	}
}

// FunctionNotFound reports a missing entry point in a loaded program
func FunctionNotFound(name string) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindFunctionNotFound,
		Detail: fmt.Sprintf("function %q not found", name),
	}
}

// ExecutionFailed wraps an engine invocation failure
func ExecutionFailed(function string, cause error) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindExecution,
		Path:   []string{function},
		Detail: "program execution",
		Cause:  cause,
	}
}

// UnpackFailed wraps a ciphertext unpack failure
func UnpackFailed(paramIndex int, cause error) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindUnpack,
		Path:   []string{fmt.Sprintf("param[%d]", paramIndex)},
		Detail: "unpack ciphertext",
		Cause:  cause,
	}
}

// PackFailed wraps a result ciphertext pack failure
func PackFailed(bufferIndex, elemIndex int, cause error) *Error {
	return &Error{
		Phase:  PhaseEngine,
		Kind:   KindPack,
		Path:   []string{fmt.Sprintf("output[%d]", bufferIndex), fmt.Sprintf("elem[%d]", elemIndex)},
		Detail: "pack result ciphertext",
		Cause:  cause,
	}
}

// Convenience constructors for the supplemented surfaces

// KeyLoadFailed wraps a compute key load or derivation failure
func KeyLoadFailed(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseKeys,
		Kind:   KindKeyLoad,
		Path:   []string{path},
		Detail: "load compute key",
		Cause:  cause,
	}
}

// ProgramLoadFailed wraps a program image load failure
func ProgramLoadFailed(path string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindProgramLoad,
		Path:   []string{path},
		Detail: "load program image",
		Cause:  cause,
	}
}

// Stream wraps a parameter or output stream failure
func Stream(what string, cause error) *Error {
	return &Error{
		Phase:  PhaseIO,
		Kind:   KindStream,
		Detail: what,
		Cause:  cause,
	}
}
