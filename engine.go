package spfrunner

import (
	"context"

	"github.com/Sunscreen-tech/spf-runner/param"
)

// Handle addresses an allocated region in engine memory.
type Handle uint32

// Word is an immediate scalar: a plaintext value or the computable form of
// an unpacked ciphertext, truncated to its width.
type Word struct {
	Width param.BitWidth
	Value uint64
}

// Arg is one engine argument. The set is closed: a Word immediate or a
// Handle to an allocated region.
type Arg interface {
	isArg()
}

func (Word) isArg()   {}
func (Handle) isArg() {}

// Memory is the addressable memory space of one loaded program. Allocations
// within one space are ordered; later handles may depend on earlier ones, so
// callers must not allocate concurrently.
type Memory interface {
	// Alloc reserves a contiguous region of size bytes.
	Alloc(size uint32) (Handle, error)
	// Offset computes the handle at a byte offset from h, bounds checked.
	Offset(h Handle, byteOffset uint32) (Handle, error)
	// WriteWord stores w at h.
	WriteWord(h Handle, w Word) error
	// ReadWord loads a value of the given width from h.
	ReadWord(h Handle, width param.BitWidth) (Word, error)
}

// Function is a resolved program entry point.
type Function interface {
	Name() string
}

// Program is a loaded executable image together with its memory space.
type Program interface {
	// Function resolves a named entry point.
	Function(name string) (Function, error)
	// Memory returns the program's memory space.
	Memory() Memory
}

// RunOptions configures one engine invocation.
type RunOptions struct {
	// GasLimit caps engine-side execution cost. Zero means unlimited.
	GasLimit uint64
}

// Engine executes programs and performs the cryptographic pack and unpack
// primitives. Implementations may be internally parallel; the invocation is
// atomic and blocking from the caller's perspective.
type Engine interface {
	// LoadProgram compiles an image into an executable Program.
	LoadProgram(ctx context.Context, image []byte) (Program, error)
	// Unpack converts a wire ciphertext into its computable word form.
	Unpack(ct param.Ciphertext) (Word, error)
	// Pack converts a computable word back into a wire ciphertext.
	Pack(w Word) (param.Ciphertext, error)
	// Run invokes fn with args and reports the gas the execution consumed.
	Run(ctx context.Context, p Program, fn Function, args []Arg, opts RunOptions) (uint64, error)
}
