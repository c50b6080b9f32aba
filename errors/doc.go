// Package errors provides structured error types for the spf-runner library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error
// category). The Error type includes rich context: positional path, expected
// and observed values, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseWire, errors.KindUnsupportedVersion).
//		Expected(uint32(1)).
//		Got(uint32(2)).
//		Detail("version field").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnsupportedVersion(2, 1)
//	err := errors.InconsistentBitWidth(0, 2, 16, 32)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
