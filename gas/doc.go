// Package gas meters the cost of cryptographic operations performed during
// one program invocation.
//
// A Tracker starts at zero and only increases. Three costs apply:
//
//	unpack   per ciphertext, by operand byte width (UnpackCost)
//	run      opaque, reported by the engine and charged unmodified
//	pack     once per invocation, 320 gas per declared output byte
//
// Charges interleave in pipeline order: unpack charges during marshaling,
// one execution charge, then one packing charge after output collection.
// The tracker enforces no ceiling; it exists for reporting.
package gas
