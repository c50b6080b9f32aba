// Package enginetest provides a scripted Engine implementation for testing
// code that drives the run pipeline without a real evaluation backend.
//
// Ciphertexts produced and consumed by the double are cleartext words in
// little-endian form, so tests can build inputs by hand and read results
// directly. Entry points are Go functions registered with Program.Define,
// and every engine and memory operation is counted for traffic assertions.
package enginetest
