// Package sim is the wazero-backed execution engine.
//
// It simulates a packed FHE evaluation backend: programs are ordinary wasm
// modules computing on cleartext words, while the unpack and pack boundary
// performs real operand decryption and encryption through a keys.Cipher.
// That keeps the pipeline honest end to end without defining an encrypted
// instruction set.
//
// Conventions a program image must follow:
//
//   - define a linear memory (exporting it as "memory" by convention)
//   - take operands as i32 (widths 8..32) or i64 (width 64) and buffer
//     arguments as i32 addresses
//   - optionally export an allocator (one of "spf_alloc", "alloc",
//     "allocate", "malloc" with signature (i32) -> i32); without one the
//     host bump-allocates fresh pages
//   - optionally import "env" "gas" (param i64) and call it to declare
//     execution cost; unmetered programs report cost zero
package sim
