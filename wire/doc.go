// Package wire implements the versioned binary envelope carrying parameter
// and output payloads.
//
// Every envelope is an 8-byte header followed by a MessagePack payload:
//
//	[4-byte ASCII magic][4-byte big-endian version][payload]
//
// Two envelope kinds share the codec: parameter lists ("SPFP") and output
// lists ("SPFO"), both at version 1. Decoding requires exact version
// equality; there is no forward or backward compatibility.
//
// PeekVersion reads the version after validating only length and magic,
// letting a caller reject a mismatched stream before paying for a payload
// decode. Ciphertext payloads can be large, so the cheap reject matters for
// streamed input.
package wire
