// Package param defines the typed parameter model shared by the wire codec
// and the marshaling pipeline.
//
// # Bit Widths
//
// Every operand carries a BitWidth drawn from the closed set {8, 16, 32, 64}.
// Width is the only constructor; it rejects any other integer with an
// invalid_bit_width error, so pointer arithmetic downstream never sees an
// unvalidated width. Derived quantities:
//
//	ByteWidth()    bits / 8
//	MaxUnsigned()  2^bits - 1
//
// SignedToUnsigned and UnsignedToSigned convert through the width's
// two's-complement bit pattern. They are total: a validated BitWidth cannot
// make them fail.
//
// # Parameters
//
// Parameter is a closed sum over five variants:
//
//	Ciphertext             one encrypted operand
//	CiphertextArray        non-empty homogeneous encrypted vector
//	OutputCiphertextArray  declared result slot (width, positive count)
//	Plaintext              one cleartext scalar bounded by its width
//	PlaintextArray         cleartext vector, each element bounded
//
// # Payload Encoding
//
// List encodes as a MessagePack array of externally tagged variants, one
// single-entry map per parameter:
//
//	{"Ciphertext":            {"bitWidth": u8, "value": bin}}
//	{"CiphertextArray":       {"values": [ciphertext...]}}
//	{"OutputCiphertextArray": {"bitWidth": u8, "size": u32}}
//	{"Plaintext":             {"bitWidth": u8, "value": u64}}
//	{"PlaintextArray":        {"bitWidth": u8, "values": [u64...]}}
//
// Output payloads reuse the bare ciphertext object shape. Decode validates
// bit widths through Width and requires a positive output slot size; value
// bound checks belong to the marshaler, not the codec.
package param
