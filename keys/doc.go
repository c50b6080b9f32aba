// Package keys manages compute key material and the encryption context
// derived from it.
//
// All contexts share one fixed parameter set (BGV, 128-bit security), so a
// key file fully determines a context: Generate or Load a Key, then derive
// a Cipher for operand encryption and decryption. Key files are MessagePack
// envelopes of the binary-marshaled scheme parameters, secret key and
// relinearization key.
package keys
