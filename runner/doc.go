// Package runner sequences one program invocation end to end.
//
// A Runner owns nothing but references: the engine, a program the engine
// loaded, and a logger. Each Run call threads a fresh gas tracker through
// the stages:
//
//	marshal    parameters -> engine arguments + output descriptors,
//	           charging the unpack cost per ciphertext element
//	execute    one blocking engine call, charging the engine-reported cost
//	collect    declared output buffers -> packed wire ciphertexts
//	pack cost  one final charge from the declared output byte total
//
// Marshaling is a strict left-to-right fold over the parameter list. Every
// error is fatal to the invocation; the runner enriches engine failures
// with parameter or buffer positions and returns them without retrying.
package runner
