// Package spfrunner runs compiled FHE programs against serialized parameter
// streams.
//
// The library sits between an untyped binary protocol and a typed execution
// call: it decodes a versioned parameter envelope, marshals each parameter
// into the layout an execution engine expects (allocating engine memory and
// metering every cryptographic operation), invokes the engine once, reads
// the declared output buffers back, and re-serializes them as a versioned
// output envelope.
//
// # Architecture Overview
//
// The library is organized into packages with distinct responsibilities:
//
//	spfrunner/       Root package with the Engine, Program and Memory interfaces
//	├── runner/      Marshaling pipeline, output collection, orchestration
//	├── wire/        Versioned envelope codec (magic + version + payload)
//	├── param/       Bit-width model and the typed parameter variants
//	├── gas/         Monotonic gas tracker and the fixed cost formulas
//	├── keys/        Compute key material: generation, persistence, encryption
//	├── sim/         wazero-backed development engine over cleartext words
//	├── image/       Program image inspection without instantiation
//	├── enginetest/  Scripted engine double for pipeline tests
//	├── errors/      Structured error types shared by every package
//	└── cmd/spf-run/ CLI: stream IO, logging setup, interactive workbench
//
// # Quick Start
//
// Run a parameter stream against a loaded program:
//
//	eng, err := sim.New(ctx, cipher, sim.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close(ctx)
//
//	program, err := eng.LoadProgram(ctx, image)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	params, err := wire.DecodeParams(rawParams)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := runner.NewWithDefaults(eng, program).Run(ctx, "add_one", params)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rawOutputs, err := wire.EncodeOutputs(res.Outputs)
//
// # Engine Model
//
// The execution engine is a collaborator behind the root interfaces: it
// loads compiled images, exposes an addressable memory space, converts wire
// ciphertexts to and from a computable form, and executes one entry point at
// a time. The sim package implements the interfaces over wazero for
// development and testing; a production FHE engine plugs in the same way.
//
// # Concurrency
//
// One invocation owns its gas tracker and its program memory exclusively.
// Marshaling is strictly sequential: allocation order is significant within
// a memory space. Engines may parallelize internally, but Run is atomic and
// blocking from the caller's perspective.
package spfrunner
