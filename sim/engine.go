package sim

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	spfrunner "github.com/Sunscreen-tech/spf-runner"
	"github.com/Sunscreen-tech/spf-runner/image"
	"github.com/Sunscreen-tech/spf-runner/keys"
	"github.com/Sunscreen-tech/spf-runner/param"
)

// Options configures engine creation.
type Options struct {
	// Logger receives load and execution diagnostics. Nil disables logging.
	Logger *zap.Logger

	// MemoryLimitPages caps each program's linear memory in 64KiB pages.
	// Zero keeps the wazero default.
	MemoryLimitPages uint32
}

// Engine executes compiled program images under wazero, standing in for a
// packed evaluation backend. Operand ciphertexts are real encryptions:
// Unpack decrypts an operand into a computable word and Pack encrypts a
// word back into wire form, so guests compute on cleartext words while
// everything crossing the engine boundary stays encrypted.
type Engine struct {
	rt     wazero.Runtime
	cipher *keys.Cipher
	log    *zap.Logger
}

var _ spfrunner.Engine = (*Engine)(nil)

// New creates an engine whose unpack and pack operations use cipher.
// Guests declare execution cost by importing env.gas and calling it with
// the amount spent; programs that never call it run at cost zero.
func New(ctx context.Context, cipher *keys.Cipher, opts Options) (*Engine, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	cfg := wazero.NewRuntimeConfig()
	if opts.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(opts.MemoryLimitPages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, cfg)

	_, err := rt.NewHostModuleBuilder(image.GasModule).
		NewFunctionBuilder().
		WithFunc(func(ctx context.Context, amount int64) {
			if m := meterFrom(ctx); m != nil {
				m.add(uint64(amount))
			}
		}).
		Export(image.GasName).
		Instantiate(ctx)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("install %s.%s import: %w", image.GasModule, image.GasName, err)
	}

	return &Engine{rt: rt, cipher: cipher, log: log}, nil
}

// Close releases the runtime and every program loaded from it.
func (e *Engine) Close(ctx context.Context) error {
	return e.rt.Close(ctx)
}

// LoadProgram compiles and instantiates a program image.
func (e *Engine) LoadProgram(ctx context.Context, img []byte) (spfrunner.Program, error) {
	info, err := image.Inspect(img)
	if err != nil {
		return nil, fmt.Errorf("inspect image: %w", err)
	}
	if !info.HasMemory {
		return nil, fmt.Errorf("program has no memory")
	}

	compiled, err := e.rt.CompileModule(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("compile module: %w", err)
	}

	// Anonymous instances so several programs can coexist.
	mod, err := e.rt.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return nil, fmt.Errorf("instantiate module: %w", err)
	}
	mem := mod.Memory()
	if mem == nil {
		_ = mod.Close(ctx)
		return nil, fmt.Errorf("program exports no memory")
	}

	p := &Program{mod: mod, mem: &Memory{mem: mem, allocFn: probeAllocator(mod)}}
	e.log.Debug("program loaded",
		zap.Int("image_bytes", len(img)),
		zap.Bool("metered", info.MetersGas),
		zap.Bool("guest_allocator", p.mem.allocFn != nil))
	return p, nil
}

// Unpack decrypts ct into a computable word.
func (e *Engine) Unpack(ct param.Ciphertext) (spfrunner.Word, error) {
	v, err := e.cipher.Decrypt(ct)
	if err != nil {
		return spfrunner.Word{}, err
	}
	return spfrunner.Word{Width: ct.Width, Value: v}, nil
}

// Pack encrypts w back into wire form.
func (e *Engine) Pack(w spfrunner.Word) (param.Ciphertext, error) {
	return e.cipher.Encrypt(w.Width, w.Value)
}

// Run invokes fn with the marshaled arguments and reports the gas the guest
// metered through the env.gas import. A nonzero opts.GasLimit makes the run
// fail once the metered total exceeds it.
func (e *Engine) Run(ctx context.Context, _ spfrunner.Program, fn spfrunner.Function, args []spfrunner.Arg, opts spfrunner.RunOptions) (uint64, error) {
	f, ok := fn.(*function)
	if !ok {
		return 0, fmt.Errorf("function %T was not resolved by this engine", fn)
	}

	stack, err := lowerArgs(f.fn.Definition().ParamTypes(), args)
	if err != nil {
		return 0, fmt.Errorf("function %q: %w", f.name, err)
	}

	m := &meter{}
	if _, err := f.fn.Call(withMeter(ctx, m), stack...); err != nil {
		return 0, err
	}
	if opts.GasLimit > 0 && m.total > opts.GasLimit {
		return m.total, fmt.Errorf("gas limit exceeded: consumed %d of %d", m.total, opts.GasLimit)
	}

	e.log.Debug("program ran",
		zap.String("function", f.name),
		zap.Uint64("metered_gas", m.total))
	return m.total, nil
}

// lowerArgs places marshaled arguments on the call stack, validating the
// value type each parameter expects: i32 for handles and operands up to 32
// bits, i64 for 64-bit operands.
func lowerArgs(paramTypes []api.ValueType, args []spfrunner.Arg) ([]uint64, error) {
	if len(paramTypes) != len(args) {
		return nil, fmt.Errorf("takes %d parameters, got %d arguments", len(paramTypes), len(args))
	}

	stack := make([]uint64, len(args))
	for i, a := range args {
		var want api.ValueType
		switch v := a.(type) {
		case spfrunner.Word:
			want = api.ValueTypeI32
			if v.Width == param.Width64 {
				want = api.ValueTypeI64
			}
			stack[i] = v.Value
		case spfrunner.Handle:
			want = api.ValueTypeI32
			stack[i] = uint64(v)
		default:
			return nil, fmt.Errorf("argument %d has unsupported kind %T", i, a)
		}
		if paramTypes[i] != want {
			return nil, fmt.Errorf("argument %d: parameter type %s, want %s",
				i, api.ValueTypeName(paramTypes[i]), api.ValueTypeName(want))
		}
	}
	return stack, nil
}

// meter accumulates guest-declared gas for one call.
type meter struct {
	total uint64
}

func (m *meter) add(v uint64) {
	m.total += v
}

type meterKey struct{}

// withMeter attaches the call's meter to the context the guest runs under.
func withMeter(ctx context.Context, m *meter) context.Context {
	return context.WithValue(ctx, meterKey{}, m)
}

func meterFrom(ctx context.Context) *meter {
	m, _ := ctx.Value(meterKey{}).(*meter)
	return m
}
