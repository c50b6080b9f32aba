package runner

import (
	"context"

	"go.uber.org/zap"

	spfrunner "github.com/Sunscreen-tech/spf-runner"
	"github.com/Sunscreen-tech/spf-runner/errors"
	"github.com/Sunscreen-tech/spf-runner/gas"
	"github.com/Sunscreen-tech/spf-runner/param"
)

// Options configures runner behavior.
type Options struct {
	// Logger receives gas accounting and pipeline progress.
	// Nil disables logging.
	Logger *zap.Logger

	// GasLimit caps the gas the engine may spend during execution.
	// Zero means unlimited.
	GasLimit uint64
}

// DefaultOptions returns default runner configuration.
func DefaultOptions() Options {
	return Options{}
}

// Result is the outcome of one invocation.
type Result struct {
	// Outputs holds the packed result ciphertexts in declaration order.
	Outputs []param.Ciphertext

	// GasConsumed is the metered cost of the whole invocation: ciphertext
	// unpacking, engine execution and result packing.
	GasConsumed uint64
}

// Runner drives the invocation pipeline against a loaded program: marshal
// the parameter list into engine memory, execute the entry point once, read
// the declared output buffers back and meter the cost of each stage.
//
// A Runner may be reused across invocations but not concurrently; the
// program's memory space belongs to one invocation at a time.
type Runner struct {
	engine  spfrunner.Engine
	program spfrunner.Program
	logger  *zap.Logger
	options Options
}

// New creates a Runner for a loaded program with the given options.
func New(engine spfrunner.Engine, program spfrunner.Program, opts Options) *Runner {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		engine:  engine,
		program: program,
		logger:  log,
		options: opts,
	}
}

// NewWithDefaults creates a Runner with default options.
func NewWithDefaults(engine spfrunner.Engine, program spfrunner.Program) *Runner {
	return New(engine, program, DefaultOptions())
}

// Run invokes function with the given parameter list and returns the packed
// output ciphertexts in declaration order.
//
// The pipeline is strictly sequential: decode happened upstream, parameters
// are marshaled in list order, the engine executes once, declared output
// buffers are read back and packed. Any failure aborts the invocation and
// no partial outputs are returned.
func (r *Runner) Run(ctx context.Context, function string, params param.List) (*Result, error) {
	fn, err := r.program.Function(function)
	if err != nil {
		return nil, errors.New(errors.PhaseEngine, errors.KindFunctionNotFound).
			Detail("function %q not found", function).
			Cause(err).
			Build()
	}

	tracker := gas.NewTracker(r.logger)

	m, err := marshal(r.engine, r.program.Memory(), tracker, params)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("parameters marshaled",
		zap.Int("args", len(m.args)),
		zap.Int("output_buffers", len(m.outputs)),
		zap.Uint64("declared_output_bytes", m.outputBytes))

	used, err := r.engine.Run(ctx, r.program, fn, m.args, spfrunner.RunOptions{GasLimit: r.options.GasLimit})
	if err != nil {
		return nil, errors.ExecutionFailed(function, err)
	}
	tracker.Charge(used, gas.LabelRun)

	outputs, err := collect(r.engine, r.program.Memory(), m.outputs)
	if err != nil {
		return nil, err
	}
	tracker.Charge(gas.PackCost(m.outputBytes), gas.LabelPack)

	r.logger.Debug("outputs collected",
		zap.String("function", function),
		zap.Int("outputs", len(outputs)),
		zap.Uint64("gas_consumed", tracker.Consumed()))

	return &Result{Outputs: outputs, GasConsumed: tracker.Consumed()}, nil
}
