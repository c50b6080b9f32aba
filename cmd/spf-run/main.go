package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/term"

	spfrunner "github.com/Sunscreen-tech/spf-runner"
	"github.com/Sunscreen-tech/spf-runner/errors"
	"github.com/Sunscreen-tech/spf-runner/image"
	"github.com/Sunscreen-tech/spf-runner/keys"
	"github.com/Sunscreen-tech/spf-runner/param"
	"github.com/Sunscreen-tech/spf-runner/runner"
	"github.com/Sunscreen-tech/spf-runner/sim"
	"github.com/Sunscreen-tech/spf-runner/wire"
)

func main() {
	var (
		programFile = flag.String("program", "", "Path to compiled program image")
		function    = flag.String("function", "", "Function to run")
		keyFile     = flag.String("key", "", "Path to compute key file")
		paramsFile  = flag.String("params", "", "Encoded parameter list (default: stdin)")
		outputFile  = flag.String("output", "", "Destination for encoded outputs (default: stdout)")
		gasLimit    = flag.Uint64("gas-limit", 0, "Execution gas ceiling (0 = unlimited)")
		genKey      = flag.Bool("genkey", false, "Generate a compute key at -key and exit")
		list        = flag.Bool("list", false, "List exported functions and exit")
		interactive = flag.Bool("interactive", false, "Interactive workbench with TUI")
		verbose     = flag.Bool("v", false, "Debug logging")
	)
	flag.Parse()

	if *genKey {
		if *keyFile == "" {
			usage()
		}
		if err := genkey(*keyFile); err != nil {
			fatal(err)
		}
		return
	}

	if *programFile == "" {
		usage()
	}

	if *list {
		if err := listExports(*programFile); err != nil {
			fatal(err)
		}
		return
	}

	if *keyFile == "" {
		usage()
	}

	if *interactive {
		if err := runInteractive(*programFile, *keyFile); err != nil {
			fatal(err)
		}
		return
	}

	if *function == "" {
		usage()
	}

	if err := run(*programFile, *function, *keyFile, *paramsFile, *outputFile, *gasLimit, *verbose); err != nil {
		fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: spf-run -program <file.wasm> -function <name> -key <file> [-params <file>] [-output <file>] [-gas-limit <n>]")
	fmt.Fprintln(os.Stderr, "       spf-run -program <file.wasm> -list")
	fmt.Fprintln(os.Stderr, "       spf-run -program <file.wasm> -key <file> -interactive")
	fmt.Fprintln(os.Stderr, "       spf-run -genkey -key <file>")
	os.Exit(1)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func run(programFile, function, keyFile, paramsFile, outputFile string, gasLimit uint64, verbose bool) error {
	ctx := context.Background()

	logger, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()

	key, err := keys.Load(keyFile)
	if err != nil {
		return err
	}

	eng, err := sim.New(ctx, key.Cipher(), sim.Options{Logger: logger})
	if err != nil {
		return err
	}
	defer eng.Close(ctx)

	prog, err := loadProgram(ctx, eng, programFile)
	if err != nil {
		return err
	}

	params, err := readParams(paramsFile)
	if err != nil {
		return err
	}

	r := runner.New(eng, prog, runner.Options{Logger: logger, GasLimit: gasLimit})
	res, err := r.Run(ctx, function, params)
	if err != nil {
		return err
	}

	encoded, err := wire.EncodeOutputs(res.Outputs)
	if err != nil {
		return err
	}
	if err := writeOutput(outputFile, encoded); err != nil {
		return err
	}

	logger.Info("run complete",
		zap.String("function", function),
		zap.Int("outputs", len(res.Outputs)),
		zap.Uint64("gas_consumed", res.GasConsumed))
	return nil
}

// newLogger keeps stdout clean for the output payload: both configurations
// write to stderr.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func genkey(path string) error {
	key, err := keys.Generate()
	if err != nil {
		return err
	}
	if err := key.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote compute key to %s\n", path)
	return nil
}

func listExports(programFile string) error {
	data, err := os.ReadFile(programFile)
	if err != nil {
		return errors.ProgramLoadFailed(programFile, err)
	}
	info, err := image.Inspect(data)
	if err != nil {
		return errors.ProgramLoadFailed(programFile, err)
	}

	names := make([]string, 0, len(info.Functions))
	for name := range info.Functions {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Program: %s\n", programFile)
	fmt.Printf("Memory: %d pages\n", info.MemoryMinPages)
	fmt.Printf("Meters gas: %v\n", info.MetersGas)
	fmt.Printf("\nExported functions:\n")
	for _, name := range names {
		fmt.Printf("  %s%s\n", name, info.Functions[name])
	}
	return nil
}

func loadProgram(ctx context.Context, eng *sim.Engine, path string) (spfrunner.Program, error) {
	img, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.ProgramLoadFailed(path, err)
	}
	prog, err := eng.LoadProgram(ctx, img)
	if err != nil {
		return nil, errors.ProgramLoadFailed(path, err)
	}
	return prog, nil
}

// readParams reads the encoded parameter list from a file, or from stdin
// when no file is given. On stdin the fixed header is read and checked
// first so a wrong stream fails before the payload is consumed.
func readParams(path string) (param.List, error) {
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Stream("read parameter file", err)
		}
		return wire.DecodeParams(data)
	}

	header := make([]byte, wire.HeaderSize)
	if _, err := io.ReadFull(os.Stdin, header); err != nil {
		return nil, errors.Stream("read parameter header from stdin", err)
	}
	if _, err := wire.PeekVersion(header, wire.ParamsMagic); err != nil {
		return nil, err
	}
	rest, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, errors.Stream("read parameters from stdin", err)
	}
	return wire.DecodeParams(append(header, rest...))
}

func writeOutput(path string, data []byte) error {
	if path != "" {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.Stream("write output file", err)
		}
		return nil
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.Stream("write outputs to stdout", fmt.Errorf("stdout is a terminal, use -output"))
	}
	if _, err := os.Stdout.Write(data); err != nil {
		return errors.Stream("write outputs to stdout", err)
	}
	return nil
}
