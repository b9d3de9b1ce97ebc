// Command run loads a core WebAssembly binary, Asyncify-prepares it, wires
// a demo "spectest" async import namespace (sleep, print), and drives a
// named export through the Resumption Protocol to completion.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmhost/asyncwasm/asynclink"
	"github.com/wasmhost/asyncwasm/prepare"
)

func main() {
	var (
		wasmFile  = flag.String("wasm", "", "Path to a core WebAssembly file")
		funcName  = flag.String("func", "_start", "Exported function to call")
		asyncFlag = flag.String("async-imports", "spectest.sleep", "Comma-separated module.name import list to instrument for suspension")
		args      = flag.String("args", "", "Comma-separated i64 argument words")
	)
	flag.Parse()

	if *wasmFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: run -wasm <file.wasm> [-func name] [-args 1,2,3] [-async-imports spectest.sleep,...]")
		os.Exit(1)
	}

	if err := run(*wasmFile, *funcName, *asyncFlag, *args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(wasmFile, funcName, asyncImportsCSV, argsCSV string) error {
	ctx := context.Background()

	raw, err := os.ReadFile(wasmFile)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	var asyncImports []string
	if asyncImportsCSV != "" {
		asyncImports = strings.Split(asyncImportsCSV, ",")
	}

	prepared, err := prepare.Transform(raw, asyncImports, nil)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}

	core, err := asynclink.New(ctx, &asynclink.Config{WASINamespace: true})
	if err != nil {
		return fmt.Errorf("create core: %w", err)
	}
	defer core.Close(ctx)

	if err := registerDemoImports(ctx, core); err != nil {
		return fmt.Errorf("register demo imports: %w", err)
	}

	mod, err := core.Linker().Load(ctx, prepared)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if err := core.ActiveModule(ctx, mod); err != nil {
		return fmt.Errorf("activate: %w", err)
	}

	var callArgs []uint64
	if argsCSV != "" {
		for _, s := range strings.Split(argsCSV, ",") {
			var v int64
			if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
				return fmt.Errorf("parse arg %q: %w", s, err)
			}
			callArgs = append(callArgs, uint64(v))
		}
	}

	call, err := core.NewCall(funcName, callArgs...)
	if err != nil {
		return fmt.Errorf("new call: %w", err)
	}

	fmt.Printf("calling %s(%v)...\n", funcName, callArgs)
	out, err := call.Run(ctx)
	if err != nil {
		return fmt.Errorf("call %s: %w", funcName, err)
	}

	fmt.Printf("result: %v\n", out.Results)
	return nil
}

// registerDemoImports wires the "spectest" namespace used by the S1-S6
// scenarios: sleep (timer-backed future) and print (always-ready future
// that logs to stdout).
func registerDemoImports(ctx context.Context, core *asynclink.Core) error {
	return core.NewAsyncImportObject(ctx, "spectest", func(add func(asynclink.AsyncFuncDef)) {
		add(asynclink.AsyncFuncDef{
			Name:    "sleep",
			Params:  []api.ValueType{api.ValueTypeI32},
			Results: nil,
			Impl: func(ctx context.Context, core *asynclink.Core, args []uint64) (asynclink.Future, error) {
				ms := time.Duration(int32(args[0])) * time.Millisecond
				return asynclink.NewTimerFuture(ms, nil), nil
			},
		})
		add(asynclink.AsyncFuncDef{
			Name:    "print",
			Params:  []api.ValueType{api.ValueTypeI32},
			Results: nil,
			Impl: func(ctx context.Context, core *asynclink.Core, args []uint64) (asynclink.Future, error) {
				fmt.Printf("guest print: %d\n", int32(args[0]))
				return asynclink.ReadyFuture{}, nil
			},
		})
	})
}
