// Command dexalloc drives the register allocator over one or more
// JSON-described method bodies, grounded on the teacher compiler's
// cmd/typthon/main.go phase sequence (load -> process -> report) and
// extended with a concurrent multi-method driver and an optional
// fsnotify watch mode.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/dex-regalloc/pkg/driver"
	"github.com/GriffinCanCode/dex-regalloc/pkg/logger"
	"github.com/GriffinCanCode/dex-regalloc/pkg/regalloc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "dexalloc:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfigFromEnv()

	flag.StringVar(&cfg.InputPath, "input", cfg.InputPath, "path to a JSON method document (see methodDoc)")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "enable invariant checking and debug-level logging")
	flag.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "max methods allocated concurrently")
	flag.BoolVar(&cfg.Watch, "watch", cfg.Watch, "re-run on every change to -input")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "text or json")
	flag.Parse()

	if cfg.InputPath == "" {
		return fmt.Errorf("no -input given")
	}

	level := logger.LevelInfo
	if cfg.Debug {
		level = logger.LevelDebug
	}
	if err := logger.Init(logger.Config{Level: level, Format: cfg.LogFormat, Output: os.Stderr}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	opts := &regalloc.Options{
		Debug:       cfg.Debug,
		MinAPILevel: cfg.MinAPILevel,
	}
	d := driver.New(opts, cfg.Concurrency)

	allocateOnce := func() error {
		fns, err := loadFunctions(cfg.InputPath)
		if err != nil {
			return err
		}
		reports, err := d.AllocateAll(context.Background(), fns)
		if err != nil {
			return err
		}
		printReports(reports)
		return nil
	}

	if !cfg.Watch {
		return allocateOnce()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return runWatch(ctx, cfg.InputPath, allocateOnce)
}

// loadFunctions reads one methodDoc, or a JSON array of methodDocs, from
// path and builds the corresponding dexir.Functions.
func loadFunctions(path string) ([]*regalloc.Function, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var raw json.RawMessage
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	var docs []methodDoc
	if err := json.Unmarshal(raw, &docs); err == nil && len(docs) > 0 {
		fns := make([]*regalloc.Function, len(docs))
		for i := range docs {
			fn, err := buildFromDoc(&docs[i])
			if err != nil {
				return nil, fmt.Errorf("method %d: %w", i, err)
			}
			fns[i] = fn
		}
		return fns, nil
	}

	var single methodDoc
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("%s is neither a method document nor an array of them: %w", path, err)
	}
	fn, err := buildFromDoc(&single)
	if err != nil {
		return nil, err
	}
	return []*regalloc.Function{fn}, nil
}

func printReports(reports []driver.MethodReport) {
	for _, r := range driver.SortedByMethod(reports) {
		fmt.Printf("%-24s registers=%-3d frame=%-3d spills=%-3d edge-moves=%-3d debug-locals=%d\n",
			r.Method, r.RegistersUsed, r.FrameSize, r.SpillMoveCount, r.EdgeMoveCount, r.DebugLocalCount)
	}
}
