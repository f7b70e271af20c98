// Package driver sequences register allocation across the methods of a
// compilation unit, running independent methods concurrently the way a
// real DEX back end would across a whole dex file.
//
// Grounded on the teacher compiler's overall per-file driving pattern in
// cmd/typthon/main.go (read -> lower -> allocate -> report, one phase
// logged after another) and on SeleniaProject-Orizon's
// internal/packagemanager.Manager.ResolveAndFetch for the
// errgroup-with-bounded-concurrency shape: resolve many independent units
// of work concurrently, capped by a semaphore, first error wins.
package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/dex-regalloc/pkg/logger"
	"github.com/GriffinCanCode/dex-regalloc/pkg/regalloc"
)

// MethodReport summarizes one method's allocation for a human-readable or
// machine-readable driver report.
type MethodReport struct {
	Method          string
	RegistersUsed   int
	FrameSize       int
	SpillMoveCount  int
	EdgeMoveCount   int
	DebugLocalCount int
}

// Driver allocates registers for a batch of methods, optionally
// concurrently. Each method gets its own *regalloc.Allocator instance, so
// concurrent calls never share allocator state (§5).
type Driver struct {
	opts        *regalloc.Options
	concurrency int
}

// New constructs a Driver. concurrency <= 0 lets every method in a batch
// run at once (AllocateAll sizes its semaphore to the batch).
func New(opts *regalloc.Options, concurrency int) *Driver {
	return &Driver{opts: opts, concurrency: concurrency}
}

// AllocateAll runs AllocateRegisters for every function, concurrently up
// to d.concurrency, and returns one report per method in input order. It
// returns the first error encountered (cancelling outstanding work via
// the errgroup's derived context) alongside whatever reports had already
// completed.
func (d *Driver) AllocateAll(ctx context.Context, fns []*regalloc.Function) ([]MethodReport, error) {
	reports := make([]MethodReport, len(fns))

	g, gctx := errgroup.WithContext(ctx)
	limit := d.concurrency
	if limit <= 0 {
		limit = len(fns)
	}
	if limit < 1 {
		limit = 1
	}
	sem := make(chan struct{}, limit)

	var mu sync.Mutex
	var firstErr error

	for i, fn := range fns {
		i, fn := i, fn
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			report, err := d.allocateOne(fn)
			if err != nil {
				logger.LogAllocationFailed(fn.Name, err)
				mu.Lock()
				if firstErr == nil {
					firstErr = fmt.Errorf("method %s: %w", fn.Name, err)
				}
				mu.Unlock()
				return err
			}
			reports[i] = report
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if firstErr != nil {
			return reports, firstErr
		}
		return reports, err
	}
	return reports, nil
}

func (d *Driver) allocateOne(fn *regalloc.Function) (MethodReport, error) {
	a := regalloc.NewAllocator(fn, d.opts)
	result, err := a.AllocateRegisters()
	if err != nil {
		return MethodReport{}, err
	}
	edgeCount := 0
	for _, moves := range result.EdgeOutMoves {
		edgeCount += len(moves)
	}
	for _, moves := range result.EdgeInMoves {
		edgeCount += len(moves)
	}
	return MethodReport{
		Method:          fn.Name,
		RegistersUsed:   result.RegistersUsed,
		FrameSize:       result.FrameSize,
		SpillMoveCount:  len(result.IntraBlockMoves),
		EdgeMoveCount:   edgeCount,
		DebugLocalCount: len(result.DebugLocals),
	}, nil
}

// SortedByMethod returns reports sorted by method name, useful for
// deterministic output from a naturally-unordered concurrent run.
func SortedByMethod(reports []MethodReport) []MethodReport {
	out := append([]MethodReport{}, reports...)
	sort.Slice(out, func(i, j int) bool { return out[i].Method < out[j].Method })
	return out
}
