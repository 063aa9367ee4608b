package backtest

import (
	"context"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/quantbay/confluence-bot/internal/engine"
	"github.com/quantbay/confluence-bot/internal/volumefilter"
	"github.com/quantbay/confluence-bot/pkg/types"
)

// Job is one backtest in a parameter sweep. Build constructs the session's
// engine and filter so every run gets fresh state; sharing one engine across
// jobs would share filter counters.
type Job struct {
	Name  string
	Cfg   Config
	Bars  []types.OHLCV
	Build func() (*engine.Engine, *volumefilter.Filter)
}

// Result pairs a job with its report or failure.
type Result struct {
	Name   string
	Report *Report
	Err    error
}

// RunPool executes the jobs across a bounded worker pool and returns the
// results in job order. Workers defaults to GOMAXPROCS. Cancelling the
// context abandons queued jobs; running ones finish.
func RunPool(ctx context.Context, jobs []Job, workers int, log zerolog.Logger) []Result {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(jobs) {
		workers = len(jobs)
	}

	results := make([]Result, len(jobs))
	indices := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range indices {
				job := jobs[idx]
				eng, filter := job.Build()
				report, err := New(job.Cfg, eng, filter, log).Run(job.Bars)
				results[idx] = Result{Name: job.Name, Report: report, Err: err}
			}
		}()
	}

	for idx := range jobs {
		select {
		case <-ctx.Done():
			results[idx] = Result{Name: jobs[idx].Name, Err: ctx.Err()}
			continue
		case indices <- idx:
		}
	}
	close(indices)
	wg.Wait()
	return results
}
