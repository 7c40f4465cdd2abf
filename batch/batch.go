// Package batch analyzes many trace files concurrently.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/RyanBlaney/ringdown/analysis"
	"github.com/RyanBlaney/ringdown/export"
	"github.com/RyanBlaney/ringdown/logging"
	"github.com/RyanBlaney/ringdown/store"
	"github.com/RyanBlaney/ringdown/trace"
)

// Options configures a Runner.
type Options struct {
	Analysis *analysis.Config
	Decoder  *trace.DecoderConfig
	Workers  int // 0 = one per CPU

	// Store, when set, is consulted before analysis and updated after it.
	Store store.Repository

	// ExportFormat is "", "json" or "parquet".
	ExportFormat      string
	ExportDir         string
	ExportCompression string // parquet codec
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Path       string
	Result     *analysis.Result
	Cached     bool
	ExportPath string
	Err        error
}

// Runner fans files out to a bounded pool of workers, each owning its own
// Analyzer.
type Runner struct {
	opts    Options
	decoder *trace.Decoder
	logger  logging.Logger
}

// NewRunner validates opts and creates a runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Analysis == nil {
		opts.Analysis = analysis.DefaultConfig()
	}
	if _, err := analysis.NewAnalyzer(opts.Analysis); err != nil {
		return nil, err
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	switch opts.ExportFormat {
	case "", "json", "parquet":
	default:
		return nil, fmt.Errorf("unsupported export format %q", opts.ExportFormat)
	}

	return &Runner{
		opts:    opts,
		decoder: trace.NewDecoder(opts.Decoder),
		logger: logging.WithFields(logging.Fields{
			"component": "batch_runner",
			"workers":   opts.Workers,
		}),
	}, nil
}

// Run processes every path and returns the outcomes in input order. Files not
// yet started when ctx is cancelled carry ctx.Err().
func (r *Runner) Run(ctx context.Context, paths []string) []FileResult {
	results := make([]FileResult, len(paths))
	for i, p := range paths {
		results[i].Path = p
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := min(r.opts.Workers, len(paths))
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			analyzer, err := analysis.NewAnalyzer(r.opts.Analysis)
			if err != nil {
				r.logger.Error(err, "Failed to create analyzer")
			}
			for i := range jobs {
				if err != nil {
					results[i].Err = err
					continue
				}
				r.process(ctx, analyzer, &results[i])
			}
		}()
	}

	next := 0
feed:
	for ; next < len(paths); next++ {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- next:
		}
	}
	close(jobs)
	wg.Wait()

	for i := next; i < len(paths); i++ {
		results[i].Err = ctx.Err()
	}
	if next < len(paths) {
		r.logger.Info("Batch cancelled", logging.Fields{
			"dispatched": next,
			"skipped":    len(paths) - next,
		})
	}

	return results
}

func (r *Runner) process(ctx context.Context, analyzer *analysis.Analyzer, out *FileResult) {
	logger := r.logger.WithFields(logging.Fields{"file": out.Path})

	tr, err := r.decoder.DecodeFile(out.Path)
	if err != nil {
		out.Err = err
		return
	}

	if r.opts.Store != nil && !tr.Empty() {
		cfg := analyzer.Config()
		cached, found, err := r.opts.Store.Get(ctx, tr.ID, &cfg)
		if err != nil {
			logger.Warn("Result cache lookup failed", logging.Fields{"error": err.Error()})
		} else if found {
			cached.Source = out.Path
			out.Result = cached
			out.Cached = true
		}
	}

	if out.Result == nil {
		res, err := analyzer.Analyze(tr)
		if err != nil {
			out.Err = err
			return
		}
		out.Result = res

		if r.opts.Store != nil {
			if err := r.opts.Store.Put(ctx, res); err != nil {
				logger.Warn("Result cache update failed", logging.Fields{"error": err.Error()})
			}
		}
	}

	if r.opts.ExportFormat != "" {
		path, err := export.WriteFile(r.opts.ExportDir, r.opts.ExportFormat, r.opts.ExportCompression, out.Result)
		if err != nil {
			out.Err = err
			return
		}
		out.ExportPath = path
	}

	logger.Debug("File analyzed", logging.Fields{
		"cached":   out.Cached,
		"complete": out.Result.Complete(),
	})
}
