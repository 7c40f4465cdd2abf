package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/RyanBlaney/ringdown/batch"
	"github.com/RyanBlaney/ringdown/config"
	"github.com/RyanBlaney/ringdown/logging"
	"github.com/RyanBlaney/ringdown/store"
	"github.com/RyanBlaney/ringdown/trace"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 2
	}

	initLogging(cfg)

	if len(cfg.Files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: ringdown [flags] FILE...")
		config.NewFlagSet("ringdown").PrintDefaults()
		return 2
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(ctx, cancel)

	opts := batch.Options{
		Analysis:          cfg.AnalysisConfig(),
		Workers:           cfg.WorkerCount(),
		ExportFormat:      cfg.Export,
		ExportDir:         cfg.ExportDir,
		ExportCompression: cfg.ExportCompression,
		Decoder: &trace.DecoderConfig{
			VoltsPerUnit: cfg.VoltsPerUnit,
			MaxFileSize:  trace.DefaultDecoderConfig().MaxFileSize,
		},
	}

	if cfg.Cache {
		repo, err := store.NewRepository(cfg.CacheDB)
		if err != nil {
			logging.Error(err, "Failed to open result cache; continuing without it")
		} else {
			defer repo.Close()
			opts.Store = repo
		}
	}

	runner, err := batch.NewRunner(opts)
	if err != nil {
		logging.Error(err, "Invalid analysis options")
		return 2
	}

	results := runner.Run(ctx, cfg.Files)
	return report(stdout, results)
}

func initLogging(cfg *config.Config) {
	var logger *logging.DefaultLogger
	if cfg.LogFormat == "json" {
		logger = logging.NewJSONLogger(os.Stderr, cfg.Level())
	} else {
		logger = logging.NewDefaultLogger()
		logger.SetLevel(cfg.Level())
	}
	logging.SetGlobalLogger(logger)
	logging.Debug("Config loaded", logging.Fields{"files": len(cfg.Files), "workers": cfg.WorkerCount()})
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		logging.Info("Received termination signal; skipping pending files")
		cancel()
	case <-ctx.Done():
	}
}

// report prints one summary line per file and returns the exit status:
// 0 when every file was analyzed, 1 when any failed.
func report(w io.Writer, results []batch.FileResult) int {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tFREQ (kHz)\tDAMPING (1/s)\tTAU (us)\tLOG DEC\tCYCLES\tSTATUS")

	status := 0
	for _, r := range results {
		if r.Err != nil {
			status = 1
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t-\terror: %v\n", r.Path, r.Err)
			continue
		}

		res := r.Result
		note := "ok"
		switch {
		case len(res.Warnings) > 0:
			note = res.Warnings[0].Message
		case res.Anomalous:
			note = "envelope not decaying"
		}
		if r.Cached {
			note += " (cached)"
		}

		tau := "-"
		if res.Fit != nil {
			tau = fmt.Sprintf("%.1f", res.Fit.TimeConstantUs())
		}

		if m := res.Metrics; m != nil {
			fmt.Fprintf(tw, "%s\t%.4f\t%.2f\t%s\t%.4f\t%d\t%s\n",
				r.Path, m.FrequencyKhz, m.DampingCoefficientPerSecond, tau, m.LogDecrement, m.ValidCycleCount, note)
		} else {
			fmt.Fprintf(tw, "%s\t-\t-\t%s\t-\t-\t%s\n", r.Path, tau, note)
		}
	}

	tw.Flush()
	return status
}
