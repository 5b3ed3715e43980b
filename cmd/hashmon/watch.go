package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ivoronin/hashmon/internal/baseline"
	"github.com/ivoronin/hashmon/internal/config"
	"github.com/ivoronin/hashmon/internal/hasher"
	"github.com/ivoronin/hashmon/internal/logging"
	"github.com/ivoronin/hashmon/internal/notify"
	"github.com/ivoronin/hashmon/internal/worker"
)

// watchOptions holds CLI flags for the watch command.
type watchOptions struct {
	maxSizeStr   string
	chunkSizeStr string
	interval     time.Duration
	queueSize    int
	sendTimeout  time.Duration
	baselineFile string
	logLevel     string
	logFile      string
	noProgress   bool
	verbose      bool
	jsonOut      bool
	once         bool
}

// newWatchCmd creates the watch subcommand.
func newWatchCmd() *cobra.Command {
	opts := &watchOptions{
		maxSizeStr:   "100MiB",
		chunkSizeStr: "64KiB",
		interval:     config.DefaultInterval,
		queueSize:    worker.DefaultQueueSize,
		sendTimeout:  worker.DefaultSendTimeout,
		logLevel:     "info",
	}

	cmd := &cobra.Command{
		Use:   "watch [paths...]",
		Short: "Continuously hash files and report integrity changes",
		Long: `Hashes the given files on every pass (SHA-256 and MD5) and reports results.
Directories and missing paths are skipped with a warning; files above
--max-size are never opened. With --baseline-file, digests are compared
against the previous run and content changes are reported.

Runtime control via signals: SIGUSR1 toggles pause/resume, SIGINT or
SIGTERM stops the worker after the file currently being hashed completes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runWatch(args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.maxSizeStr, "max-size", "m", opts.maxSizeStr, "Maximum file size to hash (e.g., 100, 1K, 10M, 1G)")
	cmd.Flags().StringVar(&opts.chunkSizeStr, "chunk-size", opts.chunkSizeStr, "Read buffer size for hashing")
	cmd.Flags().DurationVarP(&opts.interval, "interval", "i", opts.interval, "Delay between scan passes")
	cmd.Flags().IntVar(&opts.queueSize, "queue-size", opts.queueSize, "Outbound result queue capacity")
	cmd.Flags().DurationVar(&opts.sendTimeout, "send-timeout", opts.sendTimeout, "How long to wait on a full result queue before dropping")
	cmd.Flags().StringVar(&opts.baselineFile, "baseline-file", "", "Path to baseline digest database (enables change detection)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", opts.logLevel, "Log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.logFile, "log-file", "", "Also write logs to this file")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Disable progress output")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print every hash record to stdout")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Print hash records as JSON lines")
	cmd.Flags().BoolVar(&opts.once, "once", false, "Run a single scan pass and exit")

	return cmd
}

// runWatch wires the worker: config, logger, baseline store, notification
// sink, signal-driven controller, and the result consumer.
func runWatch(paths []string, opts *watchOptions) error {
	maxSize, err := parseSize(opts.maxSizeStr)
	if err != nil {
		return fmt.Errorf("invalid --max-size: %w", err)
	}
	chunkSize, err := parseSize(opts.chunkSizeStr)
	if err != nil {
		return fmt.Errorf("invalid --chunk-size: %w", err)
	}
	absPaths, err := normalizePaths(paths)
	if err != nil {
		return err
	}

	cfg := &config.Config{
		MaxFileSize:  maxSize,
		ChunkSize:    chunkSize,
		WatchedPaths: absPaths,
		Interval:     opts.interval,
	}

	writers := []io.Writer{os.Stderr}
	if opts.logFile != "" {
		f, err := os.OpenFile(opts.logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, f)
	}
	logger, err := logging.New(opts.logLevel, writers...)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Close() }()
	monLog := logger.With("logger", "SystemMonitor")

	base, err := baseline.Open(opts.baselineFile)
	if err != nil {
		return err
	}
	defer func() { _ = base.Close() }()

	ctrl := make(chan worker.Command, 16)
	w, err := worker.New(cfg, ctrl, worker.Options{
		QueueSize:    opts.queueSize,
		SendTimeout:  opts.sendTimeout,
		ShowProgress: !opts.noProgress,
		Once:         opts.once,
	}, monLog, notify.LogSink{Logger: monLog}, base)
	if err != nil {
		return err
	}

	stopSignals := make(chan os.Signal, 1)
	signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	go forwardSignals(stopSignals, ctrl, monLog)
	defer signal.Stop(stopSignals)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for res := range w.Results() {
			printResult(res, opts)
		}
	}()

	w.Run(context.Background())
	<-done
	return nil
}

// forwardSignals translates OS signals into control commands.
// SIGUSR1 toggles pause/resume; anything else stops the worker.
func forwardSignals(sigCh <-chan os.Signal, ctrl chan<- worker.Command, logger *slog.Logger) {
	paused := false
	for sig := range sigCh {
		if sig == syscall.SIGUSR1 {
			if paused {
				ctrl <- worker.Resume{}
			} else {
				ctrl <- worker.Pause{}
			}
			paused = !paused
			continue
		}
		logger.Info("shutting down", "signal", sig.String())
		ctrl <- worker.Stop{}
		return
	}
}

// printResult writes one hash record to stdout per the output flags.
// The progress line is cleared first to avoid visual collision.
func printResult(res *hasher.Result, opts *watchOptions) {
	if opts.jsonOut {
		data, err := json.Marshal(res)
		if err != nil {
			return
		}
		fmt.Fprintf(os.Stderr, "\r\033[K")
		fmt.Println(string(data))
		return
	}
	if opts.verbose {
		fmt.Fprintf(os.Stderr, "\r\033[K")
		fmt.Printf("%s  %s  %s\n", res.SHA256, humanize.IBytes(uint64(res.FileSize)), res.Path)
	}
}
