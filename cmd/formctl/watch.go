package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/handwriting-extractor/internal/async"
	"github.com/joseph-ayodele/handwriting-extractor/internal/ingest"
)

type watchOptions struct {
	extractOptions
	InitialScan bool
	Debounce    time.Duration
}

var watchOpts watchOptions

var watchCmd = &cobra.Command{
	Use:   "watch <dir>...",
	Short: "Extract every image dropped into the watched directories",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd.Context(), args, watchOpts)
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchOpts.Language, "language", "l", "English", "Language the forms are written in")
	watchCmd.Flags().BoolVarP(&watchOpts.Save, "save", "s", true, "Store successful results in the database")
	watchCmd.Flags().IntVarP(&watchOpts.Workers, "workers", "w", 2, "Parallel extractions")
	watchCmd.Flags().BoolVar(&watchOpts.SkipHidden, "skip-hidden", true, "Ignore dot files and directories")
	watchCmd.Flags().DurationVar(&watchOpts.Timeout, "timeout", 3*time.Minute, "Per-image time limit")
	watchCmd.Flags().BoolVar(&watchOpts.InitialScan, "initial-scan", false, "Also process images already present")
	watchCmd.Flags().DurationVar(&watchOpts.Debounce, "debounce", 500*time.Millisecond, "Quiet period before a new file is processed")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context, roots []string, opts watchOptions) error {
	x, err := newExtractor(ctx, opts.Save)
	if err != nil {
		return err
	}

	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       roots,
		InitialScan: opts.InitialScan,
		Debounce:    opts.Debounce,
		SkipHidden:  opts.SkipHidden,
		Logger:      env.logger,
	})
	if err != nil {
		return err
	}

	q := async.NewProcessorQueue(func(ctx context.Context, job async.Job) error {
		out := x.run(ctx, job.Path, job.Language)
		if !out.Envelope.Success {
			fmt.Printf("FAIL  %s  %s\n", job.Path, out.Envelope.Error)
			return fmt.Errorf("%s", out.Envelope.Error)
		}
		switch {
		case out.FormID != 0:
			fmt.Printf("OK    %s  form %d  %dms\n", job.Path, out.FormID, out.Envelope.ElapsedMS)
		case out.SaveErr != nil:
			fmt.Printf("OK    %s  not saved: %v\n", job.Path, out.SaveErr)
		default:
			fmt.Printf("OK    %s  %dms\n", job.Path, out.Envelope.ElapsedMS)
		}
		return nil
	}, env.logger,
		async.WithWorkers(opts.Workers),
		async.WithProcessTimeout(opts.Timeout),
		async.WithBaseContext(ctx),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
		defer cancel()
		q.Shutdown(shutdownCtx)
	}()

	env.logger.Info("watch.started", "roots", roots, "language", opts.Language, "save", opts.Save)
	for paths != nil || errs != nil {
		select {
		case p, ok := <-paths:
			if !ok {
				paths = nil
				continue
			}
			job := async.Job{Path: p, Filename: filepath.Base(p), Language: opts.Language}
			if err := q.Enqueue(ctx, job); err != nil {
				env.logger.Warn("watch.enqueue_error", "path", p, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			env.logger.Warn("watch.error", "error", err)
		}
	}
	env.logger.Info("watch.stopped")
	return nil
}
