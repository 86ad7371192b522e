package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/handwriting-extractor/internal/async"
	"github.com/joseph-ayodele/handwriting-extractor/internal/ingest"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
	"github.com/joseph-ayodele/handwriting-extractor/internal/pipeline"
	repo "github.com/joseph-ayodele/handwriting-extractor/internal/repository"
)

type extractOptions struct {
	Language   string
	Save       bool
	Workers    int
	SkipHidden bool
	Timeout    time.Duration
}

var extractOpts extractOptions

var extractCmd = &cobra.Command{
	Use:   "extract <file|dir>",
	Short: "Extract handwriting from an image, or from every image in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtract(cmd.Context(), args[0], extractOpts)
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractOpts.Language, "language", "l", "English", "Language the forms are written in")
	extractCmd.Flags().BoolVarP(&extractOpts.Save, "save", "s", false, "Store successful results in the database")
	extractCmd.Flags().IntVarP(&extractOpts.Workers, "workers", "w", 4, "Parallel extractions when given a directory")
	extractCmd.Flags().BoolVar(&extractOpts.SkipHidden, "skip-hidden", true, "Ignore dot files and directories")
	extractCmd.Flags().DurationVar(&extractOpts.Timeout, "timeout", 3*time.Minute, "Per-image time limit")
	rootCmd.AddCommand(extractCmd)
}

// extractor runs one image through the processor and optionally stores the result.
type extractor struct {
	proc  *pipeline.Processor
	forms repo.FormRepository
}

type extractOutcome struct {
	Path     string
	Envelope pipeline.Envelope
	FormID   int64
	SaveErr  error
}

func newExtractor(ctx context.Context, save bool) (*extractor, error) {
	comps, err := env.components()
	if err != nil {
		return nil, err
	}
	if !comps.Processor.Ready() {
		return nil, fmt.Errorf("vision provider %q is not configured", env.cfg.Vision.Provider)
	}
	x := &extractor{proc: comps.Processor}
	if save {
		db, err := env.openDB(ctx)
		if err != nil {
			return nil, err
		}
		x.forms = repo.NewFormRepository(db, env.logger)
	}
	return x, nil
}

func (x *extractor) run(ctx context.Context, path, language string) extractOutcome {
	out := extractOutcome{Path: path}
	out.Envelope = x.proc.Run(ctx, pipeline.Request{
		ImagePath: path,
		Filename:  filepath.Base(path),
		Language:  language,
	})
	if !out.Envelope.Success || x.forms == nil || out.Envelope.ExtractedData == nil {
		return out
	}
	doc, err := llm.MarshalCanonical(*out.Envelope.ExtractedData)
	if err != nil {
		out.SaveErr = err
		return out
	}
	form, err := x.forms.Create(ctx, out.Envelope.Filename, string(doc))
	if err != nil {
		out.SaveErr = err
		return out
	}
	out.FormID = form.ID
	return out
}

func runExtract(ctx context.Context, target string, opts extractOptions) error {
	info, err := os.Stat(target)
	if err != nil {
		return err
	}
	x, err := newExtractor(ctx, opts.Save)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
		out := x.run(runCtx, target, opts.Language)
		if err := printEnvelope(out); err != nil {
			return err
		}
		if !out.Envelope.Success {
			return fmt.Errorf("extraction failed: %s", out.Envelope.Error)
		}
		return nil
	}

	scan, err := ingest.ScanDirectory(target, opts.SkipHidden)
	if err != nil {
		return err
	}
	for _, p := range scan.Skipped {
		fmt.Fprintf(os.Stderr, "skipping %s: only JPG and PNG images can be processed\n", p)
	}
	if len(scan.Images) == 0 {
		fmt.Println("No images found.")
		return nil
	}

	outcomes, err := extractAll(ctx, x, scan.Images, opts)
	if err != nil {
		return err
	}
	printSummary(outcomes)

	failed := 0
	for _, o := range outcomes {
		if !o.Envelope.Success {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d extractions failed", failed, len(outcomes))
	}
	return nil
}

// extractAll fans the images out over the worker queue and waits for all of them.
func extractAll(ctx context.Context, x *extractor, images []string, opts extractOptions) ([]extractOutcome, error) {
	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Extracting"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	var mu sync.Mutex
	outcomes := make([]extractOutcome, 0, len(images))
	q := async.NewProcessorQueue(func(ctx context.Context, job async.Job) error {
		out := x.run(ctx, job.Path, job.Language)
		mu.Lock()
		outcomes = append(outcomes, out)
		mu.Unlock()
		_ = bar.Add(1)
		if !out.Envelope.Success {
			return fmt.Errorf("%s", out.Envelope.Error)
		}
		return nil
	}, env.logger,
		async.WithWorkers(opts.Workers),
		async.WithQueueSize(opts.Workers*2),
		async.WithProcessTimeout(opts.Timeout),
		async.WithBaseContext(ctx),
	)

	var enqueueErr error
	for _, p := range images {
		if err := q.Enqueue(ctx, async.Job{Path: p, Filename: filepath.Base(p), Language: opts.Language}); err != nil {
			enqueueErr = err
			break
		}
	}
	q.Shutdown(context.Background())
	_ = bar.Finish()

	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Path < outcomes[j].Path })
	return outcomes, enqueueErr
}

func printEnvelope(out extractOutcome) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out.Envelope); err != nil {
		return err
	}
	switch {
	case out.SaveErr != nil:
		fmt.Fprintf(os.Stderr, "warning: result not saved: %v\n", out.SaveErr)
	case out.FormID != 0:
		fmt.Fprintf(os.Stderr, "saved as form %d\n", out.FormID)
	}
	return nil
}

func printSummary(outcomes []extractOutcome) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "FILE\tSTATUS\tTRANSLATED\tFORM ID\tELAPSED")
	fmt.Fprintln(w, "----\t------\t----------\t-------\t-------")
	for _, o := range outcomes {
		status := "ok"
		if !o.Envelope.Success {
			status = string(o.Envelope.ErrorType)
		}
		formID := "-"
		if o.FormID != 0 {
			formID = fmt.Sprint(o.FormID)
		} else if o.SaveErr != nil {
			formID = "save failed"
		}
		fmt.Fprintf(w, "%s\t%s\t%v\t%s\t%dms\n", o.Path, status, o.Envelope.Translated, formID, o.Envelope.ElapsedMS)
	}
	w.Flush()
}
