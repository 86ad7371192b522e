package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/handwriting-extractor/internal/app"
	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	repo "github.com/joseph-ayodele/handwriting-extractor/internal/repository"
	"github.com/joseph-ayodele/handwriting-extractor/internal/server"
	"github.com/joseph-ayodele/handwriting-extractor/internal/tracing"
)

const Version = "1.0.0"

// cliEnv holds what subcommands share. The database and the extraction components are
// opened on first use so that commands which do not need them start without them.
type cliEnv struct {
	cfg    *common.Config
	logger *slog.Logger
	sink   tracing.Sink
	db     *repo.DB
	comps  *app.Components
}

var (
	env   = &cliEnv{}
	dbURL string
)

func (e *cliEnv) openDB(ctx context.Context) (*repo.DB, error) {
	if e.db != nil {
		return e.db, nil
	}
	db, err := server.ConnectDB(ctx, e.cfg.Database, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	e.db = db
	return db, nil
}

func (e *cliEnv) components() (*app.Components, error) {
	if e.comps != nil {
		return e.comps, nil
	}
	e.sink = tracing.NewSink(e.cfg.Tracing, e.logger)
	comps, err := app.Build(e.cfg, e.sink, e.logger)
	if err != nil {
		return nil, err
	}
	e.comps = comps
	return comps, nil
}

func (e *cliEnv) close() {
	if e.sink != nil {
		// Background: the command context may already be cancelled by Ctrl+C.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.sink.Close(ctx)
		e.sink = nil
	}
	if e.db != nil {
		repo.Close(e.db, e.logger)
		e.db = nil
	}
}

var rootCmd = &cobra.Command{
	Use:           "formctl",
	Short:         "Extract, store and export handwritten form data",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("APP_ENV") != "production" {
			_ = godotenv.Load()
		}
		env.logger = app.NewLogger()
		slog.SetDefault(env.logger)

		env.cfg = common.LoadConfig()
		if dbURL != "" {
			env.cfg.Database.DSN = dbURL
		}
		return env.cfg.Validate()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		env.close()
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		env.close()
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "database DSN (default: $DB_URL or file:forms.db)")
}

func main() {
	Execute()
}
