package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/handwriting-extractor/internal/app"
	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/export"
	repo "github.com/joseph-ayodele/handwriting-extractor/internal/repository"
	"github.com/joseph-ayodele/handwriting-extractor/internal/server"
	"github.com/joseph-ayodele/handwriting-extractor/internal/storage"
	"github.com/joseph-ayodele/handwriting-extractor/internal/tracing"
)

func main() {
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	logger := app.NewLogger()
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := tracing.NewSink(cfg.Tracing, logger)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sink.Close(closeCtx); err != nil {
			logger.Warn("tracing.close_error", "error", err)
		}
	}()

	comps, err := app.Build(cfg, sink, logger)
	if err != nil {
		logger.Error("failed to build components", "error", err)
		os.Exit(1)
	}
	if !comps.Processor.Ready() {
		logger.Warn("vision provider not configured; uploads will return 503", "provider", cfg.Vision.Provider)
	}

	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer repo.Close(db, logger)

	if err := server.PingDB(ctx, db, logger, 5*time.Second); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	archiver, err := storage.NewArchiver(ctx, cfg.Archive, logger)
	if err != nil {
		logger.Warn("archive disabled", "error", err)
		archiver = storage.Noop{}
	}

	forms := repo.NewFormRepository(db, logger)
	srv, err := server.New(cfg.Server, server.Deps{
		Processor:  comps.Processor,
		Forms:      forms,
		DB:         db,
		Exporter:   export.NewService(forms, logger),
		Classifier: comps.Classifier,
		Archiver:   archiver,
		Sink:       sink,
	}, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })

	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
			os.Exit(1)
		}
		sidecar := server.NewHealthSidecar(logger)
		sidecar.SetReady(comps.Processor.Ready())
		g.Go(func() error { return sidecar.Serve(gctx, lis) })
	}

	logger.Info("handwriting-extractor started", "http_addr", cfg.Server.HTTPAddr, "grpc_addr", cfg.Server.GRPCAddr)
	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", "error", err)
		stop()
		return
	}
	logger.Info("handwriting-extractor stopped")
}
