package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/sync/semaphore"

	"github.com/joseph-ayodele/handwriting-extractor/constants"
	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/export"
	"github.com/joseph-ayodele/handwriting-extractor/internal/extract"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
	"github.com/joseph-ayodele/handwriting-extractor/internal/pipeline"
	"github.com/joseph-ayodele/handwriting-extractor/internal/repository"
	"github.com/joseph-ayodele/handwriting-extractor/internal/storage"
	"github.com/joseph-ayodele/handwriting-extractor/internal/tracing"
)

// Deps are the collaborators behind the HTTP API. Forms, DB, Exporter and Classifier may be
// nil; the routes that need them then answer 503.
type Deps struct {
	Processor  *pipeline.Processor
	Forms      repository.FormRepository
	DB         *repository.DB
	Exporter   *export.Service
	Classifier *extract.Classifier
	Archiver   storage.Archiver
	Sink       tracing.Sink
}

type Server struct {
	cfg    common.ServerConfig
	deps   Deps
	logger *slog.Logger

	limiters   sync.Map // client ip -> *rate.Limiter
	uploads    *semaphore.Weighted
	createForm *jsonschema.Schema
	updateForm *jsonschema.Schema

	engine *gin.Engine
}

func New(cfg common.ServerConfig, deps Deps, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Processor == nil {
		return nil, errors.New("server: processor is required")
	}
	if deps.Archiver == nil {
		deps.Archiver = storage.Noop{}
	}
	if deps.Sink == nil {
		deps.Sink = tracing.Noop{}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = constants.MaxUploadBytes
	}
	if cfg.MaxConcurrentUploads <= 0 {
		cfg.MaxConcurrentUploads = 4
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = filepath.Join(os.TempDir(), "handwriting-uploads")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}

	createSchema, err := llm.CompileSchema(createFormSchema)
	if err != nil {
		return nil, fmt.Errorf("create form schema: %w", err)
	}
	updateSchema, err := llm.CompileSchema(updateFormSchema)
	if err != nil {
		return nil, fmt.Errorf("update form schema: %w", err)
	}

	s := &Server{
		cfg:        cfg,
		deps:       deps,
		logger:     logger,
		uploads:    semaphore.NewWeighted(cfg.MaxConcurrentUploads),
		createForm: createSchema,
		updateForm: updateSchema,
	}
	s.engine = s.routes()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(
		s.recovery(),
		requestID(s.logger),
		s.accessLog(),
		corsMiddleware(),
		s.rateLimit(),
		s.traceRequest(),
	)

	r.GET("/", s.handleIndex)
	r.GET("/health", s.handleHealth)
	r.POST("/upload", s.limitUploads(), s.handleUpload)

	forms := r.Group("/forms")
	{
		forms.GET("", s.handleListForms)
		forms.POST("", s.handleCreateForm)
		forms.GET("/export", s.handleExportForms)
		forms.GET("/:id", s.handleGetForm)
		forms.PUT("/:id", s.handleUpdateForm)
		forms.DELETE("/:id", s.handleDeleteForm)
		forms.POST("/:id/classify", s.handleClassifyForm)
	}

	r.NoRoute(func(c *gin.Context) {
		abortError(c, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	return r
}

// Run serves HTTP on cfg.HTTPAddr until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http.listen", "addr", s.cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http.shutdown", "timeout", s.cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}
