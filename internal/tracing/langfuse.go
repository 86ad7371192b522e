package tracing

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
)

const ingestionPath = "/api/public/ingestion"

type event struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"`
	Type      string         `json:"type"`
	Body      map[string]any `json:"body"`
}

// Langfuse buffers observations and ships them to the ingestion API in batches from a
// single background goroutine.
type Langfuse struct {
	cfg      common.TracingConfig
	http     *http.Client
	logger   *slog.Logger
	endpoint string
	auth     string

	events  chan event
	stop    chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Int64
}

var _ Sink = (*Langfuse)(nil)

func NewLangfuse(cfg common.TracingConfig, logger *slog.Logger) *Langfuse {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "https://cloud.langfuse.com"
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	l := &Langfuse{
		cfg:      cfg,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
		endpoint: strings.TrimRight(cfg.Host, "/") + ingestionPath,
		auth:     "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.PublicKey+":"+cfg.SecretKey)),
		events:   make(chan event, cfg.BatchSize*20),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go l.run()
	logger.Info("tracing.langfuse.started", "host", cfg.Host, "flush_interval", cfg.FlushInterval.String(), "batch_size", cfg.BatchSize)
	return l
}

func (l *Langfuse) Enabled() bool { return true }

// Dropped counts events discarded because the buffer was full.
func (l *Langfuse) Dropped() int64 { return l.dropped.Load() }

func (l *Langfuse) StartSpan(ctx context.Context, name string, input any, metadata map[string]any) Span {
	if parent, ok := SpanFromContext(ctx).(*lfSpan); ok && parent.sink == l {
		return parent.Span(name, input, metadata)
	}
	traceID := uuid.New().String()
	body := map[string]any{"id": traceID, "name": name, "timestamp": timestamp()}
	putIf(body, "input", input)
	putMeta(body, metadata)
	l.enqueue("trace-create", body)
	return &lfSpan{sink: l, traceID: traceID, id: traceID, kind: kindTrace}
}

// Close stops accepting events, flushes what is buffered and waits for the flush or ctx.
func (l *Langfuse) Close(ctx context.Context) error {
	if l.closed.CompareAndSwap(false, true) {
		close(l.stop)
	}
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Langfuse) enqueue(typ string, body map[string]any) {
	if l.closed.Load() {
		return
	}
	e := event{ID: uuid.New().String(), Timestamp: timestamp(), Type: typ, Body: body}
	select {
	case l.events <- e:
	default:
		n := l.dropped.Add(1)
		l.logger.Warn("tracing.dropped", "type", typ, "dropped_total", n)
	}
}

func (l *Langfuse) run() {
	defer close(l.done)
	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]event, 0, l.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		l.send(batch)
		batch = make([]event, 0, l.cfg.BatchSize)
	}

	for {
		select {
		case e := <-l.events:
			batch = append(batch, e)
			if len(batch) >= l.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-l.stop:
			for {
				select {
				case e := <-l.events:
					batch = append(batch, e)
					if len(batch) >= l.cfg.BatchSize {
						flush()
					}
				default:
					flush()
					return
				}
			}
		}
	}
}

func (l *Langfuse) send(batch []event) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), l.http.Timeout)
	defer cancel()

	_, err := llm.PostJSON(ctx, l.http, llm.JSONCall{
		Provider: "langfuse",
		URL:      l.endpoint,
		Body:     map[string]any{"batch": batch},
		Header:   http.Header{"Authorization": {l.auth}},
	}, l.logger)
	if err != nil {
		l.logger.Warn("tracing.flush_error",
			"events", len(batch),
			"error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return
	}
	l.logger.Debug("tracing.flush_ok", "events", len(batch), "elapsed_ms", time.Since(start).Milliseconds())
}

const (
	kindTrace      = "trace"
	kindSpan       = "span"
	kindGeneration = "generation"
)

type lfSpan struct {
	sink    *Langfuse
	traceID string
	id      string
	kind    string
	ended   atomic.Bool
}

func (s *lfSpan) TraceID() string { return s.traceID }

func (s *lfSpan) child(kind, name, model string, input any, metadata map[string]any) Span {
	id := uuid.New().String()
	body := map[string]any{
		"id":        id,
		"traceId":   s.traceID,
		"name":      name,
		"startTime": timestamp(),
	}
	if s.kind != kindTrace {
		body["parentObservationId"] = s.id
	}
	if model != "" {
		body["model"] = model
	}
	putIf(body, "input", input)
	putMeta(body, metadata)
	s.sink.enqueue(kind+"-create", body)
	return &lfSpan{sink: s.sink, traceID: s.traceID, id: id, kind: kind}
}

func (s *lfSpan) Span(name string, input any, metadata map[string]any) Span {
	return s.child(kindSpan, name, "", input, metadata)
}

func (s *lfSpan) Generation(name, model string, input any, metadata map[string]any) Span {
	return s.child(kindGeneration, name, model, input, metadata)
}

// Update attaches output. On the root the trace itself is upserted.
func (s *lfSpan) Update(output any, metadata map[string]any) {
	body := map[string]any{"id": s.id}
	putIf(body, "output", output)
	putMeta(body, metadata)
	if s.kind == kindTrace {
		s.sink.enqueue("trace-create", body)
		return
	}
	body["traceId"] = s.traceID
	s.sink.enqueue(s.kind+"-update", body)
}

func (s *lfSpan) End() {
	if s.kind == kindTrace || !s.ended.CompareAndSwap(false, true) {
		return
	}
	s.sink.enqueue(s.kind+"-update", map[string]any{
		"id":      s.id,
		"traceId": s.traceID,
		"endTime": timestamp(),
	})
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func putIf(body map[string]any, key string, v any) {
	if v != nil {
		body[key] = v
	}
}

func putMeta(body map[string]any, metadata map[string]any) {
	if len(metadata) > 0 {
		body["metadata"] = metadata
	}
}
