package tracing

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/extract"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm/llmtest"
)

type collector struct {
	mu     sync.Mutex
	events []event
	auth   []string
}

func (c *collector) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ingestionPath {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Batch []event `json:"batch"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		c.mu.Lock()
		c.events = append(c.events, body.Batch...)
		c.auth = append(c.auth, r.Header.Get("Authorization"))
		c.mu.Unlock()
		w.WriteHeader(http.StatusMultiStatus)
	}
}

func (c *collector) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

func TestLangfuseBatchesAndDrainsOnClose(t *testing.T) {
	col := &collector{}
	srv := httptest.NewServer(col.handler(t))
	defer srv.Close()

	sink := NewLangfuse(common.TracingConfig{
		PublicKey: "pk", SecretKey: "sk", Host: srv.URL,
		FlushInterval: time.Hour, BatchSize: 100,
	}, nil)

	root := sink.StartSpan(context.Background(), "api_request_POST_/upload", map[string]any{"a": 1}, map[string]any{"method": "POST"})
	ctx := ContextWithSpan(context.Background(), root)
	child := sink.StartSpan(ctx, "handwriting_extraction", nil, nil)
	gen := child.Generation("vision_extraction", "vl", nil, nil)
	gen.Update(map[string]any{"Name": "JOHN"}, nil)
	gen.End()
	gen.End()
	child.End()
	root.Update(map[string]any{"status_code": 200}, nil)

	ctxClose, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sink.Close(ctxClose); err != nil {
		t.Fatalf("Close: %v", err)
	}

	want := []string{"trace-create", "span-create", "generation-create", "generation-update", "generation-update", "span-update", "trace-create"}
	got := col.types()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	col.mu.Lock()
	defer col.mu.Unlock()
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("pk:sk"))
	if col.auth[0] != wantAuth {
		t.Errorf("auth = %q", col.auth[0])
	}
	traceID := col.events[0].Body["id"]
	for _, e := range col.events[1:6] {
		if e.Body["traceId"] != traceID {
			t.Errorf("%s not attached to trace: %v", e.Type, e.Body)
		}
	}
	if col.events[2].Body["parentObservationId"] != col.events[1].Body["id"] {
		t.Error("generation should hang off the child span")
	}
	if _, ok := col.events[1].Body["parentObservationId"]; ok {
		t.Error("top-level span should not have a parent observation")
	}
}

func TestLangfuseFlushFailureIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink := NewLangfuse(common.TracingConfig{PublicKey: "pk", SecretKey: "sk", Host: srv.URL, BatchSize: 1, FlushInterval: time.Hour}, nil)
	span := sink.StartSpan(context.Background(), "x", nil, nil)
	span.Update("out", nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sink.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// events after close are ignored
	sink.StartSpan(context.Background(), "late", nil, nil).End()
}

func TestNewSinkSelectsNoop(t *testing.T) {
	if NewSink(common.TracingConfig{PublicKey: "pk"}, nil).Enabled() {
		t.Fatal("missing secret key must disable tracing")
	}
	s := Noop{}.StartSpan(context.Background(), "x", nil, nil)
	s.Update(nil, nil)
	s.End()
	if s.TraceID() != "" {
		t.Error("noop span has no trace id")
	}
}

type enabledRecorder struct {
	Noop
	started []string
}

func (r *enabledRecorder) Enabled() bool { return true }

func (r *enabledRecorder) StartSpan(_ context.Context, name string, _ any, _ map[string]any) Span {
	r.started = append(r.started, name)
	return noopSpan{}
}

func TestDecoratorsPassResultsThrough(t *testing.T) {
	rec := &enabledRecorder{}

	vision := &llmtest.Model{Configured: true, ModelName: "vl", Reply: `{"Nombre":"JUAN"}`}
	ex := NewTracedExtractor(extract.NewVisionClient(vision, nil), rec)
	res, _, err := ex.Extract(context.Background(), llm.Image{Data: []byte{1}}, "Spanish")
	if err != nil || res.Map()["Nombre"] != "JUAN" {
		t.Fatalf("traced extract changed the result: %+v %v", res, err)
	}

	text := &llmtest.Model{Configured: true, Err: errors.New("down")}
	tr := NewTracedTranslator(extract.NewTranslationClient(text, llm.TextOptions{}, nil), rec)
	out, err := tr.Translate(context.Background(), res, "Spanish")
	if err == nil || !out.Equal(res) {
		t.Fatalf("traced translate must keep the fallback semantics: %+v %v", out, err)
	}
	if len(rec.started) != 2 {
		t.Errorf("expected one root span per call without a parent, got %v", rec.started)
	}

	plain := extract.NewVisionClient(vision, nil)
	if NewTracedExtractor(plain, Noop{}) != extract.Extractor(plain) {
		t.Error("a disabled sink should not wrap the extractor")
	}
}

type countingSpan struct {
	noopSpan
	updates, ends *int
}

func (s countingSpan) Update(any, map[string]any) { *s.updates++ }
func (s countingSpan) End()                       { *s.ends++ }

type rootRecorder struct {
	Noop
	updates, ends int
}

func (r *rootRecorder) Enabled() bool { return true }

func (r *rootRecorder) StartSpan(context.Context, string, any, map[string]any) Span {
	return countingSpan{updates: &r.updates, ends: &r.ends}
}

func TestDecoratorsCloseRootSpan(t *testing.T) {
	rec := &rootRecorder{}
	vision := &llmtest.Model{Configured: true, Reply: `{"a":1}`}
	if _, _, err := NewTracedExtractor(extract.NewVisionClient(vision, nil), rec).Extract(context.Background(), llm.Image{Data: []byte{1}}, "English"); err != nil {
		t.Fatal(err)
	}
	if rec.updates != 1 || rec.ends != 1 {
		t.Fatalf("root span updates=%d ends=%d, want 1/1", rec.updates, rec.ends)
	}

	parent := &rootRecorder{}
	ctx := ContextWithSpan(context.Background(), countingSpan{updates: &parent.updates, ends: &parent.ends})
	if _, _, err := NewTracedExtractor(extract.NewVisionClient(vision, nil), rec).Extract(ctx, llm.Image{Data: []byte{1}}, "English"); err != nil {
		t.Fatal(err)
	}
	if parent.ends != 0 || rec.ends != 1 {
		t.Errorf("a caller's span must stay open: parent ends=%d, roots ended=%d", parent.ends, rec.ends)
	}
}
