package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// maxResponseBytes bounds how much of a provider answer is read into memory.
const maxResponseBytes = 8 << 20

// JSONCall describes one POST of a JSON document to a hosted API.
type JSONCall struct {
	Provider string // label for logs and ProviderError
	URL      string
	Body     any
	Header   http.Header
}

// PostJSON sends call and returns the response body. A non-2xx answer comes back as a
// *ProviderError carrying the status and body. Transport failures are also ProviderErrors,
// with the cause kept so context and timeout errors stay matchable with errors.Is.
func PostJSON(ctx context.Context, client *http.Client, call JSONCall, logger *slog.Logger) ([]byte, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	log := logger.With("req_id", uuid.NewString(), "provider", call.Provider)
	start := time.Now()

	payload, err := json.Marshal(call.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: encode request: %w", call.Provider, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, call.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", call.Provider, err)
	}
	for k, vs := range call.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Debug("llm.http.request", "url", call.URL, "content_length", len(payload))

	resp, err := client.Do(req)
	if err != nil {
		log.Warn("llm.http.send_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, &ProviderError{Provider: call.Provider, Body: "send", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ProviderError{Provider: call.Provider, StatusCode: resp.StatusCode, Body: "read response", Err: err}
	}

	log.Debug("llm.http.response",
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return raw, &ProviderError{Provider: call.Provider, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}
