package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"

	"github.com/joseph-ayodele/handwriting-extractor/constants"
	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
)

// Envelope is the outcome of one run, success or failure.
type Envelope struct {
	Success       bool                  `json:"success"`
	Filename      string                `json:"filename"`
	ExtractedData *llm.StructuredResult `json:"extracted_data,omitempty"`
	Error         string                `json:"error,omitempty"`
	Message       string                `json:"message"`
	Translated    bool                  `json:"translated"`
	ElapsedMS     int64                 `json:"elapsed_ms"`
	TraceID       string                `json:"trace_id,omitempty"`

	State     constants.RunState `json:"-"`
	ErrorType ErrorType          `json:"-"`
}

// ErrorType names the failure class reported in Envelope.Error.
type ErrorType string

const (
	TimeoutError       ErrorType = "TimeoutError"
	ConfigurationError ErrorType = "ConfigurationError"
	ProviderError      ErrorType = "ProviderError"
	InputError         ErrorType = "InputError"
	InternalError      ErrorType = "InternalError"
)

var errNoExtractor = fmt.Errorf("no extraction provider: %w", llm.ErrNotConfigured)

// ClassifyError maps an error from any stage onto its ErrorType.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	if errors.Is(err, llm.ErrNotConfigured) {
		return ConfigurationError
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return TimeoutError
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return TimeoutError
	}
	var pe *llm.ProviderError
	if errors.As(err, &pe) {
		return ProviderError
	}
	if errors.Is(err, common.ErrInvalidInput) || errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
		return InputError
	}
	return InternalError
}

// FormatError renders err as "<ErrorType>: <detail>".
func FormatError(err error) string {
	return fmt.Sprintf("%s: %s", ClassifyError(err), err.Error())
}
