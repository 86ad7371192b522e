package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/handwriting-extractor/constants"
	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
)

// Classification is the document type a text model assigned to stored form data.
type Classification struct {
	Category    constants.FormCategory `json:"category"`
	Confidence  string                 `json:"confidence"`
	Identifiers []string               `json:"identifiers"`
	Subcategory string                 `json:"subcategory,omitempty"`
	Model       string                 `json:"model,omitempty"`
}

type Classifier struct {
	model  llm.TextModel
	schema *jsonschema.Schema
	logger *slog.Logger
}

func NewClassifier(model llm.TextModel, logger *slog.Logger) (*Classifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := llm.CompileSchema(llm.BuildClassificationSchema(constants.CategoryStrings()))
	if err != nil {
		return nil, fmt.Errorf("classification schema: %w", err)
	}
	return &Classifier{model: model, schema: schema, logger: logger}, nil
}

func (c *Classifier) IsConfigured() bool {
	return c.model != nil && c.model.IsConfigured()
}

// Classify asks the text model for one of the fixed categories. Loose category names are
// mapped onto the canonical set before the reply is checked against the schema.
func (c *Classifier) Classify(ctx context.Context, data llm.StructuredResult) (Classification, error) {
	if !c.IsConfigured() {
		return Classification{}, llm.ErrNotConfigured
	}
	doc, err := llm.MarshalCanonical(data)
	if err != nil {
		return Classification{}, fmt.Errorf("encode for classification: %w", err)
	}

	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.classify.start", "req_id", rid, "model", c.model.Model(), "doc_bytes", len(doc))

	prompt := llm.BuildClassificationPrompt(constants.CategoryStrings(), string(doc))
	out, err := c.model.CompleteText(ctx, prompt, llm.TextOptions{Temperature: llm.Temperature(0.1), MaxTokens: 300})
	if err != nil {
		c.logger.Error("llm.classify.error", "req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return Classification{}, fmt.Errorf("classify: %w", err)
	}

	res := llm.ParseResponse(out.Text)
	reply := res.Map()
	if res.Fallback || reply == nil {
		return Classification{}, common.NewAppError("CLASSIFY_INVALID", "classifier reply is not a JSON object", common.ErrValidation)
	}
	if raw, ok := reply["category"].(string); ok {
		cat, _ := constants.CanonicalCategory(raw)
		reply["category"] = string(cat)
	}
	if conf, ok := reply["confidence"].(string); ok {
		reply["confidence"] = strings.ToLower(strings.TrimSpace(conf))
	}
	if err := c.schema.Validate(reply); err != nil {
		c.logger.Warn("llm.classify.schema_error", "req_id", rid, "error", err)
		return Classification{}, common.NewAppError("CLASSIFY_INVALID", "classifier reply does not match schema", fmt.Errorf("%w: %v", common.ErrValidation, err))
	}

	b, err := json.Marshal(reply)
	if err != nil {
		return Classification{}, fmt.Errorf("re-encode classification: %w", err)
	}
	var cl Classification
	if err := json.Unmarshal(b, &cl); err != nil {
		return Classification{}, fmt.Errorf("decode classification: %w", err)
	}
	cl.Model = c.model.Model()

	c.logger.Info("llm.classify.ok",
		"req_id", rid,
		"category", cl.Category,
		"confidence", cl.Confidence,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return cl, nil
}
