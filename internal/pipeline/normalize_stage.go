package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/imaging"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
)

// NormalizeStage loads an image from disk and prepares it for the vision model.
type NormalizeStage struct {
	Normalizer *imaging.Normalizer
	Enabled    bool
	Logger     *slog.Logger
}

func NewNormalizeStage(n *imaging.Normalizer, enabled bool, logger *slog.Logger) *NormalizeStage {
	if logger == nil {
		logger = slog.Default()
	}
	if n == nil {
		n = imaging.NewNormalizer(imaging.DefaultOptions(), logger)
	}
	return &NormalizeStage{Normalizer: n, Enabled: enabled, Logger: logger}
}

// Run reads path and returns the bytes to send. Normalisation failures fall back to the
// raw bytes; only a failed read is an error.
func (s *NormalizeStage) Run(ctx context.Context, path, filename string) (llm.Image, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return llm.Image{}, fmt.Errorf("read image: %w", err)
	}

	log := common.LoggerFromContext(ctx, s.Logger)
	if w, h, err := imaging.Dimensions(raw); err != nil {
		log.Warn("pipeline.image.unreadable_header", "filename", filename, "bytes", len(raw), "error", err)
	} else {
		log.Info("pipeline.image", "filename", filename, "width", w, "height", h, "bytes", len(raw))
	}

	data := raw
	if s.Enabled {
		out, err := s.Normalizer.Normalize(raw)
		if err != nil {
			log.Warn("pipeline.normalize.fallback", "filename", filename, "error", err)
		} else {
			data = out
		}
	} else {
		out, err := imaging.EnsureMinSize(raw, s.Normalizer.Options().MinSide)
		if err != nil {
			log.Warn("pipeline.min_size.fallback", "filename", filename, "error", err)
		} else {
			data = out
		}
	}

	return llm.Image{Data: data, MIMEType: llm.SniffImageMIME(data, filename)}, nil
}
