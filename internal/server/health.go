package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const apiVersion = "1.0.0"

func (s *Server) handleIndex(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Handwriting Extraction API",
		"version": apiVersion,
		"endpoints": []string{
			"POST /upload - Upload handwritten image for extraction",
			"GET /health - Health check",
			"GET /forms - List stored forms",
			"POST /forms - Create form data",
			"GET /forms/export - Download all forms as XLSX",
			"GET /forms/{id} - Get form data by ID",
			"PUT /forms/{id} - Update form data",
			"DELETE /forms/{id} - Delete form data",
			"POST /forms/{id}/classify - Classify stored form data",
		},
	})
}

type healthResponse struct {
	Status                string `json:"status"`
	AgentInitialized      bool   `json:"agent_initialized"`
	TranslationConfigured bool   `json:"translation_configured"`
	TracingConfigured     bool   `json:"tracing_configured"`
	VisionModel           string `json:"vision_model,omitempty"`
	TranslationModel      string `json:"translation_model,omitempty"`
	Database              string `json:"database"`
}

// handleHealth always answers 200; degraded dependencies show up in the body.
func (s *Server) handleHealth(c *gin.Context) {
	p := s.deps.Processor
	resp := healthResponse{
		Status:                "healthy",
		AgentInitialized:      p.Ready(),
		TranslationConfigured: p.TranslationReady(),
		TracingConfigured:     s.deps.Sink.Enabled(),
		Database:              "disabled",
	}
	if p.Extractor != nil {
		resp.VisionModel = p.Extractor.Model()
	}
	if p.Translator != nil {
		resp.TranslationModel = p.Translator.Model()
	}

	if s.deps.DB != nil {
		if err := PingDB(c.Request.Context(), s.deps.DB, s.logger, 2*time.Second); err != nil {
			resp.Database = "error"
			resp.Status = "degraded"
		} else {
			resp.Database = "ok"
		}
	}
	if !resp.AgentInitialized {
		resp.Status = "degraded"
	}
	c.JSON(http.StatusOK, resp)
}
