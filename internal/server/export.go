package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleExportForms(c *gin.Context) {
	if s.deps.Exporter == nil {
		abortError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database not configured")
		return
	}

	xlsx, err := s.deps.Exporter.ExportFormsXLSX(c.Request.Context())
	if err != nil {
		s.logger.Error("export.xlsx.failed", "req_id", reqID(c), "err", err)
		s.respondError(c, err)
		return
	}

	name := fmt.Sprintf("forms-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	c.Data(http.StatusOK, xlsxContentType, xlsx)
}
