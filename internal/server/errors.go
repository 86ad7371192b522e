package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

func abortError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, errorBody{Success: false, Error: msg, Code: code})
}

// respondError maps err onto a status and the shared error body. Server-side failures
// are logged with the request id.
func (s *Server) respondError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	msg := common.ErrorMessage(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("http.error", "req_id", reqID(c), "path", c.Request.URL.Path, "status", status, "error", err)
		if status == http.StatusInternalServerError {
			msg = "Internal server error"
		}
	}
	abortError(c, status, common.ErrorCode(err), msg)
}
