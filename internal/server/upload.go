package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/handwriting-extractor/constants"
	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/imaging"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
	"github.com/joseph-ayodele/handwriting-extractor/internal/pipeline"
	"github.com/joseph-ayodele/handwriting-extractor/internal/tracing"
)

const pdfUnsupportedMessage = "PDF processing requires additional setup with poppler-utils. Please upload JPG or PNG images."

// multipart framing allowance on top of the file limit
const multipartOverhead = 1 << 20

type uploadResponse struct {
	pipeline.Envelope
	FormID          *int64 `json:"form_id,omitempty"`
	SavedToDatabase bool   `json:"saved_to_database"`
	ArchiveKey      string `json:"archive_key,omitempty"`
}

func (s *Server) handleUpload(c *gin.Context) {
	ctx := c.Request.Context()
	rid := reqID(c)

	if !s.deps.Processor.Ready() {
		abortError(c, http.StatusServiceUnavailable, "AGENT_NOT_INITIALIZED",
			"Extraction agent not initialized. Please configure a vision provider.")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.abortTooLarge(c)
			return
		}
		abortError(c, http.StatusBadRequest, "INVALID_INPUT", "Multipart field 'file' is required")
		return
	}

	filename := filepath.Base(fh.Filename)
	if filename == "." || filename == string(filepath.Separator) || filename == "" {
		filename = "unknown.jpg"
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !constants.IsAllowedExt(ext) {
		abortError(c, http.StatusBadRequest, "UNSUPPORTED_FILE_TYPE",
			fmt.Sprintf("File type %s not allowed. Allowed types: %s", ext, strings.Join(constants.AllowedExtensionList(), ", ")))
		return
	}
	if !constants.IsImageExt(ext) {
		abortError(c, http.StatusBadRequest, "PDF_NOT_SUPPORTED", pdfUnsupportedMessage)
		return
	}
	if fh.Size > s.cfg.MaxUploadBytes {
		s.abortTooLarge(c)
		return
	}

	data, err := readUpload(fh, s.cfg.MaxUploadBytes)
	if err != nil {
		if errors.Is(err, errUploadTooLarge) {
			s.abortTooLarge(c)
			return
		}
		s.logger.Error("upload.read_error", "req_id", rid, "filename", filename, "error", err)
		abortError(c, http.StatusBadRequest, "INVALID_INPUT", "Could not read uploaded file")
		return
	}
	if _, _, err := imaging.CheckPixels(data, s.cfg.MaxImagePixels); err != nil {
		if errors.Is(err, imaging.ErrTooManyPixels) {
			abortError(c, http.StatusBadRequest, "INVALID_IMAGE", "Image dimensions exceed the maximum allowed pixel count")
			return
		}
		abortError(c, http.StatusBadRequest, "INVALID_IMAGE", "Uploaded file is not a readable image")
		return
	}

	language := strings.TrimSpace(c.Query("language"))
	if language == "" {
		language = strings.TrimSpace(c.PostForm("language"))
	}
	if err := common.NewValidator().
		Field("language", language, common.MaxLength(64), common.LanguageName).
		Err(); err != nil {
		s.respondError(c, err)
		return
	}
	language = constants.LanguageOrDefault(language)

	path, err := s.writeTemp(data, ext)
	if err != nil {
		s.logger.Error("upload.temp_error", "req_id", rid, "error", err)
		abortError(c, http.StatusInternalServerError, "INTERNAL", "Could not stage uploaded file")
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("upload.cleanup_error", "req_id", rid, "path", path, "error", err)
		}
	}()

	s.logger.Info("upload.accepted", "req_id", rid, "filename", filename, "language", language, "bytes", len(data))

	resp := uploadResponse{}
	if s.deps.Archiver.Enabled() {
		key, err := s.deps.Archiver.Archive(ctx, filename, data, llm.SniffImageMIME(data, filename))
		if err != nil {
			s.logger.Warn("upload.archive_error", "req_id", rid, "filename", filename, "error", err)
		} else {
			resp.ArchiveKey = key
		}
	}

	resp.Envelope = s.deps.Processor.Run(ctx, pipeline.Request{
		ImagePath: path,
		Filename:  filename,
		Language:  language,
		Parent:    tracing.SpanFromContext(ctx),
	})
	if !resp.Success {
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	if id, ok := s.saveResult(c, filename, resp.Envelope); ok {
		resp.FormID = &id
		resp.SavedToDatabase = true
	}
	c.JSON(http.StatusOK, resp)
}

// saveResult persists a successful extraction. Failures are logged and reported through
// saved_to_database only.
func (s *Server) saveResult(c *gin.Context, filename string, env pipeline.Envelope) (int64, bool) {
	if s.deps.Forms == nil || env.ExtractedData == nil {
		return 0, false
	}
	doc, err := llm.MarshalCanonical(*env.ExtractedData)
	if err != nil {
		s.logger.Warn("upload.save_error", "req_id", reqID(c), "filename", filename, "error", err)
		return 0, false
	}
	form, err := s.deps.Forms.Create(c.Request.Context(), filename, string(doc))
	if err != nil {
		s.logger.Warn("upload.save_error", "req_id", reqID(c), "filename", filename, "error", err)
		return 0, false
	}
	return form.ID, true
}

func (s *Server) abortTooLarge(c *gin.Context) {
	abortError(c, http.StatusRequestEntityTooLarge, "TOO_LARGE",
		fmt.Sprintf("File size exceeds maximum allowed size of %.0fMB", float64(s.cfg.MaxUploadBytes)/(1024*1024)))
}

var errUploadTooLarge = errors.New("upload exceeds size limit")

func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errUploadTooLarge
	}
	return data, nil
}

func (s *Server) writeTemp(data []byte, ext string) (string, error) {
	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		return "", err
	}
	f, err := os.CreateTemp(s.cfg.UploadDir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
