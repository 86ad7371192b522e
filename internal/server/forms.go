package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/handwriting-extractor/internal/common"
	"github.com/joseph-ayodele/handwriting-extractor/internal/entity"
	"github.com/joseph-ayodele/handwriting-extractor/internal/llm"
)

// data may be sent as the stored JSON text or as the document itself.
var formDataField = map[string]any{"type": []string{"string", "object", "array"}}

var createFormSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"form_name": map[string]any{"type": "string", "minLength": 1, "maxLength": 255},
		"data":      formDataField,
	},
	"required":             []string{"form_name", "data"},
	"additionalProperties": false,
}

var updateFormSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"form_name": map[string]any{"type": "string", "minLength": 1, "maxLength": 255},
		"data":      formDataField,
	},
	"additionalProperties": false,
}

type formBody struct {
	FormName *string         `json:"form_name"`
	Data     json.RawMessage `json:"data"`
}

// decodeFormBody validates the raw body against schema before decoding it.
func decodeFormBody(c *gin.Context, schema *jsonschema.Schema) (formBody, error) {
	raw, err := c.GetRawData()
	if err != nil {
		return formBody{}, common.InvalidInputError("Could not read request body")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return formBody{}, common.InvalidInputError("Request body must be valid JSON")
	}
	if err := schema.Validate(doc); err != nil {
		return formBody{}, common.NewAppError("INVALID_BODY", fmt.Sprintf("Request body does not match schema: %v", err), common.ErrValidation)
	}
	var body formBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return formBody{}, common.InvalidInputError("Request body must be valid JSON")
	}
	return body, nil
}

// dataText returns the stored text for a data field: strings are kept verbatim and
// documents are stored in canonical form.
func dataText(raw json.RawMessage) (*string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return &s, nil
	}
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, common.InvalidInputError("data must be a string or JSON document")
	}
	b, err := llm.MarshalCanonical(llm.FromValue(v))
	if err != nil {
		return nil, err
	}
	text := string(b)
	return &text, nil
}

func parseFormID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortError(c, http.StatusBadRequest, "INVALID_INPUT", "Form id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (s *Server) requireForms(c *gin.Context) bool {
	if s.deps.Forms == nil {
		abortError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database not configured")
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, common.InvalidInputErrorf("%s must be a non-negative integer", key)
	}
	return n, nil
}

func (s *Server) handleListForms(c *gin.Context) {
	if !s.requireForms(c) {
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		s.respondError(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		s.respondError(c, err)
		return
	}
	forms, err := s.deps.Forms.List(c.Request.Context(), offset, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if forms == nil {
		forms = []*entity.Form{}
	}
	c.JSON(http.StatusOK, forms)
}

func (s *Server) handleCreateForm(c *gin.Context) {
	if !s.requireForms(c) {
		return
	}
	body, err := decodeFormBody(c, s.createForm)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if err := common.NewValidator().Field("form_name", body.FormName, common.Required).Err(); err != nil {
		s.respondError(c, err)
		return
	}
	data, err := dataText(body.Data)
	if err != nil {
		s.respondError(c, err)
		return
	}
	form, err := s.deps.Forms.Create(c.Request.Context(), *body.FormName, *data)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.logger.Info("forms.created", "req_id", reqID(c), "id", form.ID)
	c.JSON(http.StatusCreated, form)
}

func (s *Server) handleGetForm(c *gin.Context) {
	if !s.requireForms(c) {
		return
	}
	id, ok := parseFormID(c)
	if !ok {
		return
	}
	form, err := s.deps.Forms.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

func (s *Server) handleUpdateForm(c *gin.Context) {
	if !s.requireForms(c) {
		return
	}
	id, ok := parseFormID(c)
	if !ok {
		return
	}
	body, err := decodeFormBody(c, s.updateForm)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if body.FormName != nil {
		if err := common.NewValidator().Field("form_name", body.FormName, common.Required).Err(); err != nil {
			s.respondError(c, err)
			return
		}
	}
	data, err := dataText(body.Data)
	if err != nil {
		s.respondError(c, err)
		return
	}
	form, err := s.deps.Forms.Update(c.Request.Context(), id, entity.FormUpdate{FormName: body.FormName, Data: data})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, form)
}

func (s *Server) handleDeleteForm(c *gin.Context) {
	if !s.requireForms(c) {
		return
	}
	id, ok := parseFormID(c)
	if !ok {
		return
	}
	if err := s.deps.Forms.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Form with id %d deleted successfully", id)})
}

// handleClassifyForm runs the classifier over a stored form's data.
func (s *Server) handleClassifyForm(c *gin.Context) {
	if !s.requireForms(c) {
		return
	}
	id, ok := parseFormID(c)
	if !ok {
		return
	}
	if s.deps.Classifier == nil || !s.deps.Classifier.IsConfigured() {
		abortError(c, http.StatusServiceUnavailable, "CLASSIFIER_NOT_CONFIGURED", "Classification requires a configured text provider")
		return
	}
	form, err := s.deps.Forms.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	var data llm.StructuredResult
	if err := json.Unmarshal([]byte(form.Data), &data); err != nil {
		data = llm.RawTextResult(form.Data)
	}

	cl, err := s.deps.Classifier.Classify(c.Request.Context(), data)
	if err != nil {
		var appErr *common.AppError
		switch {
		case errors.Is(err, llm.ErrNotConfigured):
			abortError(c, http.StatusServiceUnavailable, "CLASSIFIER_NOT_CONFIGURED", "Classification requires a configured text provider")
		case errors.As(err, &appErr) && errors.Is(err, common.ErrValidation):
			abortError(c, http.StatusBadGateway, appErr.Code, appErr.Message)
		default:
			s.logger.Error("forms.classify_error", "req_id", reqID(c), "id", id, "error", err)
			abortError(c, http.StatusBadGateway, "PROVIDER_ERROR", "Classification provider failed")
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"form_id": id, "classification": cl})
}
