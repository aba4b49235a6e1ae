// handlers.go - HTTP handlers for the document fill API
package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/docfill/backend/internal/conversation"
	"github.com/docfill/backend/internal/storage"
)

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Handler serves the fill flow endpoints.
type Handler struct {
	orch    *conversation.Orchestrator
	logger  *zap.Logger
	version string
}

// NewHandler creates a handler instance.
func NewHandler(orch *conversation.Orchestrator, logger *zap.Logger, version string) *Handler {
	return &Handler{orch: orch, logger: logger, version: version}
}

// HandleRoot lists the available endpoints.
func (h *Handler) HandleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"service": "document fill API",
		"version": h.version,
		"endpoints": map[string]string{
			"POST /api/upload":                     "upload a .docx template",
			"POST /api/chat":                       "send a conversational message",
			"POST /api/edit":                       "set a field value directly",
			"GET /api/preview?session_id=":         "render the document preview",
			"GET /api/preview/msgpack?session_id=": "preview in MessagePack format",
			"POST /api/complete":                   "compose the final document",
			"GET /api/download/:filename":          "download a completed document",
			"POST /api/reset":                      "discard a session",
			"GET /api/health":                      "service health",
		},
	})
}

// HandleHealth reports service health and the live session count.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"service":         "document fill API",
		"version":         h.version,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
		"active_sessions": h.orch.SessionCount(),
	})
}

// HandleUpload accepts a .docx template and opens a fill session.
func (h *Handler) HandleUpload(c echo.Context) error {
	file, err := c.FormFile("document")
	if err != nil {
		return NewBadRequestError("no document provided", err)
	}

	src, err := file.Open()
	if err != nil {
		return NewInternalError("failed to open uploaded file", err)
	}
	defer src.Close()

	res, err := h.orch.StartSession(file.Filename, src)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// HandleChat advances the conversation by one user message.
func (h *Handler) HandleChat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.SessionID == "" {
		return NewValidationError("session_id")
	}

	res, err := h.orch.AdvanceConversation(req.SessionID, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// HandleEdit sets any known field to a validated value.
func (h *Handler) HandleEdit(c echo.Context) error {
	var req editRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.SessionID == "" {
		return NewValidationError("session_id")
	}
	if req.FieldKey == "" {
		return NewValidationError("field_key")
	}

	res, err := h.orch.EditField(req.SessionID, req.FieldKey, req.Value)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// HandlePreview renders the current document state.
func (h *Handler) HandlePreview(c echo.Context) error {
	id := c.QueryParam("session_id")
	if id == "" {
		return NewValidationError("session_id")
	}

	res, err := h.orch.GetPreview(id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// HandlePreviewMsgpack renders the preview in MessagePack format.
func (h *Handler) HandlePreviewMsgpack(c echo.Context) error {
	id := c.QueryParam("session_id")
	if id == "" {
		return NewValidationError("session_id")
	}

	res, err := h.orch.GetPreview(id)
	if err != nil {
		return err
	}

	data, err := msgpack.Marshal(res)
	if err != nil {
		return NewInternalError("failed to encode preview", err)
	}
	return c.Blob(http.StatusOK, "application/x-msgpack", data)
}

// HandleComplete composes the final document once every field is filled.
func (h *Handler) HandleComplete(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.SessionID == "" {
		return NewValidationError("session_id")
	}

	res, err := h.orch.CompleteDocument(req.SessionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

// HandleDownload streams a completed document.
func (h *Handler) HandleDownload(c echo.Context) error {
	filename := storage.SanitizeFilename(c.Param("filename"))
	if filename == "" {
		return NewValidationError("filename")
	}

	path, ok := h.orch.ResolveDownload(filename)
	if !ok {
		return &APIError{
			Status:  http.StatusNotFound,
			Code:    "NOT_FOUND",
			Message: "Document not found. It may have expired.",
			Details: filename,
		}
	}

	c.Response().Header().Set(echo.HeaderContentType, docxMIME)
	return c.Attachment(path, filename)
}

// HandleReset discards a session and its files. Resetting an unknown
// session is not an error.
func (h *Handler) HandleReset(c echo.Context) error {
	var req sessionRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if req.SessionID == "" {
		return NewValidationError("session_id")
	}

	return c.JSON(http.StatusOK, h.orch.ResetSession(req.SessionID))
}

// Request types

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type editRequest struct {
	SessionID string `json:"session_id"`
	FieldKey  string `json:"field_key"`
	Value     string `json:"value"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}
