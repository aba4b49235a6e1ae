// Package conversation implements the session-driven fill flow: upload,
// conversational filling, edits, preview, completion, and reset. Every
// mutation of a session happens inside a single store commit.
package conversation

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/docfill/backend/internal/artifacts"
	"github.com/docfill/backend/internal/fill"
	"github.com/docfill/backend/internal/models"
	"github.com/docfill/backend/internal/session"
	"github.com/docfill/backend/internal/storage"
)

// unfilledNamesCap bounds how many missing field names a completion
// rejection lists.
const unfilledNamesCap = 5

// StartResult is the outcome of a successful upload.
type StartResult struct {
	SessionID         string               `json:"session_id"`
	Filename          string               `json:"filename"`
	PlaceholdersCount int                  `json:"placeholders_count"`
	Placeholders      []models.Placeholder `json:"placeholders"`
	Message           string               `json:"message"`
	InitialMessage    string               `json:"initial_message"`
}

// ChatResult is the outcome of one conversational turn. CurrentProgress
// is the turn cursor, not the filled count: auto-fills advance the count
// without moving the cursor.
type ChatResult struct {
	Response           string              `json:"response"`
	PlaceholderFilled  bool                `json:"placeholder_filled"`
	CurrentProgress    int                 `json:"current_progress"`
	TotalPlaceholders  int                 `json:"total_placeholders"`
	ProgressPercentage float64             `json:"progress_percentage"`
	AllFilled          bool                `json:"all_filled"`
	FilledValues       map[string]string   `json:"filled_values"`
	CurrentPlaceholder *models.Placeholder `json:"current_placeholder"`
	Preview            string              `json:"preview"`
}

// EditResult is the outcome of a direct field edit.
type EditResult struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	FilledCount  int               `json:"filled_count"`
	TotalCount   int               `json:"total_count"`
	CurrentIndex int               `json:"current_index"`
	Progress     float64           `json:"progress_percentage"`
	AllFilled    bool              `json:"all_filled"`
	FilledValues map[string]string `json:"filled_values"`
	Preview      string            `json:"preview"`
}

// PreviewResult is a point-in-time rendering of the document.
type PreviewResult struct {
	Preview      string               `json:"preview" msgpack:"preview"`
	Placeholders []models.Placeholder `json:"placeholders" msgpack:"placeholders"`
	FilledValues map[string]string    `json:"filled_values" msgpack:"filled_values"`
	CurrentIndex int                  `json:"current_index" msgpack:"current_index"`
	FilledCount  int                  `json:"filled_count" msgpack:"filled_count"`
	TotalCount   int                  `json:"total_count" msgpack:"total_count"`
	Progress     float64              `json:"progress_percentage" msgpack:"progress_percentage"`
	AllFilled    bool                 `json:"all_filled" msgpack:"all_filled"`
	Status       string               `json:"status" msgpack:"status"`
}

// CompleteResult is the outcome of composing the final document.
type CompleteResult struct {
	Success     bool   `json:"success"`
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
	Message     string `json:"message"`
}

// ResetResult is the outcome of tearing a session down.
type ResetResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Orchestrator coordinates the session store, file storage, the artifact
// registry, and the document and conversation collaborators.
type Orchestrator struct {
	store     *session.Store
	files     *storage.Manager
	artifacts *artifacts.Registry
	docs      DocumentProcessor
	detector  PlaceholderDetector
	assistant AssistantService
	logger    *zap.Logger
}

// NewOrchestrator wires the fill flow together.
func NewOrchestrator(
	store *session.Store,
	files *storage.Manager,
	registry *artifacts.Registry,
	docs DocumentProcessor,
	detector PlaceholderDetector,
	assistant AssistantService,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		store:     store,
		files:     files,
		artifacts: registry,
		docs:      docs,
		detector:  detector,
		assistant: assistant,
		logger:    logger,
	}
}

// StartSession saves an uploaded template, parses it, detects its
// placeholders, and opens a new fill session.
func (o *Orchestrator) StartSession(filename string, r io.Reader) (*StartResult, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".docx") {
		return nil, validationErr("Only .docx files are supported.")
	}

	path, err := o.files.SaveUpload(filename, r)
	if err != nil {
		return nil, fmt.Errorf("saving upload: %w", err)
	}

	content, err := o.docs.ParseDocument(path)
	if err != nil {
		o.releaseFile(path)
		return nil, processingFailedErr(err)
	}

	placeholders := o.detector.DetectPlaceholders(content)
	aiContext := o.assistant.InitializeConversation(content, placeholders)
	greeting := o.assistant.GreetingMessage(placeholders)

	sess := models.NewSession(path, filename, content, placeholders, aiContext)
	sess.ConversationHistory = append(sess.ConversationHistory, models.ConversationTurn{
		Role:      "assistant",
		Content:   greeting,
		Timestamp: time.Now(),
	})

	id, err := o.store.Create(sess)
	if err != nil {
		o.releaseFile(path)
		return nil, fmt.Errorf("creating session: %w", err)
	}

	o.logger.Info("session started",
		zap.String("session_id", id),
		zap.String("filename", filename),
		zap.Int("placeholders", len(placeholders)))

	return &StartResult{
		SessionID:         id,
		Filename:          filename,
		PlaceholdersCount: len(placeholders),
		Placeholders:      placeholders,
		Message:           fmt.Sprintf("Document uploaded successfully. Found %d placeholder(s) to fill.", len(placeholders)),
		InitialMessage:    greeting,
	}, nil
}

// AdvanceConversation records a user message, lets the assistant interpret
// it against the session state, and applies the resulting fill (if any) in
// one commit.
func (o *Orchestrator) AdvanceConversation(sessionID, message string) (*ChatResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, validationErr("Please provide a message.")
	}

	var interp models.Interpretation
	snap, err := o.store.Commit(sessionID, func(s *models.Session) (*models.Session, error) {
		s.ConversationHistory = append(s.ConversationHistory, models.ConversationTurn{
			Role: "user", Content: message, Timestamp: time.Now(),
		})

		interp = o.assistant.InterpretMessage(message, s.Placeholders, s.FilledValues, s.CurrentIndex, s.AIContext)
		if interp.PlaceholderFilled {
			s = fill.ApplySequentialFill(s, interp.PlaceholderKey, interp.Value, interp.AutoFills)
		}

		s.ConversationHistory = append(s.ConversationHistory, models.ConversationTurn{
			Role: "assistant", Content: interp.Message, Timestamp: time.Now(),
		})
		return s, nil
	})
	if err != nil {
		return nil, o.mapStoreErr(err)
	}

	return &ChatResult{
		Response:           interp.Message,
		PlaceholderFilled:  interp.PlaceholderFilled,
		CurrentProgress:    snap.CurrentIndex,
		TotalPlaceholders:  len(snap.Placeholders),
		ProgressPercentage: fill.ProgressPercentage(snap),
		AllFilled:          fill.IsComplete(snap),
		FilledValues:       snap.FilledValues,
		CurrentPlaceholder: nextPlaceholder(snap),
		Preview:            o.renderPreview(snap),
	}, nil
}

// EditField validates and assigns a value to any known placeholder,
// repositioning the conversation cursor to that field.
func (o *Orchestrator) EditField(sessionID, key, value string) (*EditResult, error) {
	var edited models.Placeholder
	snap, err := o.store.Commit(sessionID, func(s *models.Session) (*models.Session, error) {
		idx := s.PlaceholderIndex(key)
		if idx < 0 {
			return nil, unknownFieldErr(key)
		}
		edited = s.Placeholders[idx]

		vr := o.assistant.ValidateValue(value, edited)
		if !vr.Valid {
			return nil, &Error{Kind: KindValidationFailed, Message: vr.ErrorMessage}
		}
		return fill.ApplyEdit(s, key, vr.ProcessedValue)
	})
	if err != nil {
		return nil, o.mapStoreErr(err)
	}

	return &EditResult{
		Success:      true,
		Message:      fmt.Sprintf("Updated %s to %q.", edited.Name, snap.FilledValues[key]),
		FilledCount:  len(snap.FilledValues),
		TotalCount:   len(snap.Placeholders),
		CurrentIndex: snap.CurrentIndex,
		Progress:     fill.ProgressPercentage(snap),
		AllFilled:    fill.IsComplete(snap),
		FilledValues: snap.FilledValues,
		Preview:      o.renderPreview(snap),
	}, nil
}

// GetPreview renders the document with current values and the next
// placeholder highlighted.
func (o *Orchestrator) GetPreview(sessionID string) (*PreviewResult, error) {
	snap, err := o.store.Get(sessionID)
	if err != nil {
		return nil, o.mapStoreErr(err)
	}
	return &PreviewResult{
		Preview:      o.renderPreview(snap),
		Placeholders: snap.Placeholders,
		FilledValues: snap.FilledValues,
		CurrentIndex: snap.CurrentIndex,
		FilledCount:  len(snap.FilledValues),
		TotalCount:   len(snap.Placeholders),
		Progress:     fill.ProgressPercentage(snap),
		AllFilled:    fill.IsComplete(snap),
		Status:       string(snap.Status),
	}, nil
}

// CompleteDocument composes the final document from the template and the
// filled values. It refuses while any placeholder is unfilled and may be
// re-run after success to regenerate the document.
func (o *Orchestrator) CompleteDocument(sessionID string) (*CompleteResult, error) {
	var outName, outPath string
	_, err := o.store.Commit(sessionID, func(s *models.Session) (*models.Session, error) {
		if !fill.IsComplete(s) {
			names, total := fill.UnfilledNames(s, unfilledNamesCap)
			return nil, &Error{
				Kind:          KindIncompleteDocument,
				Message:       "Please fill in all placeholders before completing the document.",
				UnfilledCount: total,
				UnfilledNames: names,
			}
		}

		outName = completedFilename(s.Filename, time.Now())
		path, err := o.files.ProcessedPath(outName)
		if err != nil {
			return nil, generationFailedErr(err)
		}
		if err := o.docs.ComposeFinalDocument(s.Filepath, path, s.Placeholders, s.FilledValues); err != nil {
			return nil, generationFailedErr(err)
		}
		outPath = path

		s.Status = models.SessionStatusCompleted
		s.CompletedAt = time.Now()
		s.CompletedDocument = path
		return s, nil
	})
	if err != nil {
		return nil, o.mapStoreErr(err)
	}

	o.artifacts.Register(outName, outPath)
	o.logger.Info("document completed",
		zap.String("session_id", sessionID), zap.String("filename", outName))

	return &CompleteResult{
		Success:     true,
		DownloadURL: "/api/download/" + outName,
		Filename:    outName,
		Message:     "Your document is ready for download.",
	}, nil
}

// ResolveDownload maps a generated document filename to its path on disk.
func (o *Orchestrator) ResolveDownload(filename string) (string, bool) {
	return o.artifacts.Lookup(filename)
}

// ResetSession tears a session down and releases its files. Resetting an
// unknown or already-expired session succeeds.
func (o *Orchestrator) ResetSession(sessionID string) *ResetResult {
	res, err := o.store.Remove(sessionID)
	if err != nil {
		return &ResetResult{Success: true, Message: "Session reset."}
	}
	o.releaseResources(*res)
	o.logger.Info("session reset", zap.String("session_id", sessionID))
	return &ResetResult{Success: true, Message: "Session reset."}
}

// SweepExpiredSessions removes idle sessions and their files. It is called
// periodically by the server.
func (o *Orchestrator) SweepExpiredSessions(now time.Time, ttl time.Duration) int {
	released := o.store.SweepExpired(now, ttl)
	for _, res := range released {
		o.releaseResources(res)
	}
	if len(released) > 0 {
		o.logger.Info("expired sessions swept", zap.Int("count", len(released)))
	}
	return len(released)
}

// SessionCount returns the number of live sessions, for health reporting.
func (o *Orchestrator) SessionCount() int {
	return o.store.Len()
}

func (o *Orchestrator) releaseResources(res session.ReleasedResources) {
	o.releaseFile(res.UploadPath)
	o.releaseFile(res.CompletedPath)
	if res.CompletedPath != "" {
		o.artifacts.Drop(filepath.Base(res.CompletedPath))
	}
}

func (o *Orchestrator) releaseFile(path string) {
	if r := o.files.Release(path); r.Status == storage.CleanupReleaseFailed {
		o.logger.Warn("failed to release file", zap.String("path", r.Path), zap.Error(r.Err))
	}
}

func (o *Orchestrator) renderPreview(s *models.Session) string {
	var highlight *int
	if idx, ok := fill.NextPreviewIndex(s); ok {
		highlight = &idx
	}
	return o.docs.RenderPreview(s.Content, s.Placeholders, s.FilledValues, highlight)
}

func (o *Orchestrator) mapStoreErr(err error) error {
	if err == session.ErrNotFound {
		return sessionNotFoundErr()
	}
	return err
}

// nextPlaceholder returns the placeholder the conversation will ask for
// next, or nil when the cursor has run past the end.
func nextPlaceholder(s *models.Session) *models.Placeholder {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Placeholders) {
		return nil
	}
	p := s.Placeholders[s.CurrentIndex]
	return &p
}

// completedFilename derives the download name from the original template
// name and a generation timestamp.
func completedFilename(original string, now time.Time) string {
	base := strings.TrimSuffix(storage.SanitizeFilename(original), ".docx")
	if base == "" {
		base = "document"
	}
	return fmt.Sprintf("completed_%s_%s.docx", base, now.Format("20060102_150405"))
}
