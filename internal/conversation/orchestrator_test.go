package conversation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/docfill/backend/internal/artifacts"
	"github.com/docfill/backend/internal/models"
	"github.com/docfill/backend/internal/session"
	"github.com/docfill/backend/internal/storage"
	"github.com/docfill/backend/internal/testutil"
)

type fixture struct {
	orch      *Orchestrator
	store     *session.Store
	files     *storage.Manager
	processor *testutil.MockProcessor
	detector  *testutil.MockDetector
	assistant *testutil.MockAssistant
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	files, err := storage.NewManager(filepath.Join(dir, "uploads"), filepath.Join(dir, "processed"))
	require.NoError(t, err)

	f := &fixture{
		store:     session.NewStore(),
		files:     files,
		processor: &testutil.MockProcessor{},
		detector:  &testutil.MockDetector{},
		assistant: &testutil.MockAssistant{},
	}
	registry := artifacts.NewRegistry(time.Hour, time.Hour, zap.NewNop())
	f.orch = NewOrchestrator(f.store, files, registry, f.processor, f.detector, f.assistant, zap.NewNop())
	return f
}

func contractPlaceholders() []models.Placeholder {
	return []models.Placeholder{
		{Key: "company_name", Name: "Company Name", Type: models.PlaceholderTypeText},
		{Key: "start_date", Name: "Start Date", Type: models.PlaceholderTypeDate},
	}
}

func (f *fixture) start(t *testing.T) *StartResult {
	t.Helper()
	f.detector.DetectPlaceholdersFunc = func(content any) []models.Placeholder {
		return contractPlaceholders()
	}
	res, err := f.orch.StartSession("contract.docx", strings.NewReader("docx-bytes"))
	require.NoError(t, err)
	return res
}

func TestStartSession(t *testing.T) {
	f := newFixture(t)
	f.assistant.GreetingMessageFunc = func(ps []models.Placeholder) string { return "greeting" }

	res := f.start(t)

	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "contract.docx", res.Filename)
	assert.Equal(t, 2, res.PlaceholdersCount)
	assert.Equal(t, "Document uploaded successfully. Found 2 placeholder(s) to fill.", res.Message)
	assert.Equal(t, "greeting", res.InitialMessage)

	snap, err := f.store.Get(res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, snap.Status)
	assert.FileExists(t, snap.Filepath)
	require.Len(t, snap.ConversationHistory, 1)
	assert.Equal(t, "assistant", snap.ConversationHistory[0].Role)
	assert.Equal(t, "greeting", snap.ConversationHistory[0].Content)
}

func TestStartSessionRejectsNonDocx(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.StartSession("contract.pdf", strings.NewReader("pdf"))

	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, oe.Kind)
}

func TestStartSessionParseFailureReleasesUpload(t *testing.T) {
	f := newFixture(t)
	f.processor.ParseDocumentFunc = func(path string) (any, error) {
		return nil, errors.New("not a zip")
	}

	_, err := f.orch.StartSession("broken.docx", strings.NewReader("junk"))

	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindProcessingFailed, oe.Kind)

	entries, err := os.ReadDir(f.files.UploadDir())
	require.NoError(t, err)
	assert.Empty(t, entries, "failed upload must not linger on disk")
}

func TestAdvanceConversationFill(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)
	f.assistant.InterpretMessageFunc = func(msg string, ps []models.Placeholder, filled map[string]string, idx int, ctx string) models.Interpretation {
		return models.Interpretation{
			Message:           "noted",
			PlaceholderFilled: true,
			PlaceholderKey:    "company_name",
			Value:             "Acme Corp",
		}
	}
	f.processor.RenderPreviewFunc = func(content any, ps []models.Placeholder, filled map[string]string, highlight *int) string {
		require.NotNil(t, highlight)
		assert.Equal(t, 1, *highlight)
		return "preview-html"
	}

	chat, err := f.orch.AdvanceConversation(res.SessionID, "Acme Corp")
	require.NoError(t, err)

	assert.Equal(t, "noted", chat.Response)
	assert.True(t, chat.PlaceholderFilled)
	assert.Equal(t, 1, chat.CurrentProgress)
	assert.Equal(t, 2, chat.TotalPlaceholders)
	assert.Equal(t, 50.0, chat.ProgressPercentage)
	assert.False(t, chat.AllFilled)
	assert.Equal(t, "Acme Corp", chat.FilledValues["company_name"])
	require.NotNil(t, chat.CurrentPlaceholder)
	assert.Equal(t, "start_date", chat.CurrentPlaceholder.Key)
	assert.Equal(t, "preview-html", chat.Preview)

	snap, err := f.store.Get(res.SessionID)
	require.NoError(t, err)
	require.Len(t, snap.ConversationHistory, 3)
	assert.Equal(t, "user", snap.ConversationHistory[1].Role)
	assert.Equal(t, "assistant", snap.ConversationHistory[2].Role)
}

func TestAdvanceConversationAutoFillAdvancesCursorOnce(t *testing.T) {
	f := newFixture(t)
	f.detector.DetectPlaceholdersFunc = func(content any) []models.Placeholder {
		return []models.Placeholder{
			{Key: "company_name", Name: "Company Name", Type: models.PlaceholderTypeText},
			{Key: "company_name_2", Name: "Company Name", Type: models.PlaceholderTypeText},
			{Key: "start_date", Name: "Start Date", Type: models.PlaceholderTypeDate},
		}
	}
	res, err := f.orch.StartSession("contract.docx", strings.NewReader("docx-bytes"))
	require.NoError(t, err)

	f.assistant.InterpretMessageFunc = func(msg string, ps []models.Placeholder, filled map[string]string, idx int, ctx string) models.Interpretation {
		return models.Interpretation{
			Message:           "noted",
			PlaceholderFilled: true,
			PlaceholderKey:    "company_name",
			Value:             "Acme",
			AutoFills:         []models.AutoFill{{Key: "company_name_2", Value: "Acme"}},
		}
	}

	chat, err := f.orch.AdvanceConversation(res.SessionID, "Acme")
	require.NoError(t, err)

	// The auto-fill raises the filled count to 2, but the turn cursor
	// advances by exactly one step.
	assert.Equal(t, 1, chat.CurrentProgress)
	assert.Len(t, chat.FilledValues, 2)
	assert.Equal(t, "Acme", chat.FilledValues["company_name_2"])
}

func TestAdvanceConversationNoFillStillRecordsTurns(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)
	f.assistant.InterpretMessageFunc = func(msg string, ps []models.Placeholder, filled map[string]string, idx int, ctx string) models.Interpretation {
		return models.Interpretation{Message: "please try again"}
	}

	chat, err := f.orch.AdvanceConversation(res.SessionID, "???")
	require.NoError(t, err)

	assert.False(t, chat.PlaceholderFilled)
	assert.Equal(t, 0, chat.CurrentProgress)

	snap, err := f.store.Get(res.SessionID)
	require.NoError(t, err)
	assert.Len(t, snap.ConversationHistory, 3)
	assert.Equal(t, 0, snap.CurrentIndex)
}

func TestAdvanceConversationEmptyMessage(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)

	_, err := f.orch.AdvanceConversation(res.SessionID, "   ")

	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindValidation, oe.Kind)
}

func TestAdvanceConversationUnknownSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.AdvanceConversation("missing", "hello")

	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindSessionNotFound, oe.Kind)
}

func TestEditFieldRepositionsCursor(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)

	fillAll(t, f, res.SessionID)

	edit, err := f.orch.EditField(res.SessionID, "company_name", "Acme Corp")
	require.NoError(t, err)

	assert.True(t, edit.Success)
	assert.Equal(t, 2, edit.FilledCount)
	assert.Equal(t, 2, edit.TotalCount)
	assert.Equal(t, 0, edit.CurrentIndex, "cursor moves to the edited field")
	assert.Equal(t, 100.0, edit.Progress)
	assert.True(t, edit.AllFilled)
	assert.Equal(t, "Acme Corp", edit.FilledValues["company_name"])
	assert.Contains(t, edit.Message, "Company Name")

	snap, err := f.store.Get(res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Corp", snap.FilledValues["company_name"])
	assert.Equal(t, 0, snap.CurrentIndex)
}

func TestEditFieldUnknownKeyLeavesSessionUntouched(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)

	before, err := f.store.Get(res.SessionID)
	require.NoError(t, err)

	_, err = f.orch.EditField(res.SessionID, "nonexistent", "x")
	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindUnknownField, oe.Kind)

	after, err := f.store.Get(res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, before.FilledValues, after.FilledValues)
	assert.Equal(t, before.CurrentIndex, after.CurrentIndex)
}

func TestEditFieldValidationFailure(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)
	f.assistant.ValidateValueFunc = func(raw string, p models.Placeholder) models.ValidationResult {
		return models.ValidationResult{ErrorMessage: "that's not a date"}
	}

	_, err := f.orch.EditField(res.SessionID, "start_date", "soon")

	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindValidationFailed, oe.Kind)
	assert.Equal(t, "that's not a date", oe.Message)
}

func TestGetPreview(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)
	f.processor.RenderPreviewFunc = func(content any, ps []models.Placeholder, filled map[string]string, highlight *int) string {
		return "rendered"
	}

	pv, err := f.orch.GetPreview(res.SessionID)
	require.NoError(t, err)

	assert.Equal(t, "rendered", pv.Preview)
	assert.Equal(t, contractPlaceholders(), pv.Placeholders)
	assert.Empty(t, pv.FilledValues)
	assert.Equal(t, 0, pv.CurrentIndex)
	assert.Equal(t, 0, pv.FilledCount)
	assert.Equal(t, 2, pv.TotalCount)
	assert.Equal(t, "active", pv.Status)
}

func TestCompleteDocumentRejectsIncomplete(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)

	_, err := f.orch.CompleteDocument(res.SessionID)

	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindIncompleteDocument, oe.Kind)
	assert.Equal(t, 2, oe.UnfilledCount)
	assert.Equal(t, []string{"Company Name", "Start Date"}, oe.UnfilledNames)
}

func TestCompleteDocument(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)
	fillAll(t, f, res.SessionID)
	f.processor.ComposeFinalDocumentFunc = func(templatePath, outputPath string, ps []models.Placeholder, filled map[string]string) error {
		return os.WriteFile(outputPath, []byte("final"), 0o644)
	}

	done, err := f.orch.CompleteDocument(res.SessionID)
	require.NoError(t, err)

	assert.True(t, done.Success)
	assert.True(t, strings.HasPrefix(done.Filename, "completed_contract_"))
	assert.True(t, strings.HasSuffix(done.Filename, ".docx"))
	assert.Equal(t, "/api/download/"+done.Filename, done.DownloadURL)

	path, ok := f.orch.ResolveDownload(done.Filename)
	require.True(t, ok)
	assert.FileExists(t, path)

	snap, err := f.store.Get(res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusCompleted, snap.Status)
	assert.False(t, snap.CompletedAt.IsZero())
}

func TestCompleteDocumentIsRepeatable(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)
	fillAll(t, f, res.SessionID)
	f.processor.ComposeFinalDocumentFunc = func(templatePath, outputPath string, ps []models.Placeholder, filled map[string]string) error {
		return os.WriteFile(outputPath, []byte("final"), 0o644)
	}

	first, err := f.orch.CompleteDocument(res.SessionID)
	require.NoError(t, err)
	second, err := f.orch.CompleteDocument(res.SessionID)
	require.NoError(t, err)

	assert.True(t, second.Success)
	_, ok := f.orch.ResolveDownload(first.Filename)
	assert.True(t, ok)
	_, ok = f.orch.ResolveDownload(second.Filename)
	assert.True(t, ok)
}

func TestCompleteDocumentGenerationFailureKeepsSessionActive(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)
	fillAll(t, f, res.SessionID)
	f.processor.ComposeFinalDocumentFunc = func(templatePath, outputPath string, ps []models.Placeholder, filled map[string]string) error {
		return errors.New("disk full")
	}

	_, err := f.orch.CompleteDocument(res.SessionID)

	oe, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, KindGenerationFailed, oe.Kind)

	snap, err := f.store.Get(res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, snap.Status)
}

func TestResetSession(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)
	snap, err := f.store.Get(res.SessionID)
	require.NoError(t, err)

	out := f.orch.ResetSession(res.SessionID)
	assert.True(t, out.Success)

	_, err = f.store.Get(res.SessionID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.NoFileExists(t, snap.Filepath)
}

func TestResetUnknownSessionSucceeds(t *testing.T) {
	f := newFixture(t)

	out := f.orch.ResetSession("never-existed")

	assert.True(t, out.Success)
}

func TestSweepExpiredSessionsFreshSessionsSurvive(t *testing.T) {
	f := newFixture(t)
	res := f.start(t)

	n := f.orch.SweepExpiredSessions(time.Now(), time.Hour)

	assert.Equal(t, 0, n)
	_, err := f.store.Get(res.SessionID)
	assert.NoError(t, err)
}

func fillAll(t *testing.T, f *fixture, sessionID string) {
	t.Helper()
	for _, kv := range []struct{ key, val string }{
		{"company_name", "Acme"}, {"start_date", "January 1, 2025"},
	} {
		key, val := kv.key, kv.val
		f.assistant.InterpretMessageFunc = func(msg string, ps []models.Placeholder, filled map[string]string, idx int, ctx string) models.Interpretation {
			return models.Interpretation{Message: "ok", PlaceholderFilled: true, PlaceholderKey: key, Value: val}
		}
		_, err := f.orch.AdvanceConversation(sessionID, val)
		require.NoError(t, err)
	}
}
