package testutil

import "github.com/docfill/backend/internal/models"

// MockProcessor is a test double for the document processor. Unset
// functions fall back to permissive defaults.
type MockProcessor struct {
	ParseDocumentFunc        func(path string) (any, error)
	RenderPreviewFunc        func(content any, placeholders []models.Placeholder, filled map[string]string, highlight *int) string
	ComposeFinalDocumentFunc func(templatePath, outputPath string, placeholders []models.Placeholder, filled map[string]string) error
}

func (m *MockProcessor) ParseDocument(path string) (any, error) {
	if m.ParseDocumentFunc != nil {
		return m.ParseDocumentFunc(path)
	}
	return "parsed:" + path, nil
}

func (m *MockProcessor) RenderPreview(content any, placeholders []models.Placeholder, filled map[string]string, highlight *int) string {
	if m.RenderPreviewFunc != nil {
		return m.RenderPreviewFunc(content, placeholders, filled, highlight)
	}
	return "<div class=\"document-preview\"></div>"
}

func (m *MockProcessor) ComposeFinalDocument(templatePath, outputPath string, placeholders []models.Placeholder, filled map[string]string) error {
	if m.ComposeFinalDocumentFunc != nil {
		return m.ComposeFinalDocumentFunc(templatePath, outputPath, placeholders, filled)
	}
	return nil
}

// MockDetector is a test double for the placeholder detector.
type MockDetector struct {
	DetectPlaceholdersFunc func(content any) []models.Placeholder
}

func (m *MockDetector) DetectPlaceholders(content any) []models.Placeholder {
	if m.DetectPlaceholdersFunc != nil {
		return m.DetectPlaceholdersFunc(content)
	}
	return nil
}

// MockAssistant is a test double for the conversation service.
type MockAssistant struct {
	InitializeConversationFunc func(content any, placeholders []models.Placeholder) string
	GreetingMessageFunc        func(placeholders []models.Placeholder) string
	InterpretMessageFunc       func(userMessage string, placeholders []models.Placeholder, filled map[string]string, currentIndex int, aiContext string) models.Interpretation
	ValidateValueFunc          func(raw string, p models.Placeholder) models.ValidationResult
}

func (m *MockAssistant) InitializeConversation(content any, placeholders []models.Placeholder) string {
	if m.InitializeConversationFunc != nil {
		return m.InitializeConversationFunc(content, placeholders)
	}
	return "conv_test"
}

func (m *MockAssistant) GreetingMessage(placeholders []models.Placeholder) string {
	if m.GreetingMessageFunc != nil {
		return m.GreetingMessageFunc(placeholders)
	}
	return "Let's fill in your document."
}

func (m *MockAssistant) InterpretMessage(userMessage string, placeholders []models.Placeholder, filled map[string]string, currentIndex int, aiContext string) models.Interpretation {
	if m.InterpretMessageFunc != nil {
		return m.InterpretMessageFunc(userMessage, placeholders, filled, currentIndex, aiContext)
	}
	return models.Interpretation{Message: "ok"}
}

func (m *MockAssistant) ValidateValue(raw string, p models.Placeholder) models.ValidationResult {
	if m.ValidateValueFunc != nil {
		return m.ValidateValueFunc(raw, p)
	}
	return models.ValidationResult{Valid: true, ProcessedValue: raw}
}
