package conversation

import "github.com/docfill/backend/internal/models"

// DocumentProcessor parses templates, renders previews, and composes the
// final document. Parsed content is opaque to the orchestrator: it is
// stored on the session and handed back unmodified.
type DocumentProcessor interface {
	ParseDocument(path string) (any, error)
	RenderPreview(content any, placeholders []models.Placeholder, filled map[string]string, highlight *int) string
	ComposeFinalDocument(templatePath, outputPath string, placeholders []models.Placeholder, filled map[string]string) error
}

// PlaceholderDetector extracts placeholders from parsed document content.
type PlaceholderDetector interface {
	DetectPlaceholders(content any) []models.Placeholder
}

// AssistantService drives the conversational fill: greeting, message
// interpretation, and value validation. The context token it returns from
// InitializeConversation is opaque and carried on the session.
type AssistantService interface {
	InitializeConversation(content any, placeholders []models.Placeholder) string
	GreetingMessage(placeholders []models.Placeholder) string
	InterpretMessage(userMessage string, placeholders []models.Placeholder, filled map[string]string, currentIndex int, aiContext string) models.Interpretation
	ValidateValue(raw string, p models.Placeholder) models.ValidationResult
}
