// Package assistant implements the conversational value-extraction
// collaborator: greeting, message interpretation against the expected
// placeholder, and type-aware value validation.
package assistant

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docfill/backend/internal/models"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// dateLayouts are accepted input formats, most specific first.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
}

// Service is a deterministic conversation engine. It extracts values from
// user messages one placeholder at a time and validates them by type.
type Service struct{}

// NewService creates a Service.
func NewService() *Service {
	return &Service{}
}

// InitializeConversation returns the opaque context token carried by the
// session for the lifetime of the conversation.
func (s *Service) InitializeConversation(content any, placeholders []models.Placeholder) string {
	return "conv_" + uuid.New().String()
}

// GreetingMessage introduces the fill flow and asks for the first field.
func (s *Service) GreetingMessage(placeholders []models.Placeholder) string {
	if len(placeholders) == 0 {
		return "This document has no placeholders to fill. You can preview and complete it right away."
	}
	plural := "s"
	if len(placeholders) == 1 {
		plural = ""
	}
	return fmt.Sprintf(
		"I found %d field%s to fill in your document. Let's go through them one at a time. First: what should I use for %q?",
		len(placeholders), plural, placeholders[0].Name,
	)
}

// InterpretMessage treats the user message as the value for the next
// expected placeholder. On a valid value it reports the fill, bundles
// auto-fills for placeholders sharing the same name, and prompts for the
// next unfilled field; on an invalid value it returns a corrective reply
// with no fill.
func (s *Service) InterpretMessage(userMessage string, placeholders []models.Placeholder, filled map[string]string, currentIndex int, aiContext string) models.Interpretation {
	target, ok := nextTarget(placeholders, filled, currentIndex)
	if !ok {
		return models.Interpretation{
			Message: "All fields are filled in. You can review any value from the field list, or complete the document to download it.",
		}
	}

	vr := s.ValidateValue(userMessage, target)
	if !vr.Valid {
		return models.Interpretation{Message: vr.ErrorMessage}
	}

	autoFills := autoFillsFor(target, vr.ProcessedValue, placeholders, filled)

	// Project the fill to find what to ask for next.
	projected := make(map[string]string, len(filled)+1+len(autoFills))
	for k, v := range filled {
		projected[k] = v
	}
	projected[target.Key] = vr.ProcessedValue
	for _, af := range autoFills {
		projected[af.Key] = af.Value
	}

	msg := fmt.Sprintf("Got it — %s is set to %q.", target.Name, vr.ProcessedValue)
	if next, ok := nextTarget(placeholders, projected, currentIndex+1); ok {
		msg += fmt.Sprintf(" Next: what should I use for %q?", next.Name)
	} else {
		msg += " That was the last one — every field is filled. You can review the preview or complete the document."
	}

	return models.Interpretation{
		Message:           msg,
		PlaceholderFilled: true,
		PlaceholderKey:    target.Key,
		Value:             vr.ProcessedValue,
		AutoFills:         autoFills,
	}
}

// nextTarget picks the first unfilled placeholder at or after the cursor,
// falling back to the first unfilled one anywhere.
func nextTarget(placeholders []models.Placeholder, filled map[string]string, currentIndex int) (models.Placeholder, bool) {
	if currentIndex < 0 {
		currentIndex = 0
	}
	for i := currentIndex; i < len(placeholders); i++ {
		if _, ok := filled[placeholders[i].Key]; !ok {
			return placeholders[i], true
		}
	}
	for _, p := range placeholders {
		if _, ok := filled[p.Key]; !ok {
			return p, true
		}
	}
	return models.Placeholder{}, false
}

// autoFillsFor returns assignments for unfilled placeholders that share
// the target's name, such as a company name repeated in a header.
func autoFillsFor(target models.Placeholder, value string, placeholders []models.Placeholder, filled map[string]string) []models.AutoFill {
	var out []models.AutoFill
	for _, p := range placeholders {
		if p.Key == target.Key || !strings.EqualFold(p.Name, target.Name) {
			continue
		}
		if _, ok := filled[p.Key]; ok {
			continue
		}
		out = append(out, models.AutoFill{Key: p.Key, Value: value})
	}
	return out
}

// ValidateValue validates and normalizes a raw value against the
// placeholder's type. It is the single validation contract used by both
// sequential fills and edits.
func (s *Service) ValidateValue(raw string, p models.Placeholder) models.ValidationResult {
	value := strings.TrimSpace(raw)
	if value == "" {
		return invalid(fmt.Sprintf("Please provide a value for %s.", p.Name))
	}

	switch p.Type {
	case models.PlaceholderTypeDate:
		return validateDate(value, p)
	case models.PlaceholderTypeCurrency:
		return validateCurrency(value, p)
	case models.PlaceholderTypeEmail:
		if !emailPattern.MatchString(value) {
			return invalid(fmt.Sprintf("%q doesn't look like an email address. Please provide a valid one for %s.", value, p.Name))
		}
		return valid(strings.ToLower(value))
	case models.PlaceholderTypePhone:
		digits := keepDigits(value)
		if len(digits) < 7 {
			return invalid(fmt.Sprintf("%q doesn't look like a phone number. Please provide at least 7 digits for %s.", value, p.Name))
		}
		return valid(value)
	case models.PlaceholderTypeNumber:
		if _, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64); err != nil {
			return invalid(fmt.Sprintf("%q isn't a number. Please provide a numeric value for %s.", value, p.Name))
		}
		return valid(value)
	default:
		return valid(value)
	}
}

func validateDate(value string, p models.Placeholder) models.ValidationResult {
	for _, layout := range dateLayouts {
		if t, err := parseDate(layout, value); err == nil {
			return valid(t)
		}
	}
	return invalid(fmt.Sprintf("I couldn't read %q as a date for %s. Try a format like 2025-01-31 or January 31, 2025.", value, p.Name))
}

// parseDate normalizes an accepted date input to the long form used in
// legal documents.
func parseDate(layout, value string) (string, error) {
	t, err := time.Parse(layout, value)
	if err != nil {
		return "", err
	}
	return t.Format("January 2, 2006"), nil
}

func validateCurrency(value string, p models.Placeholder) models.ValidationResult {
	cleaned := strings.TrimSpace(strings.TrimPrefix(value, "$"))
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	amount, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || amount < 0 {
		return invalid(fmt.Sprintf("I couldn't read %q as an amount for %s. Try something like 5000 or $5,000.00.", value, p.Name))
	}
	return valid("$" + formatAmount(amount))
}

// formatAmount renders an amount with thousands separators and two
// decimal places.
func formatAmount(amount float64) string {
	whole := fmt.Sprintf("%.2f", amount)
	dot := strings.IndexByte(whole, '.')
	intPart, fracPart := whole[:dot], whole[dot:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + fracPart
}

func keepDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func valid(processed string) models.ValidationResult {
	return models.ValidationResult{Valid: true, ProcessedValue: processed}
}

func invalid(msg string) models.ValidationResult {
	return models.ValidationResult{ErrorMessage: msg}
}
