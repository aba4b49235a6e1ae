// Package detect extracts placeholders from a parsed template document.
package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/docfill/backend/internal/docproc"
	"github.com/docfill/backend/internal/models"
)

// tokenPattern matches the supported placeholder syntaxes: {{curly_names}},
// [Bracketed Names] with an optional currency sigil, and underscore blanks.
var tokenPattern = regexp.MustCompile(`(\{\{\s*[^{}]+?\s*\}\})|(\$?\[[^\[\]]+\])|(\$?_{3,})`)

var (
	curlyInner   = regexp.MustCompile(`^\{\{\s*(.+?)\s*\}\}$`)
	bracketInner = regexp.MustCompile(`^(\$?)\[\s*(.+?)\s*\]$`)
	camelBound   = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	nonKeyChars  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Detector finds placeholders in document content.
type Detector struct{}

// NewDetector creates a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// DetectPlaceholders scans the paragraphs of a parsed document in order
// and returns the placeholders found. Keys are unique within the document;
// repeated names get a numeric suffix.
func (d *Detector) DetectPlaceholders(content any) []models.Placeholder {
	doc, ok := content.(*docproc.DocumentContent)
	if !ok || doc == nil {
		return nil
	}

	placeholders := make([]models.Placeholder, 0)
	keyCounts := make(map[string]int)

	for _, par := range doc.Paragraphs {
		for _, loc := range tokenPattern.FindAllStringIndex(par.Text, -1) {
			original := par.Text[loc[0]:loc[1]]
			name := displayName(original)
			if name == "" {
				continue
			}

			base := keyFor(name)
			keyCounts[base]++
			key := base
			if n := keyCounts[base]; n > 1 {
				key = fmt.Sprintf("%s_%d", base, n)
			}

			placeholders = append(placeholders, models.Placeholder{
				Key:          key,
				Name:         name,
				Type:         inferType(name, original),
				Location:     par.Index,
				LocationType: "paragraph",
				Original:     original,
			})
		}
	}
	return placeholders
}

// displayName derives the human label from the verbatim token.
func displayName(original string) string {
	if m := curlyInner.FindStringSubmatch(original); m != nil {
		return humanize(m[1])
	}
	if m := bracketInner.FindStringSubmatch(original); m != nil {
		return humanize(m[2])
	}
	// Underscore blank
	if strings.HasPrefix(original, "$") {
		return "Amount"
	}
	return "Blank"
}

// humanize turns snake_case, kebab-case, or camelCase identifiers into a
// spaced, title-cased label. Already-spaced names pass through title-cased.
func humanize(s string) string {
	s = camelBound.ReplaceAllString(s, "$1 $2")
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	words := strings.Fields(s)
	for i, w := range words {
		if w == strings.ToLower(w) {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// keyFor derives the document-unique base key from a display name.
func keyFor(name string) string {
	key := nonKeyChars.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(key, "_")
}

// inferType guesses the value type used by validation from the label and
// the verbatim token.
func inferType(name, original string) models.PlaceholderType {
	if strings.Contains(original, "$") {
		return models.PlaceholderTypeCurrency
	}
	lname := strings.ToLower(name)
	switch {
	case strings.Contains(lname, "date"):
		return models.PlaceholderTypeDate
	case strings.Contains(lname, "email"):
		return models.PlaceholderTypeEmail
	case strings.Contains(lname, "phone"):
		return models.PlaceholderTypePhone
	case containsAny(lname, "amount", "price", "fee", "salary", "cost", "rate"):
		return models.PlaceholderTypeCurrency
	case containsAny(lname, "number", "quantity", "qty", "count", "age", "zip"):
		return models.PlaceholderTypeNumber
	default:
		return models.PlaceholderTypeText
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
