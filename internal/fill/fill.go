// Package fill contains the pure placeholder fill state machine. Every
// transformation takes a session snapshot and returns a new snapshot; no
// function here performs I/O or touches storage.
package fill

import (
	"fmt"
	"math"

	"github.com/docfill/backend/internal/models"
)

// ErrUnknownField is returned when an edit targets a key that is not among
// the session's placeholders.
type ErrUnknownField struct {
	Key string
}

func (e *ErrUnknownField) Error() string {
	return fmt.Sprintf("unknown placeholder key: %s", e.Key)
}

// ApplySequentialFill records a conversational fill. The primary value and
// any bundled auto-fills are written to the filled-value map (overwrite is
// allowed), and the turn cursor advances by exactly one step regardless of
// how many auto-fills were applied.
func ApplySequentialFill(s *models.Session, key, value string, autoFills []models.AutoFill) *models.Session {
	next := s.Clone()
	next.FilledValues[key] = value
	for _, af := range autoFills {
		next.FilledValues[af.Key] = af.Value
	}
	next.CurrentIndex++
	return next
}

// ApplyEdit records a random-access assignment to any known placeholder and
// repositions the turn cursor to that placeholder's position, so sequential
// flow resumes from there.
func ApplyEdit(s *models.Session, key, value string) (*models.Session, error) {
	idx := s.PlaceholderIndex(key)
	if idx < 0 {
		return nil, &ErrUnknownField{Key: key}
	}
	next := s.Clone()
	next.FilledValues[key] = value
	next.CurrentIndex = idx
	return next, nil
}

// IsComplete reports whether every placeholder has a value.
func IsComplete(s *models.Session) bool {
	return len(s.FilledValues) == len(s.Placeholders)
}

// NextPreviewIndex returns the placeholder position to highlight in a
// preview. The second return is false once the cursor has run past the
// last placeholder.
func NextPreviewIndex(s *models.Session) (int, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Placeholders) {
		return 0, false
	}
	return s.CurrentIndex, true
}

// ProgressPercentage returns the filled share as a percentage rounded to
// one decimal place. A document with no placeholders reports 0.
func ProgressPercentage(s *models.Session) float64 {
	if len(s.Placeholders) == 0 {
		return 0
	}
	pct := float64(len(s.FilledValues)) / float64(len(s.Placeholders)) * 100
	return math.Round(pct*10) / 10
}

// UnfilledNames returns the names of placeholders without a value, in
// document order, capped at limit (0 means no cap). The second return is
// the total number of unfilled placeholders.
func UnfilledNames(s *models.Session, limit int) ([]string, int) {
	var names []string
	total := 0
	for _, p := range s.Placeholders {
		if _, ok := s.FilledValues[p.Key]; ok {
			continue
		}
		total++
		if limit == 0 || len(names) < limit {
			names = append(names, p.Name)
		}
	}
	return names, total
}
