package models

import "time"

// SessionStatus represents the lifecycle state of a fill session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
)

// ConversationTurn is one entry in the append-only conversation log.
type ConversationTurn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session holds the full mutable state of one in-progress document-filling
// interaction. Mutation happens only through the session store's commit
// path; readers always receive a clone.
type Session struct {
	ID       string `json:"session_id"`
	Filepath string `json:"-"`
	Filename string `json:"filename"`

	// Content is the parsed document snapshot. It is owned by the document
	// processor and passed through unmodified.
	Content any `json:"-"`

	// AIContext is an opaque token owned by the conversation service.
	AIContext string `json:"-"`

	Placeholders        []Placeholder      `json:"placeholders"`
	FilledValues        map[string]string  `json:"filled_values"`
	CurrentIndex        int                `json:"current_index"`
	ConversationHistory []ConversationTurn `json:"conversation_history"`

	Status            SessionStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	CompletedAt       time.Time     `json:"completed_at,omitempty"`
	CompletedDocument string        `json:"-"`
}

// NewSession creates an active session with no filled values and the
// fill cursor at the first placeholder.
func NewSession(filepath, filename string, content any, placeholders []Placeholder, aiContext string) *Session {
	return &Session{
		Filepath:            filepath,
		Filename:            filename,
		Content:             content,
		AIContext:           aiContext,
		Placeholders:        placeholders,
		FilledValues:        make(map[string]string),
		CurrentIndex:        0,
		ConversationHistory: make([]ConversationTurn, 0),
		Status:              SessionStatusActive,
		CreatedAt:           time.Now(),
	}
}

// Clone returns a deep copy of the session's mutable state. The document
// content and AI context are shared: both are opaque snapshots owned by
// their collaborators and never modified here.
func (s *Session) Clone() *Session {
	out := *s

	out.Placeholders = make([]Placeholder, len(s.Placeholders))
	copy(out.Placeholders, s.Placeholders)

	out.FilledValues = make(map[string]string, len(s.FilledValues))
	for k, v := range s.FilledValues {
		out.FilledValues[k] = v
	}

	out.ConversationHistory = make([]ConversationTurn, len(s.ConversationHistory))
	copy(out.ConversationHistory, s.ConversationHistory)

	return &out
}

// PlaceholderIndex returns the positional index of key among the session's
// placeholders, or -1 if the key is unknown.
func (s *Session) PlaceholderIndex(key string) int {
	for i, p := range s.Placeholders {
		if p.Key == key {
			return i
		}
	}
	return -1
}
