package models

// Interpretation is the conversation service's reading of one user
// message: an assistant reply, plus the fill it produced, if any.
type Interpretation struct {
	Message           string     `json:"message"`
	PlaceholderFilled bool       `json:"placeholder_filled"`
	PlaceholderKey    string     `json:"placeholder_key,omitempty"`
	Value             string     `json:"value,omitempty"`
	AutoFills         []AutoFill `json:"auto_fills,omitempty"`
}

// ValidationResult is the outcome of type-aware placeholder value
// validation. ProcessedValue carries the normalized value when valid;
// ErrorMessage carries a human-readable reason when not.
type ValidationResult struct {
	Valid          bool   `json:"valid"`
	ProcessedValue string `json:"processed_value,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
}
