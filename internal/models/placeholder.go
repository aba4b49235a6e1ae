package models

// PlaceholderType classifies a placeholder for type-aware validation.
type PlaceholderType string

const (
	PlaceholderTypeText     PlaceholderType = "text"
	PlaceholderTypeDate     PlaceholderType = "date"
	PlaceholderTypeCurrency PlaceholderType = "currency"
	PlaceholderTypeEmail    PlaceholderType = "email"
	PlaceholderTypePhone    PlaceholderType = "phone"
	PlaceholderTypeNumber   PlaceholderType = "number"
)

// Placeholder is a named slot in a template document awaiting a value.
// Placeholders are immutable once detected; their order defines the
// default fill sequence.
type Placeholder struct {
	Key          string          `json:"key" msgpack:"key"`
	Name         string          `json:"name" msgpack:"name"`
	Type         PlaceholderType `json:"type" msgpack:"type"`
	Location     int             `json:"location" msgpack:"location"`
	LocationType string          `json:"location_type" msgpack:"location_type"`
	Original     string          `json:"original" msgpack:"original"`
}

// AutoFill is a secondary assignment bundled with a conversational fill,
// used when one answer determines multiple placeholders (e.g. a company
// name repeated in the header).
type AutoFill struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
