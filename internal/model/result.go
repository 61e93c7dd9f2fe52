package model

// ValidationResult is the verdict of checking a document against a
// definition. Log can be non-empty for a valid document: missing fields are
// reported without invalidating it.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Log     []string `json:"log"`
}
