package model

// DocumentFilter pages through the documents of one model. A zero Limit
// means no limit.
type DocumentFilter struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}
