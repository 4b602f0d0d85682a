// Package search provides full-text search over messages, with
// Meilisearch as the primary engine and PostgreSQL FTS as fallback.
package search

// Result is a single search hit returned to the caller.
type Result struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner"`
	Snippet  string `json:"snippet"`
	InThread string `json:"inThread,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text           string
	FilterThreadID string // empty = all threads
	Limit          int
	Offset         int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// MessageRecord is the data we index for a message.
type MessageRecord struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner"`
	Content  string `json:"content"`
	InThread string `json:"inThread"`
}
