// Package types defines core data structures for mailsift.
package types

import "time"

// Message is a fetched Gmail message reduced to the fields the
// classification pipeline consumes.
type Message struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
	// Date is the UTC calendar date derived from Gmail's internalDate,
	// empty when the provider did not supply one.
	Date    string `json:"date,omitempty"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// EmailRecord is a classified email as persisted in the record store.
// Categories always holds exactly two labels, rank-descending by
// confidence; a record is never created otherwise.
type EmailRecord struct {
	ID          string   `json:"id"`
	ThreadID    string   `json:"threadId"`
	Date        string   `json:"date,omitempty"`
	Sender      string   `json:"sender"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	Categories  []string `json:"categories"`
	ProcessedAt string   `json:"processed_at"`
}

// ClassificationResult is one prediction from the classifier service.
// Labels and Confidences are parallel, rank-descending.
type ClassificationResult struct {
	Success     bool      `json:"success"`
	Labels      []string  `json:"labels"`
	Confidences []float64 `json:"confidences"`
	Err         string    `json:"error,omitempty"`
}

// CategoryProbability pairs a known category with its predicted
// probability.
type CategoryProbability struct {
	Category    string  `json:"category"`
	Probability float64 `json:"probability"`
}

// ClassifyInput is the subject/body pair sent to the classifier.
type ClassifyInput struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// IngestResult is the outcome of one ingestion call: only the records
// newly persisted during that call.
type IngestResult struct {
	NewCount  int           `json:"new_count"`
	Processed []EmailRecord `json:"processed"`
}

// Now returns the current UTC time as an ISO 8601 string.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
