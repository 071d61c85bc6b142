package inference

import (
	"context"
)

// Client interface defines the methods for AI inference operations
type Client interface {
	EvaluateWord(ctx context.Context, params EvaluateWordRequest) (EvaluateWordResponse, error)
}

// EvaluateWordRequest holds one word to grade along with the sentence it was used in.
// PageContext selects which criteria the grader emphasizes.
type EvaluateWordRequest struct {
	Word        string `json:"word"`
	Context     string `json:"context"`
	Difficulty  string `json:"difficulty"`
	Language    string `json:"language"`
	PageContext string `json:"page_context"`
}

// EvaluateWordResponse is the structured grading parsed from the provider's reply.
type EvaluateWordResponse struct {
	Score      int     `json:"score"`
	Status     string  `json:"status"`
	Feedback   string  `json:"feedback"`
	Confidence float64 `json:"confidence,omitempty"`
}

const (
	DefaultMaxRetryAttempts = 3
)
