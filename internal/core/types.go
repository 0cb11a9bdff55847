package core

import "time"

const (
	AppName          = "Recall"
	AppUserAgent     = "Recall-Memory/0.1"
	AppRepositoryURL = "https://github.com/sandevgo/recall"
	AppVersion       = "0.1.0"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// RetrievalMethodHybrid tags retrievals made by the hybrid scorer and the token-budget packer.
const RetrievalMethodHybrid = "hybrid_token_limited"

func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Embeddable reports whether messages with this role carry an embedding.
func Embeddable(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

type Thread struct {
	ID        int64     `json:"thread_id"`
	Name      string    `json:"thread_name"`
	CreatedAt time.Time `json:"created_at"`
}

type Message struct {
	ID        int64     `json:"id"`
	ThreadID  int64     `json:"thread_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"-"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Candidate is a stored turn eligible for semantic retrieval.
type Candidate struct {
	ID        int64
	Role      string
	Content   string
	Embedding []float32
	CreatedAt time.Time
}

// CandidateSet holds decodable candidates plus the number of rows dropped
// because their embedding could not be decoded.
type CandidateSet struct {
	Candidates []Candidate
	Skipped    int
}

type ScoredCandidate struct {
	Candidate
	Semantic     float64
	SemanticNorm float64
	Recency      float64
	Score        float64
}

// Turn is a (role, content) pair handed to prompt construction.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Weights struct {
	Semantic float64 `json:"semantic"`
	Recency  float64 `json:"recency"`
}

func DefaultWeights() Weights {
	return Weights{Semantic: 0.7, Recency: 0.3}
}

type ContextOptions struct {
	TopK      int
	MaxTokens int
	Weights   *Weights
	// QueryEmbedding skips embedding the query when the caller already has it.
	QueryEmbedding []float32
}

type ContextResult struct {
	Turns      []Turn `json:"turns"`
	TokensUsed int    `json:"tokens_used"`
	Considered int    `json:"considered"`
	Skipped    int    `json:"skipped"`
}

// TurnOptions overrides the retrieval budget of a single chat turn.
type TurnOptions struct {
	TopK      int
	MaxTokens int
}

type TurnResult struct {
	TurnID         string `json:"turn_id"`
	ThreadID       int64  `json:"thread_id"`
	UserMessage    string `json:"user_message"`
	Response       string `json:"assistant_response"`
	RetrievedCount int    `json:"retrieved_messages"`
	TokenCount     int    `json:"token_count"`
}

type RetrievalEntry struct {
	EventID         string    `json:"event_id"`
	Timestamp       time.Time `json:"timestamp"`
	ThreadID        int64     `json:"thread_id"`
	Query           string    `json:"query"`
	RetrievedCount  int       `json:"retrieved_count"`
	TokenCount      int       `json:"token_count"`
	ResponseLength  int       `json:"response_length"`
	RetrievalMethod string    `json:"retrieval_method"`
	ContextPreview  []string  `json:"context_preview"`
}

type RetrievalStats struct {
	TotalRetrievals      int            `json:"total_retrievals"`
	AvgRetrievedMessages float64        `json:"avg_retrieved_messages"`
	AvgTokenCount        float64        `json:"avg_token_count"`
	AvgResponseLength    float64        `json:"avg_response_length"`
	TotalTokensUsed      int            `json:"total_tokens_used"`
	ThreadsAccessed      int            `json:"threads_accessed"`
	RetrievalMethods     map[string]int `json:"retrieval_methods"`
	Malformed            int            `json:"malformed_entries"`
}

// KeyInfo is the identity attached to a validated API key.
type KeyInfo struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	RateLimit int    `json:"rate_limit"`
}
