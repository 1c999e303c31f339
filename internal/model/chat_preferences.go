package model

// ChatPreferences drives the retrieval path: which chat model the user talks
// to, how much of its context window may be spent on retrieved knowledge, and
// whether knowledge retrieval is enabled at all.
type ChatPreferences struct {
	UserID              string `json:"user_id" db:"user_id"`
	Model               string `json:"model" db:"model"`
	KnowledgeContextPct int    `json:"knowledge_context_pct" db:"knowledge_context_pct"`
	KnowledgeQueryMode  bool   `json:"knowledge_query_mode" db:"knowledge_query_mode"`
}

const (
	DefaultChatModel           = "gpt-4-1106-preview"
	DefaultKnowledgeContextPct = 30
)

// DefaultChatPreferences is what a user gets before saving anything:
// knowledge retrieval stays off until explicitly enabled.
func DefaultChatPreferences(userID string) *ChatPreferences {
	return &ChatPreferences{
		UserID:              userID,
		Model:               DefaultChatModel,
		KnowledgeContextPct: DefaultKnowledgeContextPct,
		KnowledgeQueryMode:  false,
	}
}
