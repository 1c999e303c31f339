package model

// MessageChunk records which chunk was injected into the context of a chat
// message and at what similarity rank. Rows cascade away with either side.
type MessageChunk struct {
	MessageID string `json:"message_id" db:"message_id"`
	ChunkID   string `json:"chunk_id" db:"chunk_id"`
	Rank      int    `json:"rank" db:"rank"`
}
