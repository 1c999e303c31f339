package model

// DocumentEmbedding holds one serialized embedding vector per chunk.
// Embedding is the little-endian float32 encoding of the vector; its byte
// length must match the dimensionality of ModelName.
type DocumentEmbedding struct {
	ChunkID   string `json:"chunk_id" db:"chunk_id"`
	UserID    string `json:"user_id" db:"user_id"`
	Embedding []byte `json:"-" db:"embedding"`
	ModelName string `json:"model_name" db:"model_name"`
	Ctime     int64  `json:"ctime" db:"ctime"`
}
