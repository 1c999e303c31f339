package model

// DocumentChunk is a contiguous span of a document's processed text, the
// atomic unit of embedding and retrieval. ChunkIndex values for one document
// are contiguous starting at 0.
type DocumentChunk struct {
	ID         string `json:"id" db:"id"`
	DocumentID string `json:"document_id" db:"document_id"`
	ChunkIndex int    `json:"chunk_index" db:"chunk_index"`
	Content    string `json:"content" db:"content"`
	Tokens     int    `json:"tokens" db:"tokens"`
	Pages      string `json:"pages" db:"pages"`
}

// ChunkWithDocument joins a chunk with its parent document's metadata for the
// retrieval path.
type ChunkWithDocument struct {
	ID      string `db:"id"`
	Title   string `db:"title"`
	Author  string `db:"author"`
	Pages   string `db:"pages"`
	Content string `db:"content"`
	Tokens  int    `db:"tokens"`
}
