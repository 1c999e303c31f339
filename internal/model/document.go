package model

type Document struct {
	ID          string `json:"id" db:"id"`
	UserID      string `json:"user_id" db:"user_id"`
	Title       string `json:"title" db:"title"`
	Author      string `json:"author" db:"author"`
	FileName    string `json:"file_name" db:"file_name"`
	TotalTokens int    `json:"total_tokens" db:"total_tokens"`
	PageCount   string `json:"page_count" db:"page_count"`
	Selected    bool   `json:"selected" db:"selected"`
	Ctime       int64  `json:"ctime" db:"ctime"`
	Mtime       int64  `json:"mtime" db:"mtime"`
}
