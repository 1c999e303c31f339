package model

type ModelContextWindow struct {
	ModelName         string `json:"model_name" db:"model_name"`
	ContextWindowSize int    `json:"context_window_size" db:"context_window_size"`
}
