package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeuristicCount(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{name: "empty", text: "", want: 0},
		{name: "single word", text: "hello", want: 1},
		{name: "several words", text: "the quick brown fox", want: 4},
		{name: "cjk counts per rune", text: "你好", want: 3},
		{name: "whitespace only", text: "   ", want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Heuristic{}.Count(tt.text))
		})
	}
}

func TestHeuristicDeterministic(t *testing.T) {
	text := "a moderately sized sentence used twice"
	require.Equal(t, Heuristic{}.Count(text), Heuristic{}.Count(text))
}
