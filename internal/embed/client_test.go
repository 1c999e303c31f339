package embed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lorebase/lorebase/internal/ai"
	appErr "github.com/lorebase/lorebase/internal/pkg/errors"
	"github.com/lorebase/lorebase/internal/tokenizer"
)

// fakeEmbedder returns a distinguishable vector per input text so order can
// be asserted, and can be told to fail some or all calls.
type fakeEmbedder struct {
	mu        sync.Mutex
	calls     int
	dims      int
	failTexts map[string]error
	failFirst int // fail this many calls before succeeding
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls++
	calls := f.calls
	f.mu.Unlock()
	if calls <= f.failFirst {
		return nil, errors.New("transient failure")
	}
	if err, ok := f.failTexts[text]; ok {
		return nil, err
	}
	vec := make([]float32, f.dims)
	// Tag the vector with a value derived from the text so each input is
	// distinguishable.
	var tag float32
	if n, err := strconv.Atoi(text); err == nil {
		tag = float32(n)
	}
	for i := range vec {
		vec[i] = tag
	}
	return vec, nil
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed-001" }

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fastRetry(attempts uint64) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func newTestClient(t *testing.T, fake *fakeEmbedder, cfg Config) *Client {
	t.Helper()
	client, err := NewClient(fake, tokenizer.Heuristic{}, cfg)
	require.NoError(t, err)
	return client
}

func TestEmbedValidatesDimensions(t *testing.T) {
	fake := &fakeEmbedder{dims: 8}
	client := newTestClient(t, fake, Config{Dimensions: 16, Retry: fastRetry(5)})

	_, err := client.Embed(context.Background(), "hello", ai.TaskTypeQuery)
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
	// A dimension mismatch is permanent: exactly one provider call.
	require.Equal(t, 1, fake.callCount())
}

func TestEmbedRetriesTransientFailures(t *testing.T) {
	fake := &fakeEmbedder{dims: 4, failFirst: 2}
	client := newTestClient(t, fake, Config{Dimensions: 4, Retry: fastRetry(6)})

	vec, err := client.Embed(context.Background(), "7", ai.TaskTypeQuery)
	require.NoError(t, err)
	require.Len(t, vec, 4)
	require.Equal(t, 3, fake.callCount())
}

func TestEmbedGivesUpAfterMaxAttempts(t *testing.T) {
	fake := &fakeEmbedder{dims: 4, failFirst: 1000}
	client := newTestClient(t, fake, Config{Dimensions: 4, Retry: fastRetry(3)})

	_, err := client.Embed(context.Background(), "7", ai.TaskTypeQuery)
	require.Error(t, err)
	require.Equal(t, 3, fake.callCount())
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	fake := &fakeEmbedder{dims: 4}
	client := newTestClient(t, fake, Config{Dimensions: 4, Workers: 8, Retry: fastRetry(1)})

	texts := make([]string, 50)
	for i := range texts {
		texts[i] = fmt.Sprintf("%d", i)
	}
	vectors, err := client.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, vec := range vectors {
		require.Len(t, vec, 4)
		require.Equal(t, float32(i), vec[0], "vector %d out of order", i)
	}
}

func TestEmbedBatchGroupsByTokenLimit(t *testing.T) {
	fake := &fakeEmbedder{dims: 4}
	// Each "N" text counts as 1 token; a limit of 2 forces several
	// sub-batches while output order must still hold.
	client := newTestClient(t, fake, Config{Dimensions: 4, BatchTokenLimit: 2, Workers: 2, Retry: fastRetry(1)})

	vectors, err := client.EmbedBatch(context.Background(), []string{"0", "1", "2", "3", "4"})
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	for i, vec := range vectors {
		require.Equal(t, float32(i), vec[0])
	}
}

func TestEmbedBatchFailsWhole(t *testing.T) {
	wantErr := errors.New("boom")
	fake := &fakeEmbedder{dims: 4, failTexts: map[string]error{"2": wantErr}}
	client := newTestClient(t, fake, Config{Dimensions: 4, Workers: 4, Retry: fastRetry(1)})

	_, err := client.EmbedBatch(context.Background(), []string{"0", "1", "2", "3"})
	require.ErrorContains(t, err, "boom")
}

func TestEmbedBatchEmpty(t *testing.T) {
	fake := &fakeEmbedder{dims: 4}
	client := newTestClient(t, fake, Config{Dimensions: 4})

	vectors, err := client.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Nil(t, vectors)
	require.Zero(t, fake.callCount())
}

func TestEmbedBatchNewlinesReplaced(t *testing.T) {
	fake := &fakeEmbedder{dims: 4}
	client := newTestClient(t, fake, Config{Dimensions: 4, Retry: fastRetry(1)})

	vectors, err := client.EmbedBatch(context.Background(), []string{"1\n1"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
}
