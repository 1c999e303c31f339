package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lorebase/lorebase/internal/ai"
	appErr "github.com/lorebase/lorebase/internal/pkg/errors"
	"github.com/lorebase/lorebase/internal/tokenizer"
)

const (
	// DefaultBatchTokenLimit caps the summed token estimate of one
	// sub-batch sent to the embedding service.
	DefaultBatchTokenLimit = 8000
	defaultWorkers         = 4
)

type Config struct {
	// Dimensions is the expected vector length for the configured model.
	// Any response of a different length is a hard validation error.
	Dimensions      int
	BatchTokenLimit int
	Workers         int
	Retry           RetryPolicy
}

// Client turns raw texts into validated embedding vectors. It owns retry,
// dimensionality validation and token-bounded batch grouping; persistence is
// the caller's job and is expected to be all-or-nothing.
type Client struct {
	embedder ai.IEmbedder
	counter  tokenizer.Counter
	cfg      Config
}

func NewClient(embedder ai.IEmbedder, counter tokenizer.Counter, cfg Config) (*Client, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if counter == nil {
		return nil, fmt.Errorf("token counter is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be positive")
	}
	if cfg.BatchTokenLimit <= 0 {
		cfg.BatchTokenLimit = DefaultBatchTokenLimit
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	return &Client{embedder: embedder, counter: counter, cfg: cfg}, nil
}

func (c *Client) ModelName() string {
	return c.embedder.ModelName()
}

func (c *Client) Dimensions() int {
	return c.cfg.Dimensions
}

// Embed fetches one vector, retrying transient provider failures and
// validating the returned dimensionality. A dimension mismatch is permanent
// and never retried.
func (c *Client) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	var result []float32
	err := c.cfg.Retry.Do(ctx, func() error {
		vec, err := c.embedder.Embed(ctx, text, taskType)
		if err != nil {
			return err
		}
		if len(vec) != c.cfg.Dimensions {
			return backoff.Permanent(fmt.Errorf("%w: got %d values, want %d",
				appErr.ErrDimensionMismatch, len(vec), c.cfg.Dimensions))
		}
		result = vec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// EmbedBatch embeds texts grouped into sub-batches bounded by the batch
// token limit. Output order matches input order regardless of worker
// completion order: each worker writes its result at the text's original
// index. If any text fails after retries the whole batch fails; nothing is
// persisted here, so a failed batch leaves no partial state.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	logger := logutil.GetLogger(ctx).With(zap.Int("texts", len(texts)))

	cleaned := make([]string, len(texts))
	for i, text := range texts {
		cleaned[i] = strings.ReplaceAll(text, "\n", " ")
	}

	results := make([][]float32, len(cleaned))
	start := 0
	currentTokens := 0
	for i, text := range cleaned {
		tokens := c.counter.Count(text)
		if currentTokens+tokens > c.cfg.BatchTokenLimit && i > start {
			if err := c.embedRange(ctx, cleaned, results, start, i); err != nil {
				return nil, err
			}
			logger.Debug("embedded sub-batch",
				zap.Int("from", start), zap.Int("to", i), zap.Int("tokens", currentTokens))
			start = i
			currentTokens = 0
		}
		currentTokens += tokens
	}
	if err := c.embedRange(ctx, cleaned, results, start, len(cleaned)); err != nil {
		return nil, err
	}
	logger.Debug("embedded final sub-batch",
		zap.Int("from", start), zap.Int("to", len(cleaned)), zap.Int("tokens", currentTokens))
	return results, nil
}

// embedRange embeds texts[from:to] with a bounded worker pool, writing each
// vector at its original index.
func (c *Client) embedRange(ctx context.Context, texts []string, results [][]float32, from, to int) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, c.cfg.Workers)
	errs := make([]error, to-from)
	var wg sync.WaitGroup
	for i := from; i < to; i++ {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			vec, err := c.Embed(ctx, texts[idx], ai.TaskTypeDocument)
			if err != nil {
				errs[idx-from] = err
				cancel()
				return
			}
			results[idx] = vec
		}(i)
	}
	wg.Wait()
	// Prefer the root cause over cancellation fallout from sibling workers.
	var firstErr error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
		if !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return firstErr
}
