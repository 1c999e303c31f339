package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lorebase/lorebase/internal/repo"
	"github.com/lorebase/lorebase/internal/service"
)

// EmbeddingBackfillJob re-embeds documents whose chunks are missing stored
// embeddings, e.g. after an interrupted ingest or a manual cleanup.
type EmbeddingBackfillJob struct {
	embeddings *repo.EmbeddingRepo
	ingest     *service.IngestService
	batchSize  int
}

func NewEmbeddingBackfillJob(embeddings *repo.EmbeddingRepo, ingest *service.IngestService, batchSize int) *EmbeddingBackfillJob {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &EmbeddingBackfillJob{embeddings: embeddings, ingest: ingest, batchSize: batchSize}
}

func (j *EmbeddingBackfillJob) Name() string {
	return "embedding_backfill"
}

func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	if j.embeddings == nil || j.ingest == nil {
		return nil
	}
	docs, err := j.embeddings.ListDocumentsMissingEmbeddings(ctx, j.batchSize)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	logger := logutil.GetLogger(ctx)
	logger.Info("backfilling embeddings", zap.Int("documents", len(docs)))
	for i := range docs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := j.ingest.Reembed(ctx, &docs[i]); err != nil {
			logger.Error("failed to backfill document",
				zap.String("doc_id", docs[i].ID), zap.Error(err))
			continue
		}
	}
	return nil
}
