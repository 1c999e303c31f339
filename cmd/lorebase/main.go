package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/lorebase/lorebase/internal/ai"
	"github.com/lorebase/lorebase/internal/config"
	"github.com/lorebase/lorebase/internal/embed"
	"github.com/lorebase/lorebase/internal/embedcache"
	"github.com/lorebase/lorebase/internal/filestore"
	"github.com/lorebase/lorebase/internal/handler"
	"github.com/lorebase/lorebase/internal/job"
	"github.com/lorebase/lorebase/internal/middleware"
	"github.com/lorebase/lorebase/internal/repo"
	"github.com/lorebase/lorebase/internal/schedule"
	"github.com/lorebase/lorebase/internal/service"
	"github.com/lorebase/lorebase/internal/tokenizer"
	"github.com/lorebase/lorebase/internal/vector"
	"github.com/lorebase/lorebase/internal/vectorcache"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "lorebase",
		Short: "lorebase retrieval server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run lorebase server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			db, err := repo.Open(cfg.DSN)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, db)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, db *sqlx.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("embedding_model", cfg.RAG.EmbeddingModel),
		zap.String("file_store", cfg.FileStore.Type),
	)

	docRepo := repo.NewDocumentRepo(db)
	chunkRepo := repo.NewChunkRepo(db)
	embeddingRepo := repo.NewEmbeddingRepo(db)
	cacheRepo := repo.NewEmbeddingCacheRepo(db)
	windowRepo := repo.NewContextWindowRepo(db)
	prefsRepo := repo.NewPreferencesRepo(db)
	messageChunkRepo := repo.NewMessageChunkRepo(db)

	for name, size := range cfg.RAG.ContextWindows {
		if err := windowRepo.Upsert(context.Background(), name, size); err != nil {
			return fmt.Errorf("seed context window for %s: %w", name, err)
		}
	}

	counter, err := buildCounter()
	if err != nil {
		return err
	}
	dims := config.ModelDimensions[cfg.RAG.EmbeddingModel]

	provider, err := ai.NewEmbedProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	embedder := ai.NewEmbedder(provider, cfg.RAG.EmbeddingModel)
	embedder = embedcache.WrapDB(embedder, cacheRepo)
	embedder = embedcache.WrapLRU(embedder, cfg.RAG.LRUCacheSize,
		time.Duration(cfg.RAG.LRUCacheTTLMinutes)*time.Minute)
	embedClient, err := embed.NewClient(embedder, counter, embed.Config{
		Dimensions:      dims,
		BatchTokenLimit: cfg.RAG.BatchTokenLimit,
		Workers:         cfg.RAG.EmbedWorkers,
		Retry:           embed.DefaultRetryPolicy(),
	})
	if err != nil {
		return fmt.Errorf("init embed client: %w", err)
	}

	vectorCache := vectorcache.New(vectorcache.LoaderFunc(
		func(ctx context.Context, userID string) (map[string][]float32, error) {
			rows, err := embeddingRepo.ListSelectedByUser(ctx, userID)
			if err != nil {
				return nil, err
			}
			vectors := make(map[string][]float32, len(rows))
			for _, row := range rows {
				vec, err := vector.Decode(row.Embedding, dims)
				if err != nil {
					return nil, fmt.Errorf("chunk %s: %w", row.ChunkID, err)
				}
				vectors[row.ChunkID] = vec
			}
			return vectors, nil
		}), time.Duration(cfg.RAG.VectorTTLMinutes)*time.Minute)

	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return fmt.Errorf("init file store: %w", err)
	}

	ingestService := service.NewIngestService(docRepo, chunkRepo, embeddingRepo,
		embedClient, counter, store, vectorCache, cfg.RAG.MaxChunkTokens)
	retrievalService := service.NewRetrievalService(prefsRepo, windowRepo, chunkRepo,
		embedClient, vectorCache, messageChunkRepo)
	preferencesService := service.NewPreferencesService(prefsRepo, windowRepo)

	deps := handler.RouterDeps{
		Documents:   handler.NewDocumentHandler(ingestService),
		Query:       handler.NewQueryHandler(retrievalService),
		Preferences: handler.NewPreferencesHandler(preferencesService),
		JWTSecret:   []byte(cfg.JWTSecret),
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(nil),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.RAG.CacheRetentionDays), "30 3 * * *"); err != nil {
		return err
	}
	if err := scheduler.AddJob(job.NewEmbeddingBackfillJob(embeddingRepo, ingestService, 10), "*/15 * * * *"); err != nil {
		return err
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening",
		zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}

// buildCounter prefers exact BPE token counts and falls back to the word
// heuristic if the encoding cannot be loaded.
func buildCounter() (tokenizer.Counter, error) {
	counter, err := tokenizer.NewBPE(tokenizer.DefaultEncoding)
	if err != nil {
		logutil.GetLogger(context.Background()).Warn("bpe encoding unavailable, using heuristic counter", zap.Error(err))
		return tokenizer.Heuristic{}, nil
	}
	return counter, nil
}
