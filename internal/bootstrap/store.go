// Package bootstrap opens the configured backends for the server and the operator CLI.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/internal/config"
	mongoInfra "github.com/fastygo/dailyquest/internal/infrastructure/mongo"
	pgInfra "github.com/fastygo/dailyquest/internal/infrastructure/postgres"
	"github.com/fastygo/dailyquest/internal/infrastructure/storage"
	"github.com/fastygo/dailyquest/repository"
	"github.com/fastygo/dailyquest/repository/memory"
	mongoRepo "github.com/fastygo/dailyquest/repository/mongo"
	pgRepo "github.com/fastygo/dailyquest/repository/postgres"
	"github.com/fastygo/dailyquest/usecase"
)

// CloseFunc releases a backend opened by this package.
type CloseFunc func(ctx context.Context) error

func noClose(context.Context) error { return nil }

// OpenStore connects the store selected by STORE_DRIVER. Postgres migrations run first when enabled.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, CloseFunc, error) {
	switch cfg.Store.Driver {
	case config.StorePostgres:
		if err := pgInfra.RunMigrations(cfg, logger); err != nil {
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		pool, err := pgInfra.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		return pgRepo.NewStore(pool), func(context.Context) error {
			pool.Close()
			return nil
		}, nil

	case config.StoreMongo:
		client, db, err := mongoInfra.Connect(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("mongo: %w", err)
		}
		store := mongoRepo.New(db)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return store, client.Disconnect, nil

	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.New(), noClose, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Proofs bundles the proof storage with what the HTTP layer needs to know about it.
type Proofs struct {
	Storage *storage.URLCache
	// LocalDir is set when proofs are stored on disk and must be served by this process.
	LocalDir string
}

// OpenProofs builds the proof storage selected by PROOFS_DRIVER behind a URL cache.
func OpenProofs(ctx context.Context, cfg *config.Config) (*Proofs, error) {
	var (
		inner    usecase.ProofStorage
		ttl      = time.Hour
		localDir string
	)

	switch cfg.Proofs.Driver {
	case config.ProofsS3:
		s3Store, err := storage.NewS3ProofStore(ctx, storage.S3Config{
			Bucket:       cfg.Proofs.S3Bucket,
			Region:       cfg.Proofs.S3Region,
			Endpoint:     cfg.Proofs.S3Endpoint,
			AccessKey:    cfg.Proofs.S3AccessKey,
			SecretKey:    cfg.Proofs.S3SecretKey,
			Prefix:       cfg.Proofs.S3Prefix,
			UsePathStyle: cfg.Proofs.S3PathStyle,
			PresignTTL:   cfg.Proofs.PresignTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 proofs: %w", err)
		}
		inner = s3Store
		// cached URLs must expire well before the presigned ones
		ttl = s3Store.URLTTL() / 2

	case config.ProofsLocal:
		local, err := storage.NewLocalProofStore(cfg.Proofs.LocalDir, cfg.HTTP.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("local proofs: %w", err)
		}
		inner = local
		localDir = local.Root()

	default:
		return nil, fmt.Errorf("unknown proofs driver %q", cfg.Proofs.Driver)
	}

	cache, err := storage.NewURLCache(inner, cfg.Proofs.URLCacheSize, ttl)
	if err != nil {
		return nil, err
	}
	return &Proofs{Storage: cache, LocalDir: localDir}, nil
}
