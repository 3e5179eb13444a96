// Package app assembles the service from its configuration
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/h3nryswan/video-transcoder/aws"
	"github.com/h3nryswan/video-transcoder/config"
	"github.com/h3nryswan/video-transcoder/db"
	"github.com/h3nryswan/video-transcoder/internal"
	"github.com/h3nryswan/video-transcoder/internal/ledger"
	"github.com/h3nryswan/video-transcoder/internal/registry"
	"github.com/h3nryswan/video-transcoder/internal/service"
	"github.com/h3nryswan/video-transcoder/internal/store"
	"github.com/h3nryswan/video-transcoder/pkg/security"
	"github.com/h3nryswan/video-transcoder/pkg/validators"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type App struct {
	Router *gin.Engine
	Deps   *internal.Deps

	store    *store.Store
	queue    *service.JobQueue
	asynq    *service.AsynqDispatcher
	worker   *service.AsynqWorker
	recovery *service.Recovery
	cancel   context.CancelFunc
}

// New opens the store, recovers jobs left over by the previous run, starts
// the workers and builds the router
func New(cfg *config.Config) (*App, error) {
	for _, dir := range []string{cfg.Data.Dir, cfg.Data.UploadsDir, cfg.Data.OutputsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory, %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{cancel: cancel}

	backend, err := openBackend(cfg)
	if err != nil {
		cancel()
		return nil, err
	}

	a.store, err = store.Open(ctx, backend)
	if err != nil {
		backend.Close()
		cancel()
		return nil, err
	}

	if err := a.start(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) start(ctx context.Context, cfg *config.Config) error {
	encoder := service.Encoder{
		Path:         cfg.Encoder.Path,
		VideoCodec:   cfg.Encoder.VideoCodec,
		Preset:       cfg.Encoder.Preset,
		CRF:          cfg.Encoder.CRF,
		AudioCodec:   cfg.Encoder.AudioCodec,
		AudioBitrate: cfg.Encoder.AudioBitrate,
		MaxDuration:  cfg.Encoder.MaxDuration,
	}

	var mirror service.Mirror
	if cfg.Mirror.Enabled {
		s3, err := aws.NewS3(ctx, aws.S3Options{
			Bucket:          cfg.Mirror.Bucket,
			Region:          cfg.Mirror.Region,
			Endpoint:        cfg.Mirror.Endpoint,
			AccessKeyID:     cfg.Mirror.AccessKeyID,
			SecretAccessKey: cfg.Mirror.SecretAccessKey,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client, %w", err)
		}

		mirror = service.NewS3Mirror(s3)
	}

	sup := service.NewSupervisor(a.store, encoder, mirror)

	var dispatcher service.Dispatcher
	switch cfg.Queue.Driver {
	case "redis":
		a.asynq = service.NewAsynqDispatcher(cfg.Queue.RedisAddr, cfg.Encoder.MaxDuration)
		a.worker = service.NewAsynqWorker(cfg.Queue.RedisAddr, sup, cfg.Encoder.Workers)
		dispatcher = a.asynq
	default:
		a.queue = service.NewJobQueue(sup, cfg.Encoder.Workers, cfg.Encoder.QueueSize)
		dispatcher = a.queue
	}

	a.recovery = service.NewRecovery(a.store, dispatcher)

	// Has to happen before any worker could claim a job
	if err := a.recovery.Recover(ctx); err != nil {
		return fmt.Errorf("failed to recover jobs, %w", err)
	}

	if a.queue != nil {
		a.queue.StartWorkerPool(ctx)
	}

	if a.worker != nil {
		if err := a.worker.Start(); err != nil {
			return err
		}
	}

	if err := a.recovery.Start(cfg.Queue.RequeueInterval); err != nil {
		return err
	}

	a.Deps = &internal.Deps{
		Config:       cfg,
		Files:        registry.New(a.store),
		Jobs:         ledger.New(a.store),
		Orchestrator: service.NewOrchestrator(a.store, dispatcher, cfg.Data.OutputsDir),
		Encoder:      encoder,
		Argon:        security.New(),
		Validator:    validators.VideoValidator{AllowedTypes: cfg.Upload.AllowedTypes},
	}

	a.Router = NewRouter(ctx, a.Deps)

	zap.L().Info("Transcoder ready",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("queue", cfg.Queue.Driver),
		zap.Int("workers", cfg.Encoder.Workers),
		zap.Bool("mirror", mirror != nil))

	return nil
}

func openBackend(cfg *config.Config) (store.Backend, error) {
	switch cfg.Storage.Driver {
	case "json":
		return store.NewDocument(cfg.Storage.Path)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory, %w", err)
		}

		gdb, err := db.New("sqlite", cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		return store.NewSQL(gdb)
	case "postgres":
		gdb, err := db.New("postgres", cfg.Storage.DSN)
		if err != nil {
			return nil, err
		}
		return store.NewSQL(gdb)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// Close stops accepting work, lets running encodes record their outcome
// and closes the store
func (a *App) Close() error {
	if a.recovery != nil {
		a.recovery.Stop()
	}

	if a.worker != nil {
		a.worker.Stop()
	}

	if a.queue != nil {
		a.queue.Stop()
	}

	var errs []error

	if a.asynq != nil {
		if err := a.asynq.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close asynq client, %w", err))
		}
	}

	a.cancel()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close store, %w", err))
		}
	}

	return errors.Join(errs...)
}
