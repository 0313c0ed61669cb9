package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"printdesk/backend/internal/config"
	"printdesk/backend/internal/filestore"
	"printdesk/backend/internal/queue"
	"printdesk/backend/internal/service"
	"printdesk/backend/internal/store"
	"printdesk/backend/internal/store/memory"
	pgstore "printdesk/backend/internal/store/postgres"
	"printdesk/backend/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if cfg.RedisAddr == "" {
		log.Fatal("REDIS_ADDR must be set for the worker")
	}

	bootCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var repo store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable: %v", err)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(bootCtx); err != nil {
			log.Fatalf("ensure schema: %v", err)
		}
		repo = pg
		log.Println("repository: postgres")
	} else {
		// Useful only for local smoke testing: an in-memory repo is not
		// shared with the API server process.
		repo = memory.New()
		log.Println("repository: in-memory (worker sees no API data)")
	}

	files, err := buildFileStore(bootCtx, cfg)
	if err != nil {
		log.Fatalf("file store: %v", err)
	}

	svc := service.New(repo, files, nil)
	processor := worker.NewProcessor(svc)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
	})

	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
		Location: time.Local,
	})
	payload, _ := json.Marshal(queue.EODPayload{})
	if _, err := scheduler.Register(cfg.EODSchedule, asynq.NewTask(queue.EndOfDayTask, payload)); err != nil {
		log.Fatalf("register end-of-day schedule: %v", err)
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			log.Printf("scheduler stopped: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		scheduler.Shutdown()
		server.Shutdown()
	}()

	log.Printf("worker running, end-of-day schedule %q", cfg.EODSchedule)
	if err := server.Run(processor.Handler()); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}

func buildFileStore(ctx context.Context, cfg config.Config) (filestore.FileStore, error) {
	if cfg.MinioEndpoint == "" {
		log.Println("file store: in-memory")
		return filestore.NewMemory(), nil
	}

	minioStore, err := filestore.NewMinIO(filestore.MinIOConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		Region:    cfg.MinioRegion,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, err
	}
	if err := minioStore.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	log.Println("file store: minio")
	return minioStore, nil
}
