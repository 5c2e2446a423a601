package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"ai-letter/artifacts"
	"ai-letter/config"
	"ai-letter/curation"
	"ai-letter/db"
	"ai-letter/digest"
	"ai-letter/enricher"
	"ai-letter/eventbus"
	"ai-letter/fetcher"
	"ai-letter/history"
	"ai-letter/pipeline"
	"ai-letter/quota"
	"ai-letter/reasoning"
	"ai-letter/renderer"
	"ai-letter/repositories"
	"ai-letter/sources"
	"ai-letter/summarizer"
)

// app holds everything the subcommands need.
type app struct {
	cfg       config.AppConfig
	memory    *history.Memory
	artifacts artifacts.Store
	pipeline  *pipeline.Pipeline
	usesMongo bool

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// resolvePath makes relative data paths relative to the config.yaml directory.
func resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(config.GetBasePath(), p)
}

// bootstrap loads config and opens the storage layer. withPipeline also builds
// the reasoning client and every stage.
func bootstrap(ctx context.Context, withPipeline bool) (*app, error) {
	config.InitApp()
	cfg := config.GetConfig()
	config.InitLogger(cfg.Logging)

	a := &app{cfg: cfg}
	a.usesMongo = cfg.Storage.Backend == "mongo" || cfg.History.Backend == "mongo"
	if a.usesMongo {
		if err := db.Init(ctx, cfg.Mongo); err != nil {
			return nil, fmt.Errorf("failed to initialize MongoDB: %w", err)
		}
		a.closers = append(a.closers, func() { _ = db.Disconnect(context.Background()) })
	}

	var store history.Store
	if cfg.History.Backend == "mongo" {
		store = repositories.NewHistoryRepository(db.Database())
	} else {
		store = history.NewFileStore(resolvePath(cfg.History.Path))
	}

	opts := []history.Option{}
	if cfg.History.Lock == "redis" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		opts = append(opts, history.WithLocker(history.NewRedisLocker(rdb, cfg.Redis.LockTTL)))
	}
	a.memory = history.New(store, cfg.History.Retention(), opts...)

	if cfg.Storage.Backend == "mongo" {
		a.artifacts = repositories.NewArtifactRepository(db.Database())
	} else {
		a.artifacts = artifacts.NewFileStore(resolvePath(cfg.Storage.Dir))
	}

	if !withPipeline {
		return a, nil
	}
	if err := a.buildPipeline(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) buildPipeline(ctx context.Context) error {
	cfg := a.cfg

	client := sources.NewHTTPClient(sources.FETCH_TIMEOUT)
	r := renderer.New(cfg.Enrichment.Timeout)

	adapters, err := sources.NewFromConfig(cfg.Sources, client, r)
	if err != nil {
		return err
	}
	pages := fetcher.New(client, r)

	var gopts []reasoning.GeminiOption
	if a.usesMongo {
		gopts = append(gopts, reasoning.WithRecorder(repositories.NewAILogRepository(db.Database())))
	}
	gem, err := reasoning.NewGemini(ctx, cfg.LLM, quota.NewFromConfig(cfg.SummaryQuota), gopts...)
	if err != nil {
		return fmt.Errorf("failed to create reasoning client: %w", err)
	}

	var popts []digest.PublisherOption
	if brokers := kafkaBrokers(cfg.Kafka); brokers != "" {
		bus, err := eventbus.NewKafkaEventBus(brokers)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, bus.Close)
		topic := eventbus.NewTopic(cfg.Kafka.Topic)
		if err := eventbus.EnsureTopics(ctx, brokers, topic, 1); err != nil {
			config.Logger.Warnf("kafka topic setup failed: %v", err)
		}
		popts = append(popts, digest.WithEventBus(bus, topic))
	}

	a.pipeline = pipeline.New(pipeline.Deps{
		Adapters:   adapters,
		Enricher:   enricher.New(pages, cfg.Enrichment, cfg.Sources),
		Memory:     a.memory,
		Gateway:    curation.NewGateway(gem, cfg.Curation, cfg.Categories),
		Summarizer: summarizer.New(gem, summarizer.NewFetchLoader(pages, cfg.Sources, cfg.Enrichment.Timeout), cfg.Summarization),
		Assembler:  digest.NewAssembler(gem, cfg.Categories),
		Publisher:  digest.NewPublisher(a.artifacts, a.memory, popts...),
		Artifacts:  a.artifacts,
		Categories: cfg.Categories,
	})
	return nil
}

// kafkaBrokers prefers KAFKA_BOOTSTRAP_SERVERS over kafka.brokers.
func kafkaBrokers(k config.KafkaConfig) string {
	if v := os.Getenv("KAFKA_BOOTSTRAP_SERVERS"); v != "" {
		return v
	}
	return k.Brokers
}
