package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/yanqian/horizon/internal/domain/auditlog"
	"github.com/yanqian/horizon/internal/domain/session"
	"github.com/yanqian/horizon/internal/domain/sunreport"
	"github.com/yanqian/horizon/internal/infra/auditrepo"
	"github.com/yanqian/horizon/internal/infra/config"
	"github.com/yanqian/horizon/internal/infra/diagnostics"
	"github.com/yanqian/horizon/internal/infra/llm/chatgpt"
	"github.com/yanqian/horizon/internal/infra/llm/gemini"
	"github.com/yanqian/horizon/internal/infra/sessionstore"
)

func provideReportConfig(cfg *config.Config) sunreport.Config {
	return sunreport.Config{
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		SearchGrounding: cfg.LLM.SearchGrounding,
	}
}

func provideSessionConfig(cfg *config.Config) session.Config {
	return session.Config{TTL: cfg.Session.TTL}
}

func provideAuditConfig(cfg *config.Config) auditlog.Config {
	return auditlog.Config{
		DefaultLimit: cfg.Audit.DefaultLimit,
		MaxLimit:     cfg.Audit.MaxLimit,
	}
}

func provideGenerator(cfg *config.Config, logger *slog.Logger) (sunreport.Generator, error) {
	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		if cfg.LLM.SearchGrounding {
			logger.Warn("search grounding is not available with the openai provider, citations will be empty")
		}
		return chatgpt.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	case config.ProviderGemini:
		return gemini.NewClient(cfg.LLM.APIKey, cfg.LLM.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLM.Provider)
	}
}

func provideAuditRecorder(svc auditlog.Service) session.AuditRecorder {
	return svc
}

func provideDiagnosticsSink(cfg *config.Config, logger *slog.Logger) sunreport.DiagnosticsSink {
	s3 := cfg.Diagnostics.S3
	if !s3.Enabled {
		logger.Info("diagnostics bucket disabled, malformed responses are only logged")
		return diagnostics.Discard{}
	}
	sink, err := diagnostics.NewS3Sink(s3.Endpoint, s3.AccessKey, s3.SecretKey, s3.Bucket, s3.Region, logger)
	if err != nil {
		logger.Error("failed to initialize diagnostics bucket, discarding malformed responses", "error", err)
		return diagnostics.Discard{}
	}
	logger.Info("diagnostics bucket enabled", "bucket", s3.Bucket)
	return sink
}

func provideAuditRepository(cfg *config.Config, logger *slog.Logger) auditlog.Repository {
	fallback := auditrepo.NewMemoryRepository(cfg.Audit.MaxLimit)
	dsn := strings.TrimSpace(cfg.Audit.Postgres.DSN)
	if dsn == "" {
		logger.Info("audit postgres dsn not set, using memory repository")
		return fallback
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repository", "error", err)
		return fallback
	}
	if cfg.Audit.Postgres.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Audit.Postgres.MaxConns
	}
	if cfg.Audit.Postgres.MinConns > 0 {
		poolConfig.MinConns = cfg.Audit.Postgres.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repository", "error", err)
		return fallback
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return fallback
	}
	repo := auditrepo.NewPostgresRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("audit schema setup failed, using memory repository", "error", err)
		pool.Close()
		return fallback
	}
	logger.Info("audit postgres repository enabled")
	return repo
}

func provideSessionStore(cfg *config.Config, logger *slog.Logger) session.Store {
	if cfg.Session.Valkey.Enabled {
		opt, err := buildValkeyOptions(cfg.Session.Valkey.Addr)
		if err != nil {
			logger.Error("invalid valkey configuration, falling back to memory store", "error", err)
			return sessionstore.NewMemoryStore()
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			logger.Error("failed to create valkey client, falling back to memory store", "error", err)
			return sessionstore.NewMemoryStore()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			logger.Error("valkey ping failed, falling back to memory store", "error", err)
			client.Close()
		} else {
			logger.Info("session valkey store enabled", "addr", cfg.Session.Valkey.Addr)
			return sessionstore.NewValkeyStore(client, "horizon")
		}
	}
	return sessionstore.NewMemoryStore()
}

func buildValkeyOptions(addr string) (valkey.ClientOption, error) {
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}
