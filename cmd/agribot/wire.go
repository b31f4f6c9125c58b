package main

import (
	"errors"
	"fmt"

	"github.com/ilkoid/agribot/internal/metrics"
	"github.com/ilkoid/agribot/pkg/agent"
	"github.com/ilkoid/agribot/pkg/catalog"
	"github.com/ilkoid/agribot/pkg/classifier"
	"github.com/ilkoid/agribot/pkg/config"
	"github.com/ilkoid/agribot/pkg/imageprep"
	"github.com/ilkoid/agribot/pkg/journal"
	"github.com/ilkoid/agribot/pkg/llm/openai"
	"github.com/ilkoid/agribot/pkg/prompt"
	"github.com/ilkoid/agribot/pkg/s3storage"
	"github.com/ilkoid/agribot/pkg/session"
	"github.com/ilkoid/agribot/pkg/tools/farm"
	"github.com/ilkoid/agribot/pkg/utils"
)

// components: собранное приложение.
type components struct {
	cfg      *config.AppConfig
	orch     *agent.Orchestrator
	sessions *session.MemoryStore
	metrics  *metrics.Metrics

	closers []func() error
}

// Close освобождает ресурсы в обратном порядке.
func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// initialize загружает конфиг и собирает зависимости агента.
//
// Лог идёт в app.log_file из конфига, иначе в fallbackLogFile
// (пусто = stdout). chat передаёт файл, чтобы лог не мешал REPL.
func initialize(configPath, fallbackLogFile string) (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logFile := cfg.App.LogFile
	if logFile == "" {
		logFile = fallbackLogFile
	}
	level := cfg.App.LogLevel
	if cfg.App.Debug {
		level = "debug"
	}
	if err := utils.InitLogger(utils.LoggerConfig{Level: level, File: logFile}); err != nil {
		return nil, err
	}

	c := &components{cfg: cfg, metrics: metrics.New()}
	if err := c.build(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *components) build() error {
	cfg := c.cfg

	modelDef, ok := cfg.GetChatModel("")
	if !ok {
		return fmt.Errorf("chat model %q is not defined", cfg.Models.DefaultChat)
	}

	systemPrompt, err := prompt.System(cfg.App.SystemPromptFile, prompt.SystemData{
		BotName:    "AgriBot",
		Categories: classifier.Categories(),
	})
	if err != nil {
		return fmt.Errorf("failed to load system prompt: %w", err)
	}

	gateway, err := catalog.NewFromConfig(cfg.Catalog, catalog.WithObserver(c.metrics.CatalogRequest))
	if err != nil {
		return fmt.Errorf("failed to create catalog client: %w", err)
	}

	registry, err := farm.NewRegistry(gateway)
	if err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	c.sessions = session.NewMemoryStore(session.MemoryOptions{
		SystemPrompt:    systemPrompt,
		TTL:             cfg.Sessions.TTL,
		MaxSessions:     cfg.Sessions.MaxSessions,
		MaxPendingBytes: cfg.Sessions.MaxPendingImageMB * imageprep.MB,
	})
	c.metrics.TrackSessions(c.sessions.Len)

	var recorder journal.Recorder = journal.Nop{}
	if cfg.Journal.Path != "" {
		store, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("failed to open journal: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		recorder = store
		utils.Info("Tool journal enabled", "path", cfg.Journal.Path)
	}

	// Интерфейс присваивается только живому клиенту: typed nil ломает проверку archive == nil
	var archive s3storage.Archiver
	if cfg.S3.Enabled() {
		s3, err := s3storage.New(cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to create s3 client: %w", err)
		}
		archive = s3
		utils.Info("Upload archive enabled", "bucket", cfg.S3.Bucket)
	}

	c.orch, err = agent.New(agent.Config{
		Provider: openai.NewClient(modelDef),
		Tools:    registry,
		Sessions: c.sessions,
		Images: imageprep.Options{
			TargetBytes:  cfg.Images.TargetMB * imageprep.MB,
			MaxDimension: cfg.Images.MaxDimension,
			MinQuality:   cfg.Images.MinQuality,
			MaxQuality:   cfg.Images.MaxQuality,
			MaxProbes:    cfg.Images.MaxProbes,
			MaxPixels:    cfg.Images.MaxPixels,
		},
		MaxUploadBytes: cfg.Images.MaxUploadMB * imageprep.MB,
		MaxPendingMB:   cfg.Sessions.MaxPendingImageMB,
		Observer:       c.metrics,
		Journal:        recorder,
		Archive:        archive,
	})
	if err != nil {
		return err
	}

	utils.Info("AgriBot initialized",
		"model", modelDef.ModelName,
		"catalog", cfg.Catalog.BaseURL,
		"tools", len(registry.GetDefinitions()))
	return nil
}
