// Command intertext runs intertextual analysis of Mrs Dalloway against the Odyssey.
package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/intertext-cli/internal/adapters/driven/ai"
	"github.com/custodia-labs/intertext-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/intertext-cli/internal/adapters/driven/export/csv"
	"github.com/custodia-labs/intertext-cli/internal/adapters/driven/storage/bolt"
	"github.com/custodia-labs/intertext-cli/internal/adapters/driven/storage/jsonl"
	"github.com/custodia-labs/intertext-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/intertext-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/intertext-cli/internal/core/ports/driven"
	"github.com/custodia-labs/intertext-cli/internal/core/services"
	"github.com/custodia-labs/intertext-cli/internal/logger"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to load .env: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)

	configStore, err := file.NewConfigStore("")
	if err != nil {
		logger.Error("Failed to open config: %v", err)
		return 1
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	prompts, err := file.NewPromptStore("")
	if err != nil {
		logger.Error("Failed to open prompts: %v", err)
		return 1
	}

	chunks := jsonl.NewStore()
	svc := cli.Services{
		Settings:  settingsService,
		Prompts:   prompts,
		Watcher:   prompts,
		Merger:    chunks,
		PromptDir: prompts.Dir(),
	}

	settings, err := settingsService.Get()
	if err != nil {
		logger.Error("Failed to load settings: %v", err)
		return 1
	}

	svc.Prepare = services.NewPreparer(chunks, settings.Paths, settings.Preprocess)

	// Settings commands must keep working when providers are misconfigured,
	// so an init failure only disables the pipeline commands.
	result, err := ai.Init(settings)
	if err != nil {
		logger.Warn("%v", err)
		svc.Unavailable = err
	} else {
		defer result.Close()

		pipeline := services.NewPipeline(
			result.EmbeddingService, result.VectorIndex, result.LLMService, prompts, *settings)

		var checkpoints driven.CheckpointStore
		store, err := bolt.Open(settings.Paths.CheckpointFile)
		if err != nil {
			logger.Warn("Checkpoints kept in memory only: %v", err)
			checkpoints = memory.NewCheckpointStore()
		} else {
			defer store.Close()
			checkpoints = store
		}

		svc.Pipeline = pipeline
		svc.Run = services.NewRunner(pipeline, chunks, csv.NewWriter(), checkpoints,
			services.RunnerConfig{Settings: *settings})
	}

	cli.SetServices(svc)

	if err := cli.Execute(ctx); err != nil {
		logger.Error("%v", err)
		return 1
	}
	return 0
}
