// Command reviewpulse turns a quarter of customer reviews into themes,
// evidence and recommended actions.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/reviewpulse/internal/adapters/driven/ai"
	"github.com/custodia-labs/reviewpulse/internal/adapters/driven/config/file"
	reviewfile "github.com/custodia-labs/reviewpulse/internal/adapters/driven/reviews/file"
	"github.com/custodia-labs/reviewpulse/internal/adapters/driven/reviews/outscraper"
	"github.com/custodia-labs/reviewpulse/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/reviewpulse/internal/adapters/driving/cli"
	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
	"github.com/custodia-labs/reviewpulse/internal/core/services"
	"github.com/custodia-labs/reviewpulse/internal/logger"
	"github.com/custodia-labs/reviewpulse/internal/normalisers/review"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := run(ctx)
	stop()
	os.Exit(exitCode(os.Stderr, err))
}

// exitCode reports err on w and returns the process exit status.
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(w, "Error:", err)
	return 1
}

func run(ctx context.Context) error {
	cli.SetVersion(version)

	dir, err := file.DefaultDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}

	configStore, err := file.NewConfigStore(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	prompts, err := file.NewPromptStore(filepath.Join(dir, "prompts"))
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("reading settings: %w", err)
	}

	store, err := sqlite.NewStore(filepath.Join(dir, "data"))
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	svcs := cli.Services{
		Settings: settingsService,
		Prompts:  prompts,
	}

	retrier := services.NewRetrier(settings.Retry)
	promptVersion := settings.Pipeline.PromptVersion

	insights := services.NewInsightsService(
		store.ManifestStore(), store.ThemeStore(), store.ActionStore(), store.MetricsStore(),
	)
	svcs.Insights = insights

	aiServices, aiErr := ai.Initialise(ctx, *settings)
	var llm driven.LLMService
	if aiErr == nil {
		defer aiServices.Close()
		llm = aiServices.LLMService
	}

	synthesizer := services.NewActionSynthesizer(
		llm, store.SynthesisCache(), store.ActionStore(), retrier, promptVersion,
	)
	synthesizer.SetPromptStore(prompts)
	svcs.Actions = services.NewActionService(store.ThemeStore(), store.ReviewStore(), store.ActionStore(), synthesizer)

	ingestion, err := newIngestion(ingestionParts{
		settings:    settings,
		store:       store,
		ai:          aiServices,
		aiErr:       aiErr,
		prompts:     prompts,
		retrier:     retrier,
		synthesizer: synthesizer,
		insights:    insights,
	})
	if err != nil {
		logger.Debug("Ingestion unavailable: %v", err)
		svcs.Unavailable = err
	} else {
		svcs.Ingestion = ingestion
	}

	cli.SetServices(svcs)
	return cli.Execute(ctx)
}

type ingestionParts struct {
	settings    *domain.AppSettings
	store       *sqlite.Store
	ai          *ai.InitResult
	aiErr       error
	prompts     driven.PromptStore
	retrier     *services.Retrier
	synthesizer *services.ActionSynthesizer
	insights    *services.InsightsService
}

// newIngestion builds the ingestion service, or explains why it cannot run.
func newIngestion(p ingestionParts) (*services.IngestionService, error) {
	if p.aiErr != nil {
		return nil, p.aiErr
	}

	source, err := newReviewSource(p.settings.Reviews, p.store.UsageStore())
	if err != nil {
		return nil, err
	}

	pipeline := p.settings.Pipeline
	labeler := services.NewThemeLabeler(p.ai.LLMService, p.store.ThemeStore(), p.retrier, pipeline.PromptVersion)
	labeler.SetPromptStore(p.prompts)
	embeddings := services.NewEmbeddingCacheManager(
		p.ai.EmbeddingService, p.store.EmbeddingCache(), p.retrier, pipeline.EmbedBatchSize,
	)

	return services.NewIngestionService(services.IngestionDeps{
		Source:      source,
		Normaliser:  review.New(),
		Reviews:     p.store.ReviewStore(),
		Manifests:   p.store.ManifestStore(),
		Themes:      p.store.ThemeStore(),
		Embeddings:  embeddings,
		Labeler:     labeler,
		Synthesizer: p.synthesizer,
		Insights:    p.insights,
		Retrier:     p.retrier,
		Pipeline:    pipeline,
	})
}

// newReviewSource selects the configured review source adapter.
func newReviewSource(cfg domain.ReviewSourceSettings, usage driven.UsageStore) (driven.ReviewSource, error) {
	switch cfg.Kind {
	case domain.ReviewSourceFile:
		source, err := reviewfile.NewSource(cfg.FilePath)
		if err != nil {
			return nil, err
		}
		return source, nil
	case domain.ReviewSourceOutscraper:
		source, err := outscraper.NewSource(outscraper.Config{
			APIKey:            cfg.OutscraperAPIKey,
			RequestsPerSecond: cfg.RequestsPerSecond,
			DailyBudget:       cfg.DailyBudget,
			Usage:             usage,
		})
		if err != nil {
			return nil, err
		}
		return source, nil
	default:
		return nil, fmt.Errorf("%w: unknown review source %q", domain.ErrInvalidInput, cfg.Kind)
	}
}
