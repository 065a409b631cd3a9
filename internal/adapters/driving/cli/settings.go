package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/reviewpulse/internal/core/domain"
)

var errNoSettings = errors.New("settings service not configured")

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure AI providers, the review source and pipeline tuning.

Use subcommands to configure specific settings or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure all settings step by step.`,
	RunE:  runSettingsWizard,
}

var settingsEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure embedding provider",
	Long:  `Configure the embedding provider used to cluster reviews. Required for ingestion.`,
	RunE:  runSettingsEmbedding,
}

var settingsLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure LLM provider",
	Long: `Configure the LLM provider for theme labels and action synthesis.

Without an LLM, themes get deterministic labels and synthesis is skipped.`,
	RunE: runSettingsLLM,
}

var settingsReviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Configure review source",
	Long: `Configure where reviews come from.

Available sources:
  file        - JSON file of reviews (offline, no API key)
  outscraper  - Trustpilot reviews via the Outscraper API`,
	RunE: runSettingsReviews,
}

var settingsPipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Tune clustering and evidence selection",
	Long: `Update clustering and evidence settings. Only flags that are given change.

Example:
  reviewpulse settings pipeline --algorithm hdbscan --min-cluster-size 4
  reviewpulse settings pipeline --eps 0.15 --prompt-version 2`,
	Args: cobra.NoArgs,
	RunE: runSettingsPipeline,
}

func init() {
	f := settingsPipelineCmd.Flags()
	f.String("algorithm", "", "clustering algorithm: dbscan or hdbscan")
	f.Float64("eps", 0, "DBSCAN neighbourhood radius (cosine distance)")
	f.Int("min-pts", 0, "DBSCAN core point threshold")
	f.Int("min-cluster-size", 0, "HDBSCAN minimum cluster size")
	f.Bool("include-noise", false, "emit noise reviews as singleton themes")
	f.Int("evidence-k", 0, "evidence reviews kept per theme")
	f.Int("period-days", 0, "recency decay horizon in days")
	f.Int("prompt-version", 0, "prompt version; bump to invalidate label and synthesis caches")
	f.Int("concurrency", 0, "parallel theme labelling")
	f.Int("limit", 0, "default review limit per run")

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsEmbeddingCmd)
	settingsCmd.AddCommand(settingsLLMCmd)
	settingsCmd.AddCommand(settingsReviewsCmd)
	settingsCmd.AddCommand(settingsPipelineCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()
	cmd.Printf("Environment: %s\n\n", settings.Environment)

	// Embedding settings
	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	printKey(cmd, settings.Embedding.Provider, settings.Embedding.APIKey)
	cmd.Printf("  Status: %s\n\n", configuredStatus(settings.Embedding.IsConfigured()))

	// LLM settings
	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	if settings.LLM.Provider.IsLocal() {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	printKey(cmd, settings.LLM.Provider, settings.LLM.APIKey)
	cmd.Printf("  Status: %s\n\n", configuredStatus(settings.LLM.IsConfigured()))

	// Pipeline settings
	p := settings.Pipeline
	cmd.Println("[Pipeline]")
	cmd.Printf("  Algorithm: %s\n", p.Algorithm)
	if p.Algorithm == domain.ClusteringHDBSCAN {
		cmd.Printf("  Min cluster size: %d\n", p.MinClusterSize)
	} else {
		cmd.Printf("  Eps: %g, min points: %d\n", p.Eps, p.MinPts)
	}
	cmd.Printf("  Include noise: %t\n", p.IncludeNoise)
	cmd.Printf("  Evidence per theme: %d\n", p.EvidenceK)
	cmd.Printf("  Period days: %d\n", p.PeriodDays)
	cmd.Printf("  Prompt version: %d\n", p.PromptVersion)
	cmd.Printf("  Concurrency: %d\n", p.Concurrency)
	cmd.Printf("  Default limit: %d\n\n", p.DefaultLimit)

	// Retry settings
	cmd.Println("[Retry]")
	cmd.Printf("  Attempts: %d, backoff: %s\n\n", settings.Retry.Attempts, settings.Retry.Backoff)

	// Review source
	r := settings.Reviews
	cmd.Println("[Reviews]")
	cmd.Printf("  Source: %s\n", r.Kind)
	switch r.Kind {
	case domain.ReviewSourceFile:
		cmd.Printf("  File: %s\n", valueOrUnset(r.FilePath))
	case domain.ReviewSourceOutscraper:
		if r.OutscraperAPIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(r.OutscraperAPIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
		cmd.Printf("  Daily budget: %d reviews\n", r.DailyBudget)
		cmd.Printf("  Requests per second: %g\n", r.RequestsPerSecond)
	}
	cmd.Println()

	// Validation
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'reviewpulse settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}

	cmd.Println("ReviewPulse Settings Wizard")
	cmd.Println("===========================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	// Step 1: Embedding Provider
	cmd.Println("Step 1: Configure Embedding Provider")
	cmd.Println("------------------------------------")
	cmd.Println("Reviews are clustered by embedding similarity. An embedding provider is required.")
	cmd.Println()
	if err := configureEmbeddingProvider(cmd, reader); err != nil {
		return err
	}

	// Step 2: LLM Provider
	cmd.Println("Step 2: Configure LLM Provider")
	cmd.Println("------------------------------")
	cmd.Print("Configure an LLM for theme labels and actions? [Y/n]: ")
	if answer := strings.ToLower(readLine(reader)); answer == "n" || answer == "no" {
		cmd.Println("Skipped. Themes will use deterministic labels.")
		cmd.Println()
	} else if err := configureLLMProvider(cmd, reader); err != nil {
		return err
	}

	// Step 3: Review source
	cmd.Println("Step 3: Configure Review Source")
	cmd.Println("-------------------------------")
	if err := configureReviewSource(cmd, reader); err != nil {
		return err
	}

	// Final validation
	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

func runSettingsEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}
	return configureEmbeddingProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
}

func runSettingsLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}
	return configureLLMProvider(cmd, bufio.NewReader(cmd.InOrStdin()))
}

func runSettingsReviews(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}
	return configureReviewSource(cmd, bufio.NewReader(cmd.InOrStdin()))
}

func runSettingsPipeline(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	p, err := applyPipelineFlags(cmd, settings.Pipeline)
	if err != nil {
		return err
	}
	if err := settingsService.SetPipeline(p); err != nil {
		return fmt.Errorf("failed to update pipeline: %w", err)
	}

	cmd.Println("Pipeline settings updated.")
	return nil
}

// applyPipelineFlags overlays changed flags onto p.
func applyPipelineFlags(cmd *cobra.Command, p domain.PipelineSettings) (domain.PipelineSettings, error) {
	f := cmd.Flags()

	if f.Changed("algorithm") {
		v, _ := f.GetString("algorithm") //nolint:errcheck // flag is registered
		p.Algorithm = domain.ClusteringAlgorithm(strings.ToLower(v))
	}
	if f.Changed("eps") {
		p.Eps, _ = f.GetFloat64("eps") //nolint:errcheck // flag is registered
	}
	if f.Changed("include-noise") {
		p.IncludeNoise, _ = f.GetBool("include-noise") //nolint:errcheck // flag is registered
	}

	ints := []struct {
		flag   string
		target *int
	}{
		{"min-pts", &p.MinPts},
		{"min-cluster-size", &p.MinClusterSize},
		{"evidence-k", &p.EvidenceK},
		{"period-days", &p.PeriodDays},
		{"prompt-version", &p.PromptVersion},
		{"concurrency", &p.Concurrency},
		{"limit", &p.DefaultLimit},
	}
	for _, i := range ints {
		if !f.Changed(i.flag) {
			continue
		}
		v, err := f.GetInt(i.flag)
		if err != nil {
			return p, fmt.Errorf("reading --%s: %w", i.flag, err)
		}
		*i.target = v
	}

	return p, nil
}

//nolint:dupl // Similar to configureLLMProvider but for embeddings - intentional for CLI flow clarity
func configureEmbeddingProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaults := domain.DefaultEmbeddingModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetEmbeddingProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("Embedding provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

//nolint:dupl // Similar to configureEmbeddingProvider but for LLM - intentional for CLI flow clarity
func configureLLMProvider(cmd *cobra.Command, reader *bufio.Reader) error {
	cmd.Println("Select LLM Provider")
	providers := domain.AllLLMProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	input := readLine(reader)
	idx := parseChoice(input, len(providers), 1)
	selectedProvider := providers[idx-1]

	// Get model
	defaults := domain.DefaultLLMModels()
	defaultModel := defaults[selectedProvider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	// Get API key if needed
	var apiKey string
	if selectedProvider.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetLLMProvider(selectedProvider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure LLM provider: %w", err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Printf("LLM provider configured: %s (%s)\n\n", selectedProvider.Description(), model)
	return nil
}

func configureReviewSource(cmd *cobra.Command, reader *bufio.Reader) error {
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	reviews := settings.Reviews

	kinds := []domain.ReviewSourceKind{domain.ReviewSourceFile, domain.ReviewSourceOutscraper}
	cmd.Println("Select Review Source")
	cmd.Println("  1. JSON file of reviews")
	cmd.Println("  2. Trustpilot via Outscraper")
	cmd.Print("\nEnter choice [1]: ")
	reviews.Kind = kinds[parseChoice(readLine(reader), len(kinds), 1)-1]

	switch reviews.Kind {
	case domain.ReviewSourceFile:
		cmd.Printf("Enter reviews file path [%s]: ", reviews.FilePath)
		if path := readLine(reader); path != "" {
			reviews.FilePath = path
		}
		if reviews.FilePath == "" {
			return errors.New("a reviews file is required for the file source")
		}
	case domain.ReviewSourceOutscraper:
		cmd.Print("Enter Outscraper API key (blank keeps current): ")
		if key := readPassword(reader); key != "" {
			reviews.OutscraperAPIKey = key
		}
		cmd.Println()
		if reviews.OutscraperAPIKey == "" {
			return errors.New("API key is required for the outscraper source")
		}
		cmd.Printf("Daily review budget [%d]: ", reviews.DailyBudget)
		if v, err := strconv.Atoi(readLine(reader)); err == nil && v >= 0 {
			reviews.DailyBudget = v
		}
	}

	if err := settingsService.SetReviewSource(reviews); err != nil {
		return fmt.Errorf("failed to configure review source: %w", err)
	}
	cmd.Printf("Review source configured: %s\n\n", reviews.Kind)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads a secret without echo when stdin is a terminal,
// falling back to a plain line read.
func readPassword(reader *bufio.Reader) string {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func printKey(cmd *cobra.Command, provider domain.AIProvider, key string) {
	if !provider.RequiresAPIKey() {
		return
	}
	if key != "" {
		cmd.Printf("  API Key: %s\n", maskAPIKey(key))
	} else {
		cmd.Printf("  API Key: (not set)\n")
	}
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func valueOrUnset(v string) string {
	if v == "" {
		return "(not set)"
	}
	return v
}
