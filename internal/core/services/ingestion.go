package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/reviewpulse/internal/clustering"
	"github.com/custodia-labs/reviewpulse/internal/core/domain"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driven"
	"github.com/custodia-labs/reviewpulse/internal/core/ports/driving"
	"github.com/custodia-labs/reviewpulse/internal/evidence"
	"github.com/custodia-labs/reviewpulse/internal/logger"
	"github.com/custodia-labs/reviewpulse/internal/metrics"
	"github.com/custodia-labs/reviewpulse/internal/validation"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// MessageAlreadyProcessed is returned when a manifest exists for the request.
const MessageAlreadyProcessed = "already processed"

const (
	previewDims      = 8
	maxMemberHashes  = 10
	defaultRunLimit  = 12
	defaultLabelJobs = 4
)

// IngestionDeps wires the collaborators of an IngestionService.
type IngestionDeps struct {
	Source      driven.ReviewSource
	Normaliser  driven.ReviewNormaliser
	Reviews     driven.ReviewStore
	Manifests   driven.ManifestStore
	Themes      driven.ThemeStore
	Embeddings  *EmbeddingCacheManager
	Labeler     *ThemeLabeler
	Synthesizer *ActionSynthesizer
	Insights    *InsightsService
	Retrier     *Retrier
	Pipeline    domain.PipelineSettings
}

// IngestionService runs the review-to-theme pipeline for one business unit
// and quarter. A manifest per (unit, quarter) makes runs idempotent.
type IngestionService struct {
	deps   IngestionDeps
	engine *clustering.Engine
	newID  func() string
	now    func() time.Time
}

// NewIngestionService validates the clustering configuration and creates the service.
func NewIngestionService(deps IngestionDeps) (*IngestionService, error) {
	if deps.Source == nil || deps.Normaliser == nil || deps.Embeddings == nil || deps.Labeler == nil {
		return nil, fmt.Errorf("%w: ingestion needs a review source, normaliser, embeddings and labeler",
			domain.ErrInvalidInput)
	}
	if deps.Reviews == nil || deps.Manifests == nil || deps.Themes == nil {
		return nil, fmt.Errorf("%w: ingestion needs review, manifest and theme stores", domain.ErrInvalidInput)
	}
	if deps.Retrier == nil {
		deps.Retrier = NewRetrier(domain.DefaultRetrySettings())
	}
	engine, err := clustering.New(clustering.ConfigFromSettings(deps.Pipeline))
	if err != nil {
		return nil, fmt.Errorf("clustering config: %w", err)
	}
	return &IngestionService{
		deps:   deps,
		engine: engine,
		newID:  uuid.NewString,
		now:    time.Now,
	}, nil
}

// runRequest is a validated RunRequest.
type runRequest struct {
	unit    string
	quarter domain.Quarter
	limit   int
	debug   driving.DebugMode
}

// Run executes one ingestion.
func (s *IngestionService) Run(ctx context.Context, req driving.RunRequest) (*driving.RunResult, error) {
	start := time.Now()
	result, err := s.run(ctx, req)
	switch {
	case err != nil:
		metrics.Runs.WithLabelValues(metrics.OutcomeError).Inc()
	case !result.OK:
		metrics.Runs.WithLabelValues(metrics.OutcomeSkipped).Inc()
	default:
		metrics.Runs.WithLabelValues(metrics.OutcomeSuccess).Inc()
	}
	metrics.ObserveStage("run", start)
	return result, err
}

func (s *IngestionService) run(ctx context.Context, req driving.RunRequest) (*driving.RunResult, error) {
	rr, err := s.validate(req)
	if err != nil {
		return nil, err
	}
	period := rr.quarter.String()

	logger.Section("Ingestion")
	logger.Info("Run %s %s (limit %d, debug %q)", rr.unit, period, rr.limit, rr.debug)

	if rr.debug != driving.DebugNone {
		return s.pipeline(ctx, rr, nil)
	}

	existing, err := s.deps.Manifests.GetManifest(ctx, rr.unit, period)
	switch {
	case err == nil:
		return alreadyProcessed(rr, existing.ID), nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("check manifest: %w", err)
	}

	rangeStart, rangeEnd := rr.quarter.Range()
	manifest := &domain.Manifest{
		ID:              s.newID(),
		BusinessUnitID:  rr.unit,
		Period:          period,
		StartDate:       rangeStart,
		EndDate:         rangeEnd,
		PipelineVersion: domain.PipelineVersion,
		Status:          domain.ManifestRunning,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.deps.Manifests.CreateManifest(ctx, manifest); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			if m, gerr := s.deps.Manifests.GetManifest(ctx, rr.unit, period); gerr == nil {
				return alreadyProcessed(rr, m.ID), nil
			}
		}
		return nil, fmt.Errorf("create manifest: %w", err)
	}

	result, err := s.pipeline(ctx, rr, manifest)
	if err != nil {
		_ = s.finish(ctx, manifest, domain.ManifestFailed, err)
		return nil, err
	}
	manifest.ReviewCount = result.Processed
	manifest.ThemeCount = len(result.Themes)
	if err := s.finish(ctx, manifest, domain.ManifestCompleted, nil); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *IngestionService) validate(req driving.RunRequest) (*runRequest, error) {
	req.BusinessUnitID = strings.TrimSpace(req.BusinessUnitID)
	req.Period = strings.TrimSpace(req.Period)
	if err := validation.Struct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if !req.Debug.IsValid() {
		return nil, fmt.Errorf("%w: debug must be one of emb, clu, ev", domain.ErrInvalidInput)
	}
	q, err := domain.ParseQuarter(req.Period)
	if err != nil {
		return nil, err
	}
	limit := s.deps.Pipeline.DefaultLimit
	if req.Limit != nil {
		limit = *req.Limit
	}
	if limit <= 0 {
		limit = defaultRunLimit
	}
	return &runRequest{unit: req.BusinessUnitID, quarter: q, limit: limit, debug: req.Debug}, nil
}

func alreadyProcessed(rr *runRequest, manifestID string) *driving.RunResult {
	logger.Info("Manifest %s already covers %s %s", manifestID, rr.unit, rr.quarter)
	return &driving.RunResult{
		OK:         false,
		Message:    MessageAlreadyProcessed,
		ManifestID: manifestID,
		Unit:       rr.unit,
		Period:     rr.quarter.String(),
		Themes:     []domain.ThemeDraft{},
	}
}

// finish records the terminal manifest status. It uses a context detached
// from cancellation so a cancelled run is still marked failed.
func (s *IngestionService) finish(ctx context.Context, m *domain.Manifest, status domain.ManifestStatus, cause error) error {
	now := s.now().UTC()
	m.Status = status
	m.CompletedAt = &now
	if cause != nil {
		m.Error = cause.Error()
	}
	if err := s.deps.Manifests.UpdateManifest(context.WithoutCancel(ctx), m); err != nil {
		logger.Error(err, "update manifest %s to %s", m.ID, status)
		return fmt.Errorf("update manifest: %w", err)
	}
	return nil
}

// pipeline runs the stages. manifest is nil for debug runs.
func (s *IngestionService) pipeline(ctx context.Context, rr *runRequest, manifest *domain.Manifest) (*driving.RunResult, error) {
	result := &driving.RunResult{
		OK:     true,
		Unit:   rr.unit,
		Period: rr.quarter.String(),
		Themes: []domain.ThemeDraft{},
	}
	if manifest != nil {
		result.ManifestID = manifest.ID
	}

	reviews, err := s.fetch(ctx, rr)
	if err != nil {
		return nil, err
	}
	result.Processed = len(reviews)
	if manifest != nil && len(reviews) > 0 {
		if err := s.deps.Reviews.InsertReviews(ctx, reviews); err != nil {
			return nil, fmt.Errorf("store reviews: %w", err)
		}
	}

	// Embeddings
	logger.Section("Embedding")
	stageStart := time.Now()
	texts := make([]string, len(reviews))
	hashes := make([]string, len(reviews))
	for i, r := range reviews {
		texts[i] = r.NormalizedBody
		hashes[i] = r.BodySHA
	}
	emb, err := s.deps.Embeddings.Embed(ctx, texts, hashes)
	if err != nil {
		return nil, fmt.Errorf("embed reviews: %w", err)
	}
	metrics.ObserveStage("embed", stageStart)

	if rr.debug == driving.DebugEmbeddings {
		result.Debug = &driving.DebugReport{Step: rr.debug, Embedding: embeddingReport(emb)}
		return result, nil
	}

	// Clustering
	logger.Section("Clustering")
	stageStart = time.Now()
	items := make([]clustering.Item, len(reviews))
	for i, r := range reviews {
		items[i] = clustering.Item{ID: r.ID, BodySHA: r.BodySHA, Vector: emb.Vectors[i]}
	}
	clusters, err := s.engine.Run(items)
	if err != nil {
		return nil, fmt.Errorf("cluster reviews: %w", err)
	}
	metrics.RecordClustering(len(clusters.Clusters), len(clusters.Noise))
	metrics.ObserveStage("cluster", stageStart)
	logger.Debug("%d clusters, %d noise points", len(clusters.Clusters), len(clusters.Noise))

	if rr.debug == driving.DebugClusters {
		result.Debug = &driving.DebugReport{Step: rr.debug, Clusters: clusterReports(clusters.Clusters, reviews)}
		return result, nil
	}

	// Evidence
	selector := evidence.NewSelector(s.deps.Pipeline.EvidenceK, s.deps.Pipeline.PeriodDays)
	if rr.debug == driving.DebugEvidence {
		reports := clusterReports(clusters.Clusters, reviews)
		for i, c := range clusters.Clusters {
			reports[i].MemberHashes = nil
			reports[i].Evidence = selector.Explain(candidates(c, reviews))
		}
		result.Debug = &driving.DebugReport{Step: rr.debug, Clusters: reports}
		return result, nil
	}

	// Labelling
	logger.Section("Theme Labelling")
	stageStart = time.Now()
	drafts, err := s.label(ctx, rr.unit, clusters.Clusters, reviews, selector)
	if err != nil {
		return nil, err
	}
	metrics.ObserveStage("label", stageStart)

	// Persistence and synthesis
	for i := range drafts {
		theme, err := s.persistTheme(ctx, manifest, rr.unit, &drafts[i])
		if err != nil {
			return nil, err
		}
		failure, err := s.synthesize(ctx, theme, reviews)
		if err != nil {
			return nil, err
		}
		if failure != nil {
			result.SynthesisErrors = append(result.SynthesisErrors, *failure)
		}
	}
	result.Themes = drafts
	if n := len(result.SynthesisErrors); n > 0 {
		result.Message = fmt.Sprintf("action synthesis failed for %d of %d themes", n, len(drafts))
	}

	if s.deps.Insights != nil && manifest != nil {
		if _, _, err := s.deps.Insights.Recompute(ctx, manifest.ID); err != nil {
			return nil, fmt.Errorf("compute insights: %w", err)
		}
	}
	return result, nil
}

// fetch pulls raw reviews, normalises them, and returns up to limit reviews
// in canonical order.
func (s *IngestionService) fetch(ctx context.Context, rr *runRequest) ([]domain.Review, error) {
	logger.Section("Fetch")
	start, end := rr.quarter.Range()
	query := driven.ReviewQuery{Target: rr.unit, Start: start, End: end, Limit: rr.limit}

	raws, err := Retry(ctx, s.deps.Retrier, "fetch", func(ctx context.Context) ([]domain.RawReview, error) {
		return s.deps.Source.Fetch(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch reviews from %s: %w", s.deps.Source.Name(), err)
	}
	metrics.ReviewsFetched.WithLabelValues(s.deps.Source.Name()).Add(float64(len(raws)))

	normalised := make([]domain.Review, 0, len(raws))
	skipped := 0
	for _, raw := range raws {
		if raw.ProductID == "" {
			raw.ProductID = rr.unit
		}
		r, err := s.deps.Normaliser.Normalise(raw)
		if err != nil {
			skipped++
			logger.Debug("Skipping review %q: %v", raw.ID, err)
			continue
		}
		normalised = append(normalised, *r)
	}
	if skipped > 0 {
		logger.Warn("Skipped %d malformed reviews from %s", skipped, s.deps.Source.Name())
	}

	// Duplicate IDs keep the first review in canonical order, whatever
	// order the source returned them in.
	domain.SortReviews(normalised)
	seen := make(map[string]bool, len(normalised))
	reviews := make([]domain.Review, 0, len(normalised))
	for _, r := range normalised {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		reviews = append(reviews, r)
	}
	if len(reviews) > rr.limit {
		reviews = reviews[:rr.limit]
	}
	logger.Debug("Fetched %d reviews for %s %s", len(reviews), rr.unit, rr.quarter)
	return reviews, nil
}

// label selects evidence and labels every cluster concurrently. Drafts keep
// the cluster order.
func (s *IngestionService) label(
	ctx context.Context, unit string, clusters []domain.Cluster, reviews []domain.Review, selector *evidence.Selector,
) ([]domain.ThemeDraft, error) {
	drafts := make([]domain.ThemeDraft, len(clusters))

	g, gctx := errgroup.WithContext(ctx)
	jobs := s.deps.Pipeline.Concurrency
	if jobs <= 0 {
		jobs = defaultLabelJobs
	}
	g.SetLimit(jobs)

	for i, c := range clusters {
		g.Go(func() error {
			picked := selector.Select(candidates(c, reviews))
			ids := make([]string, len(picked))
			ev := make([]domain.Review, len(picked))
			for j, p := range picked {
				ids[j] = p.ID
				ev[j] = reviewByID(reviews, c, p.ID)
			}

			label, err := s.deps.Labeler.Label(gctx, LabelInput{
				ProductID:   unit,
				ClusterID:   c.ID,
				MemberCount: c.Size(),
				Reviews:     ev,
			})
			if err != nil {
				return fmt.Errorf("label cluster %s: %w", c.ID, err)
			}
			drafts[i] = domain.ThemeDraft{
				ClusterID:   c.ID,
				TopicKey:    c.TopicKey(),
				EvidenceIDs: ids,
				Name:        label.Name,
				Summary:     label.Summary,
				Severity:    label.Severity,
				MemberCount: c.Size(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return drafts, nil
}

func (s *IngestionService) persistTheme(
	ctx context.Context, manifest *domain.Manifest, unit string, draft *domain.ThemeDraft,
) (*domain.Theme, error) {
	now := s.now().UTC()
	theme := &domain.Theme{
		ID:            s.newID(),
		ManifestID:    manifest.ID,
		ProductID:     unit,
		ClusterID:     draft.ClusterID,
		TopicKey:      draft.TopicKey,
		PromptVersion: s.deps.Pipeline.PromptVersion,
		Name:          draft.Name,
		Summary:       draft.Summary,
		Severity:      draft.Severity,
		EvidenceIDs:   draft.EvidenceIDs,
		EvidenceCount: len(draft.EvidenceIDs),
		ReviewCount:   draft.MemberCount,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.deps.Themes.UpsertTheme(ctx, theme); err != nil {
		return nil, fmt.Errorf("store theme %s: %w", draft.ClusterID, err)
	}
	draft.ThemeID = theme.ID
	return theme, nil
}

// synthesize runs action synthesis for a theme. Failures other than
// cancellation do not fail the run; they are returned as a SynthesisError
// for the result. A missing model is skipped silently.
func (s *IngestionService) synthesize(
	ctx context.Context, theme *domain.Theme, reviews []domain.Review,
) (*driving.SynthesisError, error) {
	if s.deps.Synthesizer == nil {
		return nil, nil
	}
	byID := make(map[string]domain.Review, len(reviews))
	for _, r := range reviews {
		byID[r.ID] = r
	}
	ev := make([]domain.Review, 0, len(theme.EvidenceIDs))
	for _, id := range theme.EvidenceIDs {
		if r, ok := byID[id]; ok {
			ev = append(ev, r)
		}
	}

	_, err := s.deps.Synthesizer.Synthesize(ctx, SynthesisInput{
		ThemeID:  theme.ID,
		Theme:    theme.Name,
		Summary:  theme.Summary,
		Examples: ExamplesFromReviews(ev),
	})
	switch {
	case err == nil:
		return nil, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case errors.Is(err, domain.ErrLLMUnavailable):
		logger.Debug("Skipping synthesis for %s: %v", theme.ClusterID, err)
		return nil, nil
	}
	logger.Warn("Synthesis failed for theme %s (%s): %v", theme.ID, theme.ClusterID, err)
	return &driving.SynthesisError{
		ThemeID:   theme.ID,
		ClusterID: theme.ClusterID,
		Kind:      domain.KindOf(err),
		Message:   err.Error(),
	}, nil
}

func candidates(c domain.Cluster, reviews []domain.Review) []evidence.Candidate {
	out := make([]evidence.Candidate, len(c.MemberIdx))
	for i, idx := range c.MemberIdx {
		out[i] = evidence.FromReview(reviews[idx])
	}
	return out
}

func reviewByID(reviews []domain.Review, c domain.Cluster, id string) domain.Review {
	for _, idx := range c.MemberIdx {
		if reviews[idx].ID == id {
			return reviews[idx]
		}
	}
	return domain.Review{ID: id}
}

func embeddingReport(emb *EmbeddingResult) *driving.EmbeddingReport {
	rep := &driving.EmbeddingReport{
		Model:     emb.Model,
		Count:     len(emb.Vectors),
		CacheHits: emb.Hits,
	}
	if len(emb.Vectors) > 0 {
		first := emb.Vectors[0]
		rep.Dimensions = len(first)
		rep.SamplePreview = preview(first)
		rep.SampleHash = clustering.VectorHash(first)
	}
	return rep
}

func clusterReports(clusters []domain.Cluster, reviews []domain.Review) []driving.ClusterReport {
	out := make([]driving.ClusterReport, len(clusters))
	for i, c := range clusters {
		hashes := make([]string, 0, min(len(c.MemberIdx), maxMemberHashes))
		for _, idx := range c.MemberIdx[:min(len(c.MemberIdx), maxMemberHashes)] {
			hashes = append(hashes, reviews[idx].BodySHA)
		}
		out[i] = driving.ClusterReport{
			ID:              c.ID,
			Size:            c.Size(),
			Singleton:       c.Singleton,
			CentroidPreview: preview(c.Centroid),
			MemberHashes:    hashes,
		}
	}
	return out
}

func preview(v []float64) []float64 {
	return v[:min(len(v), previewDims)]
}
