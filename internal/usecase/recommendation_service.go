package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/moneyball/internal/domain/feature"
	"github.com/riskibarqy/moneyball/internal/domain/player"
	"github.com/riskibarqy/moneyball/internal/domain/similarity"
	"github.com/riskibarqy/moneyball/internal/platform/logging"
)

const (
	// postFilterHeadroom is how many extra candidates are pulled from the
	// engine when caller-side filters may discard some of them.
	postFilterHeadroom = 10
	maxTopN            = 100
	maxSuggestions     = 3
)

type RecommendationConfig struct {
	Scaler     similarity.ScalerKind
	Metric     similarity.Metric
	Mode       similarity.Mode
	TopN       int
	Neighbors  int
	Workers    int
	MinMinutes float64
	Position   string
	Features   []string
}

type PrepareInput struct {
	Position   string
	MinMinutes float64
	Features   []string
}

type FindSimilarInput struct {
	Player      string
	TopN        int
	Mode        string
	Metric      string
	Position    string
	Competition string
}

type SimilarPlayers struct {
	Target  player.Record
	Mode    similarity.Mode
	Metric  similarity.Metric
	Results []similarity.Result
}

type SearchInput struct {
	Query       string
	Club        string
	Competition string
	Limit       int
}

type BatchItem struct {
	Query   string
	Found   bool
	Results []similarity.Result
	Error   string
}

// EngineStatus describes the prepared engine. Positions lists the codes
// with a dedicated feature list; every other code uses the common one.
type EngineStatus struct {
	State     string
	Rows      int
	Features  []string
	Prepared  PrepareInput
	Metric    similarity.Metric
	Mode      similarity.Mode
	Positions []string
}

// RecommendationService serializes Prepare against queries on a single
// similarity engine and adds the caller-side filtering the engine leaves
// out.
type RecommendationService struct {
	mu       sync.RWMutex
	table    player.Table
	engine   *similarity.Engine
	prepared PrepareInput
	cfg      RecommendationConfig
	logger   *logging.Logger
	now      func() time.Time
}

func NewRecommendationService(table player.Table, cfg RecommendationConfig, logger *logging.Logger) (*RecommendationService, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Metric == "" {
		cfg.Metric = similarity.MetricCosine
	}
	if cfg.Mode == "" {
		cfg.Mode = similarity.ModeMatrix
	}

	engine, err := similarity.New(table, similarity.Config{Scaler: cfg.Scaler, Neighbors: cfg.Neighbors})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	return &RecommendationService{
		table:  table.Clone(),
		engine: engine,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Prepare re-fits the engine. An empty input falls back to the configured
// position, minutes threshold and features.
func (s *RecommendationService) Prepare(ctx context.Context, input PrepareInput) (err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RecommendationService.Prepare",
		attribute.String("position", input.Position),
		attribute.Float64("min_minutes", input.MinMinutes),
	)
	defer func() { endSpan(span, err) }()

	if input.MinMinutes < 0 {
		return fmt.Errorf("%w: min minutes must be >= 0", ErrInvalidInput)
	}
	input.Position = strings.TrimSpace(input.Position)

	s.mu.Lock()
	defer s.mu.Unlock()

	start := s.now()
	err = s.engine.Prepare(similarity.PrepareOptions{
		Features:   input.Features,
		Position:   input.Position,
		MinMinutes: input.MinMinutes,
	})
	if err != nil {
		if errors.Is(err, similarity.ErrEmptyFeatureSet) || errors.Is(err, similarity.ErrNoRows) {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return fmt.Errorf("prepare similarity engine: %w", err)
	}
	s.prepared = input

	s.logger.InfoContext(ctx, "similarity engine prepared",
		"rows", s.engine.Len(),
		"features", len(s.engine.Features()),
		"position", input.Position,
		"min_minutes", input.MinMinutes,
		"duration", s.now().Sub(start),
	)
	return nil
}

// PrepareDefaults prepares the engine with the configured knobs.
func (s *RecommendationService) PrepareDefaults(ctx context.Context) error {
	return s.Prepare(ctx, PrepareInput{
		Position:   s.cfg.Position,
		MinMinutes: s.cfg.MinMinutes,
		Features:   s.cfg.Features,
	})
}

func (s *RecommendationService) FindSimilar(ctx context.Context, input FindSimilarInput) (out SimilarPlayers, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RecommendationService.FindSimilar",
		attribute.String("player", input.Player),
		attribute.Int("top_n", input.TopN),
	)
	defer func() { endSpan(span, err) }()

	name := strings.TrimSpace(input.Player)
	if name == "" {
		return SimilarPlayers{}, fmt.Errorf("%w: player name is required", ErrInvalidInput)
	}
	topN, err := s.resolveTopN(input.TopN)
	if err != nil {
		return SimilarPlayers{}, err
	}
	mode, metric, err := s.resolveKnobs(input.Mode, input.Metric)
	if err != nil {
		return SimilarPlayers{}, err
	}

	position := strings.TrimSpace(input.Position)
	competition := strings.TrimSpace(input.Competition)
	fetch := topN
	if position != "" || competition != "" {
		fetch = topN + postFilterHeadroom
	}

	var (
		target  player.Record
		found   bool
		results []similarity.Result
	)
	err = s.query(ctx, mode, metric, func() error {
		target, found = s.engine.PlayerStats(name)
		if !found {
			return nil
		}
		var queryErr error
		results, queryErr = s.engine.GetSimilarPlayers(name, fetch, mode, metric)
		return queryErr
	})
	if err != nil {
		return SimilarPlayers{}, err
	}
	if !found {
		return SimilarPlayers{}, s.notFound(name)
	}

	results = filterResults(results, position, competition, topN)
	return SimilarPlayers{
		Target:  target,
		Mode:    mode,
		Metric:  metric,
		Results: results,
	}, nil
}

// filterResults keeps results whose raw position contains position and
// whose competition equals competition, then trims and re-ranks.
func filterResults(in []similarity.Result, position, competition string, topN int) []similarity.Result {
	out := make([]similarity.Result, 0, topN)
	for _, r := range in {
		if position != "" && !strings.Contains(strings.ToUpper(r.Position), strings.ToUpper(position)) {
			continue
		}
		if competition != "" && !strings.EqualFold(r.Competition, competition) {
			continue
		}
		r.Rank = len(out) + 1
		out = append(out, r)
		if len(out) == topN {
			break
		}
	}
	return out
}

func (s *RecommendationService) SearchPlayers(ctx context.Context, input SearchInput) (out []player.Record, err error) {
	_, span := startUsecaseSpan(ctx, "usecase.RecommendationService.SearchPlayers", attribute.String("query", input.Query))
	defer func() { endSpan(span, err) }()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	limit := input.Limit
	if limit <= 0 || limit > maxTopN {
		limit = maxTopN
	}

	criteria := player.Criteria{Club: input.Club, Competition: input.Competition}
	s.mu.RLock()
	matches := s.engine.SearchPlayers(query)
	s.mu.RUnlock()

	out = make([]player.Record, 0, len(matches))
	for _, r := range matches {
		if !criteria.Match(r) {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *RecommendationService) GetPlayer(ctx context.Context, name string) (player.Record, error) {
	_, span := startUsecaseSpan(ctx, "usecase.RecommendationService.GetPlayer")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return player.Record{}, fmt.Errorf("%w: player name is required", ErrInvalidInput)
	}
	s.mu.RLock()
	record, ok := s.engine.PlayerStats(name)
	s.mu.RUnlock()
	if !ok {
		return player.Record{}, s.notFound(name)
	}
	return record, nil
}

func (s *RecommendationService) ComparePlayers(ctx context.Context, nameA, nameB string) (similarity.Comparison, error) {
	_, span := startUsecaseSpan(ctx, "usecase.RecommendationService.ComparePlayers")
	defer span.End()

	nameA, nameB = strings.TrimSpace(nameA), strings.TrimSpace(nameB)
	if nameA == "" || nameB == "" {
		return similarity.Comparison{}, fmt.Errorf("%w: two player names are required", ErrInvalidInput)
	}

	s.mu.RLock()
	cmp, err := s.engine.Compare(nameA, nameB)
	s.mu.RUnlock()
	switch {
	case err == nil:
		return cmp, nil
	case errors.Is(err, similarity.ErrPlayerNotFound):
		return similarity.Comparison{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, similarity.ErrNotPrepared):
		return similarity.Comparison{}, fmt.Errorf("%w: %v", ErrDependencyUnavailable, err)
	default:
		return similarity.Comparison{}, err
	}
}

// ListCompetitions returns every competition in the loaded snapshot,
// regardless of the current filters.
func (s *RecommendationService) ListCompetitions(context.Context) []string {
	return s.table.Competitions()
}

func (s *RecommendationService) ListClubs(context.Context) []string {
	return s.table.Clubs()
}

// SuggestNames ranks retained player names by edit distance to query,
// comparing against the full name and each name part.
func (s *RecommendationService) SuggestNames(_ context.Context, query string, limit int) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []string{}
	}
	if limit <= 0 {
		limit = maxSuggestions
	}

	s.mu.RLock()
	names := s.engine.Names()
	s.mu.RUnlock()

	type scored struct {
		name     string
		distance int
	}
	seen := make(map[string]struct{}, len(names))
	candidates := make([]scored, 0, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		lower := strings.ToLower(name)
		best := levenshtein.ComputeDistance(query, lower)
		for _, token := range strings.Fields(lower) {
			if d := levenshtein.ComputeDistance(query, token); d < best {
				best = d
			}
		}
		candidates = append(candidates, scored{name: name, distance: best})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})

	out := make([]string, 0, limit)
	for _, c := range candidates {
		if len(out) == limit {
			break
		}
		out = append(out, c.name)
	}
	return out
}

// BatchSimilar answers several queries with the configured mode and
// metric. The engine is warmed once, then queries fan out on a worker pool.
func (s *RecommendationService) BatchSimilar(ctx context.Context, names []string, topN int) (out []BatchItem, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RecommendationService.BatchSimilar", attribute.Int("queries", len(names)))
	defer func() { endSpan(span, err) }()

	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one player name is required", ErrInvalidInput)
	}
	topN, err = s.resolveTopN(topN)
	if err != nil {
		return nil, err
	}
	mode, metric := s.cfg.Mode, s.cfg.Metric

	workerCount := s.cfg.Workers
	if workerCount > len(names) {
		workerCount = len(names)
	}
	pool, err := ants.NewPool(workerCount)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	out = make([]BatchItem, len(names))
	start := s.now()

	err = s.query(ctx, mode, metric, func() error {
		var workers sync.WaitGroup
		for i, name := range names {
			workers.Add(1)
			if err := pool.Submit(func() {
				defer workers.Done()
				out[i] = s.batchItem(ctx, name, topN, mode, metric)
			}); err != nil {
				workers.Done()
				workers.Wait()
				return fmt.Errorf("submit query to worker pool: %w", err)
			}
		}
		workers.Wait()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "batch similarity finished",
		"queries", len(names),
		"workers", workerCount,
		"duration", s.now().Sub(start),
	)
	return out, nil
}

func (s *RecommendationService) Status(context.Context) EngineStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return EngineStatus{
		State:     s.engine.State().String(),
		Rows:      s.engine.Len(),
		Features:  s.engine.Features(),
		Prepared:  s.prepared,
		Metric:    s.cfg.Metric,
		Mode:      s.cfg.Mode,
		Positions: feature.Positions(),
	}
}

func (s *RecommendationService) batchItem(ctx context.Context, name string, topN int, mode similarity.Mode, metric similarity.Metric) BatchItem {
	item := BatchItem{Query: name}
	if err := ctx.Err(); err != nil {
		item.Error = err.Error()
		return item
	}
	results, err := s.engine.GetSimilarPlayers(name, topN, mode, metric)
	if err != nil {
		item.Error = err.Error()
		return item
	}
	_, item.Found = s.engine.FindPlayerIndex(name)
	item.Results = results
	return item
}

// query runs fn against an engine that can answer mode and metric without
// mutating itself. The common path shares the read lock; a cold engine is
// warmed and queried under the write lock.
func (s *RecommendationService) query(ctx context.Context, mode similarity.Mode, metric similarity.Metric, fn func() error) error {
	s.mu.RLock()
	if s.engine.Ready(mode, metric) {
		defer s.mu.RUnlock()
		return fn()
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine.State() == similarity.StateUnprepared {
		return fmt.Errorf("%w: similarity engine is not prepared", ErrDependencyUnavailable)
	}
	if !s.engine.Ready(mode, metric) {
		start := s.now()
		if err := s.engine.Warm(mode, metric); err != nil {
			return fmt.Errorf("warm similarity engine: %w", err)
		}
		s.logger.DebugContext(ctx, "similarity structure built",
			"mode", mode,
			"metric", metric,
			"rows", s.engine.Len(),
			"duration", s.now().Sub(start),
		)
	}
	return fn()
}

func (s *RecommendationService) resolveTopN(topN int) (int, error) {
	if topN == 0 {
		return s.cfg.TopN, nil
	}
	if topN < 0 || topN > maxTopN {
		return 0, fmt.Errorf("%w: top_n must be between 1 and %d", ErrInvalidInput, maxTopN)
	}
	return topN, nil
}

func (s *RecommendationService) resolveKnobs(rawMode, rawMetric string) (similarity.Mode, similarity.Metric, error) {
	mode, metric := s.cfg.Mode, s.cfg.Metric
	if strings.TrimSpace(rawMode) != "" {
		parsed, err := similarity.ParseMode(rawMode)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		mode = parsed
	}
	if strings.TrimSpace(rawMetric) != "" {
		parsed, err := similarity.ParseMetric(rawMetric)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		metric = parsed
	}
	return mode, metric, nil
}

func (s *RecommendationService) notFound(name string) error {
	return &PlayerNotFoundError{
		Query:       name,
		Suggestions: s.SuggestNames(context.Background(), name, maxSuggestions),
	}
}
