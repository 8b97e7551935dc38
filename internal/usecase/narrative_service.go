package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/moneyball/internal/domain/player"
	"github.com/riskibarqy/moneyball/internal/domain/similarity"
	"github.com/riskibarqy/moneyball/internal/platform/cache"
	"github.com/riskibarqy/moneyball/internal/platform/logging"
)

// TextGenerator turns a prompt into generated prose.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// PlayerLookup resolves a player name to its record.
type PlayerLookup interface {
	GetPlayer(ctx context.Context, name string) (player.Record, error)
}

type NarrativeKind string

const (
	NarrativeDescribe NarrativeKind = "describe"
	NarrativeCompare  NarrativeKind = "compare"
	NarrativeExplain  NarrativeKind = "explain"
	NarrativeScout    NarrativeKind = "scout"
	NarrativeSummary  NarrativeKind = "summary"
)

const (
	explainedRecommendations = 5
	scoutingBoardConcurrency = 2
	defaultNarrativeLanguage = "Indonesian"
)

func ParseNarrativeKind(raw string) (NarrativeKind, error) {
	switch kind := NarrativeKind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case NarrativeDescribe, NarrativeCompare, NarrativeExplain, NarrativeScout, NarrativeSummary:
		return kind, nil
	default:
		return "", fmt.Errorf("%w: unknown narrative kind %q", ErrInvalidInput, raw)
	}
}

type NarrativeConfig struct {
	Enabled  bool
	Language string
	CacheTTL time.Duration
}

type Narrative struct {
	Kind    NarrativeKind
	Players []string
	Text    string
}

type BoardEntry struct {
	Query     string
	Narrative Narrative
	Error     string
}

// narrativeStats are the statistics every prompt shows, in display order.
var narrativeStats = []struct {
	column string
	label  string
}{
	{"Gls", "Goals"},
	{"Ast", "Assists"},
	{"G+A", "Goals + assists"},
	{"xG", "Expected goals (xG)"},
	{"xAG", "Expected assisted goals (xAG)"},
	{"Sh", "Shots"},
	{"SoT", "Shots on target"},
	{"PrgC", "Progressive carries"},
	{"PrgP", "Progressive passes"},
	{"Tkl", "Tackles"},
	{"Int", "Interceptions"},
	{player.ColumnMinutes, "Minutes played"},
}

// NarrativeService writes scouting prose about players through a
// TextGenerator and caches each answer per kind and players.
type NarrativeService struct {
	generator TextGenerator
	players   PlayerLookup
	cfg       NarrativeConfig
	cache     *cache.Store[string]
	logger    *logging.Logger
}

func NewNarrativeService(generator TextGenerator, players PlayerLookup, cfg NarrativeConfig, logger *logging.Logger) *NarrativeService {
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.Language) == "" {
		cfg.Language = defaultNarrativeLanguage
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &NarrativeService{
		generator: generator,
		players:   players,
		cfg:       cfg,
		cache:     cache.NewStore[string](cfg.CacheTTL),
		logger:    logger,
	}
}

func (s *NarrativeService) Enabled() bool {
	return s != nil && s.cfg.Enabled && s.generator != nil
}

func (s *NarrativeService) DescribePlayer(ctx context.Context, name string) (Narrative, error) {
	return s.single(ctx, NarrativeDescribe, name, func(buf *bytebufferpool.ByteBuffer, record player.Record) {
		writeLine(buf, "Based on the statistics below, write an engaging and informative player profile.")
		writeLine(buf, "")
		writeStats(buf, record)
		writeLine(buf, "")
		writeLine(buf, "Output format:")
		writeLine(buf, "1. **Overview**: a short description of the player and playing style")
		writeLine(buf, "2. **Strengths**: three key strengths backed by the statistics")
		writeLine(buf, "3. **Development areas**: two areas to improve")
		writeLine(buf, "4. **Conclusion**: one paragraph on potential and value")
	})
}

func (s *NarrativeService) ScoutReport(ctx context.Context, name string) (Narrative, error) {
	return s.single(ctx, NarrativeScout, name, func(buf *bytebufferpool.ByteBuffer, record player.Record) {
		writeLine(buf, "Write a professional scouting report for the following player.")
		writeLine(buf, "")
		writeStats(buf, record)
		writeLine(buf, "")
		writeLine(buf, "**SCOUTING REPORT**")
		writeLine(buf, "**1. BASICS**: profile summary")
		writeLine(buf, "**2. TECHNICAL ANALYSIS**: scoring, creativity, defensive work, ball progression")
		writeLine(buf, "**3. RATINGS** (1-10): Finishing, Playmaking, Defensive Work, Physical Presence")
		writeLine(buf, "**4. RECOMMENDATION**: suitable team profile, transfer value estimate, development potential")
		writeLine(buf, "**5. FINAL VERDICT**: two or three sentences")
	})
}

func (s *NarrativeService) QuickSummary(ctx context.Context, name string) (Narrative, error) {
	return s.single(ctx, NarrativeSummary, name, func(buf *bytebufferpool.ByteBuffer, record player.Record) {
		writeLine(buf, "Give a VERY SHORT summary (at most three sentences) of this player.")
		writeLine(buf, "")
		writeStats(buf, record)
		writeLine(buf, "")
		writeLine(buf, "Focus on position, main playing style and one statistical highlight.")
		writeLine(buf, "Answer as a short paragraph without bullet points.")
	})
}

func (s *NarrativeService) ComparePlayers(ctx context.Context, nameA, nameB string) (out Narrative, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.NarrativeService.ComparePlayers")
	defer func() { endSpan(span, err) }()

	if err := s.ready(); err != nil {
		return Narrative{}, err
	}
	a, err := s.lookup(ctx, nameA)
	if err != nil {
		return Narrative{}, err
	}
	b, err := s.lookup(ctx, nameB)
	if err != nil {
		return Narrative{}, err
	}

	players := []string{a.Name, b.Name}
	return s.generate(ctx, NarrativeCompare, players, narrativeCacheKey(NarrativeCompare, players), func(buf *bytebufferpool.ByteBuffer) {
		writeLine(buf, "Compare the following two players in depth.")
		writeLine(buf, "")
		writeLine(buf, "=== PLAYER 1 ===")
		writeStats(buf, a)
		writeLine(buf, "")
		writeLine(buf, "=== PLAYER 2 ===")
		writeStats(buf, b)
		writeLine(buf, "")
		writeLine(buf, "Analysis format:")
		writeLine(buf, "1. **Head-to-head**: a table of the key statistics")
		writeLine(buf, "2. **Comparative analysis**: playing style and contribution")
		writeLine(buf, "3. **Edges**: where each player is stronger")
		writeLine(buf, "4. **Verdict**: who fits which situation better")
		writeLine(buf, "Stay objective and grounded in the data.")
	})
}

// ExplainRecommendations explains why the first few similar players were
// suggested as alternatives to target. Similar players that no longer
// resolve are left out of the prompt.
func (s *NarrativeService) ExplainRecommendations(ctx context.Context, target string, similar []similarity.Result, criteria string) (out Narrative, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.NarrativeService.ExplainRecommendations",
		attribute.String("player", target),
		attribute.Int("similar", len(similar)),
	)
	defer func() { endSpan(span, err) }()

	if err := s.ready(); err != nil {
		return Narrative{}, err
	}
	record, err := s.lookup(ctx, target)
	if err != nil {
		return Narrative{}, err
	}
	if len(similar) > explainedRecommendations {
		similar = similar[:explainedRecommendations]
	}

	type candidate struct {
		result similarity.Result
		record player.Record
	}
	candidates := make([]candidate, 0, len(similar))
	names := []string{record.Name}
	for _, r := range similar {
		found, lookupErr := s.players.GetPlayer(ctx, r.Player)
		if lookupErr != nil {
			continue
		}
		candidates = append(candidates, candidate{result: r, record: found})
		names = append(names, found.Name)
	}
	criteria = strings.TrimSpace(criteria)
	key := narrativeCacheKey(NarrativeExplain, names)
	if criteria != "" {
		key += "|criteria=" + strings.ToLower(criteria)
	}

	return s.generate(ctx, NarrativeExplain, names, key, func(buf *bytebufferpool.ByteBuffer) {
		writeLine(buf, "Explain the following player recommendations for a club looking for a replacement or alternative.")
		writeLine(buf, "")
		writeLine(buf, "=== TARGET PLAYER ===")
		writeStats(buf, record)
		writeLine(buf, "")
		writeLine(buf, "=== RECOMMENDED PLAYERS ===")
		for _, c := range candidates {
			gls, _ := c.record.Stat("Gls")
			ast, _ := c.record.Stat("Ast")
			writeLine(buf, fmt.Sprintf("- %s (%s) - Similarity: %.1f%%, G: %s, A: %s",
				c.record.Name, c.record.Club, c.result.Similarity*100, formatStat(gls), formatStat(ast)))
		}
		if criteria != "" {
			writeLine(buf, "")
			writeLine(buf, "Search criteria: "+criteria)
		}
		writeLine(buf, "")
		writeLine(buf, "Explanation format:")
		writeLine(buf, "1. **Why these players**: the logic behind the recommendation")
		writeLine(buf, "2. **Short profiles**: one short description per recommended player")
		writeLine(buf, "3. **Fit analysis**: how well each would replace the target")
		writeLine(buf, "4. **Scouting advice**: which players to prioritise")
	})
}

// ScoutingBoard writes quick summaries for several players, at most two
// generator calls at a time. Entries keep the order of names; a failed
// entry carries its error text.
func (s *NarrativeService) ScoutingBoard(ctx context.Context, names []string) (out []BoardEntry, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.NarrativeService.ScoutingBoard", attribute.Int("players", len(names)))
	defer func() { endSpan(span, err) }()

	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: at least one player name is required", ErrInvalidInput)
	}

	out = make([]BoardEntry, len(names))
	p := pool.New().WithMaxGoroutines(scoutingBoardConcurrency)
	for i, name := range names {
		p.Go(func() {
			entry := BoardEntry{Query: name}
			narrative, summaryErr := s.QuickSummary(ctx, name)
			if summaryErr != nil {
				entry.Error = summaryErr.Error()
			} else {
				entry.Narrative = narrative
			}
			out[i] = entry
		})
	}
	p.Wait()
	return out, nil
}

func (s *NarrativeService) single(ctx context.Context, kind NarrativeKind, name string, body func(*bytebufferpool.ByteBuffer, player.Record)) (out Narrative, err error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.NarrativeService.Generate",
		attribute.String("kind", string(kind)),
		attribute.String("player", name),
	)
	defer func() { endSpan(span, err) }()

	if err := s.ready(); err != nil {
		return Narrative{}, err
	}
	record, err := s.lookup(ctx, name)
	if err != nil {
		return Narrative{}, err
	}
	players := []string{record.Name}
	return s.generate(ctx, kind, players, narrativeCacheKey(kind, players), func(buf *bytebufferpool.ByteBuffer) {
		body(buf, record)
	})
}

func (s *NarrativeService) generate(ctx context.Context, kind NarrativeKind, players []string, key string, body func(*bytebufferpool.ByteBuffer)) (Narrative, error) {
	text, err := s.cache.GetOrLoad(ctx, key, func(ctx context.Context) (string, error) {
		prompt := s.prompt(body)
		start := time.Now()
		text, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			s.logger.WarnContext(ctx, "narrative generation failed",
				"kind", kind,
				"players", strings.Join(players, ", "),
				"error", err,
			)
			return "", err
		}
		s.logger.InfoContext(ctx, "narrative generated",
			"kind", kind,
			"prompt_bytes", len(prompt),
			"duration", time.Since(start),
		)
		return text, nil
	})
	if err != nil {
		return Narrative{}, err
	}

	return Narrative{
		Kind:    kind,
		Players: players,
		Text:    text,
	}, nil
}

func (s *NarrativeService) prompt(body func(*bytebufferpool.ByteBuffer)) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	writeLine(buf, "You are a professional football analyst and experienced scout.")
	writeLine(buf, "Give an in-depth analysis of players based on the statistics provided,")
	writeLine(buf, "with insight that is useful for managers and scouts.")
	writeLine(buf, "Write the answer in "+s.cfg.Language+" that is clear and easy to follow.")
	writeLine(buf, "")
	body(buf)
	return buf.String()
}

func (s *NarrativeService) ready() error {
	if !s.Enabled() {
		return fmt.Errorf("%w: narrative generation is disabled", ErrDependencyUnavailable)
	}
	return nil
}

func (s *NarrativeService) lookup(ctx context.Context, name string) (player.Record, error) {
	if strings.TrimSpace(name) == "" {
		return player.Record{}, fmt.Errorf("%w: player name is required", ErrInvalidInput)
	}
	return s.players.GetPlayer(ctx, name)
}

func narrativeCacheKey(kind NarrativeKind, players []string) string {
	parts := make([]string, 0, len(players)+1)
	parts = append(parts, string(kind))
	for _, p := range players {
		parts = append(parts, strings.ToLower(p))
	}
	return strings.Join(parts, "|")
}

func writeStats(buf *bytebufferpool.ByteBuffer, record player.Record) {
	writeLine(buf, "Name: "+record.Name)
	writeLine(buf, "Club: "+record.Club)
	writeLine(buf, "League: "+record.Competition)
	writeLine(buf, "Position: "+record.Position)
	writeLine(buf, "Key statistics:")
	for _, stat := range narrativeStats {
		value, _ := record.Stat(stat.column)
		formatted := formatStat(value)
		if stat.column == "xG" || stat.column == "xAG" {
			formatted = strconv.FormatFloat(value, 'f', 2, 64)
		}
		writeLine(buf, "- "+stat.label+": "+formatted)
	}
}

func formatStat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeLine(buf *bytebufferpool.ByteBuffer, line string) {
	_, _ = buf.WriteString(line)
	_ = buf.WriteByte('\n')
}
