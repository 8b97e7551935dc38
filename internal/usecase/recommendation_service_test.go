package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/moneyball/internal/domain/player"
	"github.com/riskibarqy/moneyball/internal/domain/similarity"
	"github.com/riskibarqy/moneyball/internal/platform/logging"
)

func scoutingTable() player.Table {
	row := func(name, pos, club, comp string, mins, gls, ast, xg, tkl float64) player.Record {
		return player.Record{
			Name:        name,
			Position:    pos,
			Club:        club,
			Competition: comp,
			Stats: map[string]float64{
				player.ColumnMinutes: mins,
				"Gls":                gls,
				"Ast":                ast,
				"xG":                 xg,
				"Tkl":                tkl,
			},
		}
	}
	return player.Table{
		Columns: []string{player.ColumnName, player.ColumnPosition, player.ColumnClub, player.ColumnCompetition, player.ColumnMinutes, "Gls", "Ast", "xG", "Tkl"},
		Records: []player.Record{
			row("Rafael Striker", "FW", "Persija", "Liga 1", 2500, 18, 4, 15, 10),
			row("Bruno Finisher", "FW,MF", "Persib", "Liga 1", 2400, 17, 5, 14.5, 12),
			row("Carlos Nine", "FW", "Madrid", "La Liga", 2600, 16, 3, 14, 9),
			row("Diego Playmaker", "MF", "Madrid", "La Liga", 2700, 6, 12, 5, 30),
			row("Evan Anchor", "MF,DF", "Persib", "Liga 1", 2800, 2, 3, 1.5, 70),
			row("Felix Wall", "DF", "Arsenal", "Premier League", 3000, 1, 1, 1, 80),
			row("Gio Keeper", "GK", "Arsenal", "Premier League", 3100, 0, 0, 0, 2),
			row("Hugo Bench", "FW", "Persija", "Liga 1", 200, 1, 0, 1, 1),
		},
	}
}

func newRecommendationService(t *testing.T, cfg RecommendationConfig) *RecommendationService {
	t.Helper()
	svc, err := NewRecommendationService(scoutingTable(), cfg, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, svc.Prepare(context.Background(), PrepareInput{}))
	return svc
}

func TestRecommendationService_FindSimilar(t *testing.T) {
	t.Parallel()

	svc := newRecommendationService(t, RecommendationConfig{TopN: 3})

	got, err := svc.FindSimilar(context.Background(), FindSimilarInput{Player: "rafael"})
	require.NoError(t, err)
	assert.Equal(t, "Rafael Striker", got.Target.Name)
	assert.Equal(t, similarity.ModeMatrix, got.Mode)
	assert.Equal(t, similarity.MetricCosine, got.Metric)
	require.Len(t, got.Results, 3)
	for i, r := range got.Results {
		assert.Equal(t, i+1, r.Rank)
		assert.NotEqual(t, "Rafael Striker", r.Player)
		if i > 0 {
			assert.LessOrEqual(t, r.Similarity, got.Results[i-1].Similarity)
		}
	}
}

func TestRecommendationService_FindSimilar_IndexModeAgreesOnTopMatch(t *testing.T) {
	t.Parallel()

	svc := newRecommendationService(t, RecommendationConfig{})
	ctx := context.Background()

	dense, err := svc.FindSimilar(ctx, FindSimilarInput{Player: "Rafael", TopN: 2, Mode: "matrix"})
	require.NoError(t, err)
	knn, err := svc.FindSimilar(ctx, FindSimilarInput{Player: "Rafael", TopN: 2, Mode: "index"})
	require.NoError(t, err)

	require.NotEmpty(t, dense.Results)
	require.NotEmpty(t, knn.Results)
	assert.Equal(t, similarity.ModeIndex, knn.Mode)
	assert.Equal(t, dense.Results[0].Player, knn.Results[0].Player)
	assert.InDelta(t, dense.Results[0].Similarity, knn.Results[0].Similarity, 1e-9)
}

func TestRecommendationService_FindSimilar_PostFilters(t *testing.T) {
	t.Parallel()

	svc := newRecommendationService(t, RecommendationConfig{})
	ctx := context.Background()

	got, err := svc.FindSimilar(ctx, FindSimilarInput{Player: "Rafael", TopN: 5, Competition: "liga 1"})
	require.NoError(t, err)
	require.NotEmpty(t, got.Results)
	for i, r := range got.Results {
		assert.Equal(t, "Liga 1", r.Competition)
		assert.Equal(t, i+1, r.Rank)
	}

	got, err = svc.FindSimilar(ctx, FindSimilarInput{Player: "Rafael", TopN: 5, Position: "df"})
	require.NoError(t, err)
	names := make([]string, 0, len(got.Results))
	for _, r := range got.Results {
		assert.Contains(t, r.Position, "DF")
		names = append(names, r.Player)
	}
	assert.ElementsMatch(t, []string{"Evan Anchor", "Felix Wall"}, names)
}

func TestRecommendationService_FindSimilar_Errors(t *testing.T) {
	t.Parallel()

	svc := newRecommendationService(t, RecommendationConfig{})
	ctx := context.Background()

	tests := []struct {
		name  string
		input FindSimilarInput
		want  error
	}{
		{name: "blank name", input: FindSimilarInput{Player: "  "}, want: ErrInvalidInput},
		{name: "negative top n", input: FindSimilarInput{Player: "Rafael", TopN: -1}, want: ErrInvalidInput},
		{name: "top n too large", input: FindSimilarInput{Player: "Rafael", TopN: maxTopN + 1}, want: ErrInvalidInput},
		{name: "unknown mode", input: FindSimilarInput{Player: "Rafael", Mode: "faiss"}, want: ErrInvalidInput},
		{name: "unknown metric", input: FindSimilarInput{Player: "Rafael", Metric: "manhattan"}, want: ErrInvalidInput},
		{name: "unknown player", input: FindSimilarInput{Player: "Zlatan"}, want: ErrNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.FindSimilar(ctx, tc.input)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRecommendationService_FindSimilar_NotFoundSuggestsNames(t *testing.T) {
	t.Parallel()

	svc := newRecommendationService(t, RecommendationConfig{})

	_, err := svc.FindSimilar(context.Background(), FindSimilarInput{Player: "Rafeal"})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "Rafael Striker")
}

func TestRecommendationService_NotPrepared(t *testing.T) {
	t.Parallel()

	svc, err := NewRecommendationService(scoutingTable(), RecommendationConfig{}, nil)
	require.NoError(t, err)

	_, err = svc.FindSimilar(context.Background(), FindSimilarInput{Player: "Rafael"})
	assert.ErrorIs(t, err, ErrDependencyUnavailable)

	_, err = svc.ComparePlayers(context.Background(), "Rafael", "Bruno")
	assert.ErrorIs(t, err, ErrDependencyUnavailable)

	assert.Equal(t, similarity.StateUnprepared.String(), svc.Status(context.Background()).State)
}

func TestRecommendationService_Prepare(t *testing.T) {
	t.Parallel()

	svc, err := NewRecommendationService(scoutingTable(), RecommendationConfig{}, logging.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, svc.Prepare(ctx, PrepareInput{Position: " fw ", MinMinutes: 900}))
	status := svc.Status(ctx)
	assert.Equal(t, 3, status.Rows)
	assert.Equal(t, "FW", strings.ToUpper(status.Prepared.Position))
	assert.Equal(t, []string{"Gls", "Ast", "xG"}, status.Features)
	assert.Equal(t, []string{"FW", "MF", "DF"}, status.Positions)

	err = svc.Prepare(ctx, PrepareInput{Features: []string{"Saves"}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = svc.Prepare(ctx, PrepareInput{MinMinutes: 10000})
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = svc.Prepare(ctx, PrepareInput{MinMinutes: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecommendationService_PrepareDefaults(t *testing.T) {
	t.Parallel()

	svc, err := NewRecommendationService(scoutingTable(), RecommendationConfig{MinMinutes: 900}, logging.NewNop())
	require.NoError(t, err)
	require.NoError(t, svc.PrepareDefaults(context.Background()))

	// Hugo Bench played 200 minutes.
	_, err = svc.GetPlayer(context.Background(), "Hugo")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 7, svc.Status(context.Background()).Rows)
}

func TestRecommendationService_SearchPlayers(t *testing.T) {
	t.Parallel()

	svc := newRecommendationService(t, RecommendationConfig{})
	ctx := context.Background()

	got, err := svc.SearchPlayers(ctx, SearchInput{Query: "r", Club: "persi"})
	require.NoError(t, err)
	names := make([]string, 0, len(got))
	for _, r := range got {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"Rafael Striker", "Bruno Finisher", "Evan Anchor"}, names)

	got, err = svc.SearchPlayers(ctx, SearchInput{Query: "r", Competition: "la liga", Limit: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Carlos Nine", got[0].Name)

	_, err = svc.SearchPlayers(ctx, SearchInput{Query: " "})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecommendationService_ComparePlayers(t *testing.T) {
	t.Parallel()

	svc := newRecommendationService(t, RecommendationConfig{})
	ctx := context.Background()

	cmp, err := svc.ComparePlayers(ctx, "Rafael", "Felix")
	require.NoError(t, err)
	assert.Equal(t, "Rafael Striker", cmp.PlayerA.Name)
	assert.Equal(t, "Felix Wall", cmp.PlayerB.Name)
	require.NotEmpty(t, cmp.Rows)
	assert.Equal(t, "Gls", cmp.Rows[0].Stat)
	assert.Equal(t, 18.0, cmp.Rows[0].A)
	assert.Equal(t, 1.0, cmp.Rows[0].B)

	_, err = svc.ComparePlayers(ctx, "Rafael", "Nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ComparePlayers(ctx, "", "Felix")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecommendationService_ListCompetitionsIgnoresFilters(t *testing.T) {
	t.Parallel()

	svc := newRecommendationService(t, RecommendationConfig{})
	require.NoError(t, svc.Prepare(context.Background(), PrepareInput{Position: "GK"}))

	assert.Equal(t, []string{"La Liga", "Liga 1", "Premier League"}, svc.ListCompetitions(context.Background()))
	assert.Equal(t, []string{"Arsenal", "Madrid", "Persib", "Persija"}, svc.ListClubs(context.Background()))
}

func TestRecommendationService_SuggestNames(t *testing.T) {
	t.Parallel()

	svc := newRecommendationService(t, RecommendationConfig{})

	got := svc.SuggestNames(context.Background(), "keper", 1)
	assert.Equal(t, []string{"Gio Keeper"}, got)
	assert.Empty(t, svc.SuggestNames(context.Background(), " ", 3))
	assert.Len(t, svc.SuggestNames(context.Background(), "x", 0), maxSuggestions)
}

func TestRecommendationService_BatchSimilar(t *testing.T) {
	t.Parallel()

	svc := newRecommendationService(t, RecommendationConfig{Workers: 2})
	ctx := context.Background()

	queries := []string{"Rafael", "Nobody", "Felix", "Diego"}
	got, err := svc.BatchSimilar(ctx, queries, 2)
	require.NoError(t, err)
	require.Len(t, got, len(queries))

	for i, item := range got {
		assert.Equal(t, queries[i], item.Query)
		assert.Empty(t, item.Error)
	}
	assert.True(t, got[0].Found)
	assert.Len(t, got[0].Results, 2)
	assert.False(t, got[1].Found)
	assert.Empty(t, got[1].Results)
	assert.True(t, got[2].Found)

	single, err := svc.FindSimilar(ctx, FindSimilarInput{Player: "Felix", TopN: 2})
	require.NoError(t, err)
	assert.Equal(t, single.Results, got[2].Results)

	_, err = svc.BatchSimilar(ctx, nil, 2)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecommendationService_ConcurrentQueriesAndPrepare(t *testing.T) {
	t.Parallel()

	svc := newRecommendationService(t, RecommendationConfig{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mode := "matrix"
			if i%2 == 0 {
				mode = "index"
			}
			_, err := svc.FindSimilar(ctx, FindSimilarInput{Player: "Carlos", TopN: 2, Mode: mode})
			assert.NoError(t, err)
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.Prepare(ctx, PrepareInput{}))
	}()
	wg.Wait()
}
