package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/riskibarqy/moneyball/internal/config"
	"github.com/riskibarqy/moneyball/internal/domain/player"
	"github.com/riskibarqy/moneyball/internal/domain/similarity"
	"github.com/riskibarqy/moneyball/internal/infrastructure/dataset/csvsource"
	playermock "github.com/riskibarqy/moneyball/internal/mocks/domain/player"
	"github.com/riskibarqy/moneyball/internal/platform/logging"
	"github.com/riskibarqy/moneyball/internal/usecase"
)

func seasonTable() player.Table {
	return player.Table{
		Columns: []string{player.ColumnName, player.ColumnPosition, player.ColumnClub, player.ColumnCompetition, player.ColumnMinutes, "Gls", "Tkl"},
		Records: []player.Record{
			{Name: "Rafael Striker", Position: "FW", Club: "Persija", Competition: "Liga 1", Stats: map[string]float64{player.ColumnMinutes: 2500, "Gls": 18, "Tkl": 10}},
			{Name: "Bruno Finisher", Position: "FW", Club: "Persib", Competition: "Liga 1", Stats: map[string]float64{player.ColumnMinutes: 2400, "Gls": 17}},
			{Name: "Felix Wall", Position: "DF", Club: "Arsenal", Competition: "Premier League", Stats: map[string]float64{player.ColumnMinutes: 3000, "Gls": 1, "Tkl": 80}},
		},
	}
}

func TestLoadDataset_FillsMissingValues_UsingMockery(t *testing.T) {
	source := playermock.NewSource(t)
	source.On("Load", mock.Anything).Return(seasonTable(), nil).Once()

	table, err := LoadDataset(context.Background(), source, player.MissingZero, logging.NewNop())
	if err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	if table.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", table.Len())
	}
	if v, ok := table.Records[1].Stat("Tkl"); !ok || v != 0 {
		t.Fatalf("expected missing Tkl to be zero-filled, got %v %v", v, ok)
	}
}

func TestLoadDataset_Errors_UsingMockery(t *testing.T) {
	failing := playermock.NewSource(t)
	failing.On("Load", mock.Anything).Return(player.Table{}, errors.New("connection refused")).Once()
	if _, err := LoadDataset(context.Background(), failing, player.MissingKeep, logging.NewNop()); err == nil {
		t.Fatalf("expected load error")
	}

	empty := playermock.NewSource(t)
	empty.On("Load", mock.Anything).Return(player.Table{Columns: []string{player.ColumnName}}, nil).Once()
	if _, err := LoadDataset(context.Background(), empty, player.MissingKeep, logging.NewNop()); err == nil {
		t.Fatalf("expected error for empty dataset")
	}
}

func TestNewDatasetSource(t *testing.T) {
	src, err := NewDatasetSource(config.Config{DatasetSource: config.DatasetSourceCSV, DatasetPath: "players.csv"}, nil)
	if err != nil {
		t.Fatalf("csv source: %v", err)
	}
	if _, ok := src.(*csvsource.Source); !ok {
		t.Fatalf("expected csv source, got %T", src)
	}

	if _, err := NewDatasetSource(config.Config{DatasetSource: config.DatasetSourcePostgres}, nil); err == nil {
		t.Fatalf("expected error for postgres source without database")
	}
	if _, err := NewDatasetSource(config.Config{DatasetSource: "parquet"}, nil); err == nil {
		t.Fatalf("expected error for unknown source")
	}
}

func TestNewServices_PreparesEngine(t *testing.T) {
	cfg := config.Config{
		SimilarityScaler:  similarity.ScalerStandard,
		SimilarityMetric:  similarity.MetricCosine,
		SimilarityMode:    similarity.ModeMatrix,
		SimilarityTopN:    2,
		BatchWorkers:      2,
		NarrativeEnabled:  false,
		NarrativeLanguage: "English",
	}

	services, err := NewServices(context.Background(), cfg, player.FillMissing(seasonTable(), player.MissingZero), logging.NewNop())
	if err != nil {
		t.Fatalf("new services: %v", err)
	}
	if got := services.Recommendations.Status(context.Background()).State; got != "prepared" {
		t.Fatalf("expected prepared engine, got %s", got)
	}
	if services.Narratives.Enabled() {
		t.Fatalf("expected narratives disabled")
	}

	result, err := services.Recommendations.FindSimilar(context.Background(), usecase.FindSimilarInput{Player: "rafael"})
	if err != nil {
		t.Fatalf("find similar: %v", err)
	}
	if len(result.Results) != 2 || result.Results[0].Player != "Bruno Finisher" {
		t.Fatalf("unexpected results: %+v", result.Results)
	}
}

func TestNewHTTPServer_FromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.csv")
	csv := "Player,Pos,Squad,Comp,Min,Gls,Tkl\n" +
		"Rafael Striker,FW,Persija,Liga 1,2500,18,10\n" +
		"Bruno Finisher,FW,Persib,Liga 1,2400,17,12\n" +
		"Felix Wall,DF,Arsenal,Premier League,3000,1,80\n"
	if err := os.WriteFile(path, []byte(csv), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	cfg := config.Config{
		HTTPAddr:           ":0",
		CORSAllowedOrigins: []string{"*"},
		DatasetSource:      config.DatasetSourceCSV,
		DatasetPath:        path,
		DatasetMissing:     player.MissingZero,
		SimilarityScaler:   similarity.ScalerStandard,
		SimilarityMetric:   similarity.MetricCosine,
		SimilarityMode:     similarity.ModeMatrix,
		SimilarityTopN:     2,
		BatchWorkers:       1,
		MCPEnabled:         true,
		MCPPath:            "/mcp",
	}

	server, cleanup, err := NewHTTPServer(context.Background(), cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("new http server: %v", err)
	}
	defer func() { _ = cleanup() }()
	if server.Addr != ":0" || server.Handler == nil {
		t.Fatalf("unexpected server: %+v", server)
	}

	cfg.HTTPAddr = ""
	if _, _, err := NewHTTPServer(context.Background(), cfg, logging.NewNop()); err == nil {
		t.Fatalf("expected error for empty addr")
	}
}
