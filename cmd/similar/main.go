// Command similar prints the players whose season profile is closest to a
// given player, straight from a CSV export.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/moneyball/internal/app"
	"github.com/riskibarqy/moneyball/internal/config"
	"github.com/riskibarqy/moneyball/internal/domain/player"
	"github.com/riskibarqy/moneyball/internal/domain/similarity"
	"github.com/riskibarqy/moneyball/internal/infrastructure/dataset/csvsource"
	"github.com/riskibarqy/moneyball/internal/platform/logging"
	"github.com/riskibarqy/moneyball/internal/usecase"
)

type options struct {
	dataset     string
	player      string
	search      string
	compare     string
	topN        int
	neighbors   int
	scaler      string
	metric      string
	mode        string
	missing     string
	minMinutes  float64
	position    string
	features    string
	filterPos   string
	competition string
	asJSON      bool
	verbose     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "similar: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("similar", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.dataset, "dataset", "data/players.csv", "season CSV export")
	fs.StringVar(&opts.player, "player", "", "player name or fragment to find similar players for")
	fs.StringVar(&opts.search, "search", "", "list players whose name contains this instead of ranking")
	fs.StringVar(&opts.compare, "compare", "", "second player; prints a side-by-side stat comparison with -player")
	fs.IntVar(&opts.topN, "top-n", 10, "number of similar players")
	fs.IntVar(&opts.neighbors, "neighbors", similarity.DefaultNeighbors, "neighbour count of the index mode")
	fs.StringVar(&opts.scaler, "scaler", string(similarity.ScalerStandard), "standard or minmax")
	fs.StringVar(&opts.metric, "metric", string(similarity.MetricCosine), "cosine or euclidean")
	fs.StringVar(&opts.mode, "mode", string(similarity.ModeMatrix), "matrix or index")
	fs.StringVar(&opts.missing, "missing", string(player.MissingKeep), "missing value strategy: keep, zero, mean, median or drop")
	fs.Float64Var(&opts.minMinutes, "min-minutes", 0, "drop players below this many minutes")
	fs.StringVar(&opts.position, "position", "", "prepare only players of this primary position (FW, MF, DF)")
	fs.StringVar(&opts.features, "features", "", "comma separated feature columns, overrides the position defaults")
	fs.StringVar(&opts.filterPos, "filter-position", "", "keep only results whose position contains this")
	fs.StringVar(&opts.competition, "competition", "", "keep only results from this competition")
	fs.BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	fs.BoolVar(&opts.verbose, "v", false, "log dataset and engine progress to stderr")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.player == "" && opts.search == "" && fs.NArg() > 0 {
		opts.player = strings.Join(fs.Args(), " ")
	}
	if strings.TrimSpace(opts.player) == "" && strings.TrimSpace(opts.search) == "" {
		fs.Usage()
		return options{}, fmt.Errorf("-player or -search is required")
	}
	if opts.compare != "" && opts.player == "" {
		return options{}, fmt.Errorf("-compare needs -player")
	}
	return opts, nil
}

func buildConfig(opts options) (config.Config, error) {
	cfg := config.Config{
		DatasetSource:        config.DatasetSourceCSV,
		DatasetPath:          opts.dataset,
		SimilarityMinMinutes: opts.minMinutes,
		SimilarityPosition:   strings.TrimSpace(opts.position),
		SimilarityTopN:       opts.topN,
		SimilarityNeighbors:  opts.neighbors,
		BatchWorkers:         1,
	}
	if opts.features != "" {
		for _, f := range strings.Split(opts.features, ",") {
			if f = strings.TrimSpace(f); f != "" {
				cfg.SimilarityFeatures = append(cfg.SimilarityFeatures, f)
			}
		}
	}

	var err error
	if cfg.SimilarityScaler, err = similarity.ParseScaler(opts.scaler); err != nil {
		return config.Config{}, err
	}
	if cfg.SimilarityMetric, err = similarity.ParseMetric(opts.metric); err != nil {
		return config.Config{}, err
	}
	if cfg.SimilarityMode, err = similarity.ParseMode(opts.mode); err != nil {
		return config.Config{}, err
	}
	if cfg.DatasetMissing, err = player.ParseMissingStrategy(opts.missing); err != nil {
		return config.Config{}, err
	}
	if cfg.SimilarityTopN <= 0 {
		return config.Config{}, fmt.Errorf("-top-n must be > 0")
	}
	if cfg.SimilarityNeighbors <= 0 {
		return config.Config{}, fmt.Errorf("-neighbors must be > 0")
	}
	if cfg.SimilarityMinMinutes < 0 {
		return config.Config{}, fmt.Errorf("-min-minutes must be >= 0")
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	logger := logging.NewNop()
	if opts.verbose {
		logger = logging.New(logging.Options{Level: logging.LevelDebug, Format: logging.FormatConsole, Output: stderr})
	}
	defer func() { _ = logger.Sync() }()

	table, err := app.LoadDataset(ctx, csvsource.New(cfg.DatasetPath), cfg.DatasetMissing, logger)
	if err != nil {
		return err
	}
	services, err := app.NewServices(ctx, cfg, table, logger)
	if err != nil {
		return err
	}
	recommendations := services.Recommendations

	switch {
	case opts.search != "":
		players, err := recommendations.SearchPlayers(ctx, usecase.SearchInput{
			Query:       opts.search,
			Competition: opts.competition,
		})
		if err != nil {
			return err
		}
		return printPlayers(stdout, players, opts.asJSON)
	case opts.compare != "":
		comparison, err := recommendations.ComparePlayers(ctx, opts.player, opts.compare)
		if err != nil {
			return err
		}
		return printComparison(stdout, comparison, opts.asJSON)
	default:
		similar, err := recommendations.FindSimilar(ctx, usecase.FindSimilarInput{
			Player:      opts.player,
			TopN:        opts.topN,
			Position:    opts.filterPos,
			Competition: opts.competition,
		})
		if err != nil {
			return err
		}
		return printSimilar(stdout, similar, opts.asJSON)
	}
}

type similarRowJSON struct {
	Rank        int     `json:"rank"`
	Player      string  `json:"player"`
	Position    string  `json:"position"`
	Club        string  `json:"club"`
	Competition string  `json:"competition"`
	Similarity  float64 `json:"similarity"`
}

type similarJSON struct {
	Target  string           `json:"target"`
	Club    string           `json:"club"`
	Mode    string           `json:"mode"`
	Metric  string           `json:"metric"`
	Results []similarRowJSON `json:"results"`
}

func printSimilar(w io.Writer, similar usecase.SimilarPlayers, asJSON bool) error {
	if asJSON {
		results := make([]similarRowJSON, 0, len(similar.Results))
		for _, r := range similar.Results {
			results = append(results, similarRowJSON{
				Rank:        r.Rank,
				Player:      r.Player,
				Position:    r.Position,
				Club:        r.Club,
				Competition: r.Competition,
				Similarity:  r.Similarity,
			})
		}
		return writeJSON(w, similarJSON{
			Target:  similar.Target.Name,
			Club:    similar.Target.Club,
			Mode:    string(similar.Mode),
			Metric:  string(similar.Metric),
			Results: results,
		})
	}

	fmt.Fprintf(w, "Players similar to %s (%s, %s) [%s/%s]\n\n",
		similar.Target.Name, similar.Target.Club, similar.Target.Position, similar.Mode, similar.Metric)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tPLAYER\tPOS\tCLUB\tCOMPETITION\tSIMILARITY")
	for _, r := range similar.Results {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.4f\n", r.Rank, r.Player, r.Position, r.Club, r.Competition, r.Similarity)
	}
	return tw.Flush()
}

type playerJSON struct {
	Name        string `json:"name"`
	Position    string `json:"position"`
	Club        string `json:"club"`
	Competition string `json:"competition"`
}

func printPlayers(w io.Writer, players []player.Record, asJSON bool) error {
	if asJSON {
		rows := make([]playerJSON, 0, len(players))
		for _, p := range players {
			rows = append(rows, playerJSON{Name: p.Name, Position: p.Position, Club: p.Club, Competition: p.Competition})
		}
		return writeJSON(w, rows)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PLAYER\tPOS\tCLUB\tCOMPETITION")
	for _, p := range players {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Name, p.Position, p.Club, p.Competition)
	}
	return tw.Flush()
}

type comparisonRowJSON struct {
	Stat string  `json:"stat"`
	A    float64 `json:"a"`
	B    float64 `json:"b"`
}

type comparisonJSON struct {
	PlayerA string              `json:"player_a"`
	PlayerB string              `json:"player_b"`
	Rows    []comparisonRowJSON `json:"rows"`
}

func printComparison(w io.Writer, comparison similarity.Comparison, asJSON bool) error {
	if asJSON {
		rows := make([]comparisonRowJSON, 0, len(comparison.Rows))
		for _, row := range comparison.Rows {
			rows = append(rows, comparisonRowJSON{Stat: row.Stat, A: row.A, B: row.B})
		}
		return writeJSON(w, comparisonJSON{
			PlayerA: comparison.PlayerA.Name,
			PlayerB: comparison.PlayerB.Name,
			Rows:    rows,
		})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "STAT\t%s\t%s\n", comparison.PlayerA.Name, comparison.PlayerB.Name)
	for _, row := range comparison.Rows {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\n", row.Stat, row.A, row.B)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	raw, err := sonic.ConfigDefault.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}
