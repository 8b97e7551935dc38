package postgres

import (
	"context"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/moneyball/internal/domain/player"
	qb "github.com/riskibarqy/moneyball/internal/platform/querybuilder"
)

const DefaultTable = "player_season_stats"

var seasonStatsSelectColumns = []string{
	"player",
	"pos",
	"squad",
	"comp",
	"stats",
}

// Source loads one season snapshot from a player_season_stats style table.
// An empty season loads every row; an empty competition list loads every
// competition.
type Source struct {
	db           *sqlx.DB
	table        string
	season       string
	competitions []string
	timeout      time.Duration
}

type Options struct {
	Table        string
	Season       string
	Competitions []string
	Timeout      time.Duration
}

func NewSource(db *sqlx.DB, opts Options) (*Source, error) {
	table, err := resolveTable(opts.Table)
	if err != nil {
		return nil, err
	}
	return &Source{
		db:           db,
		table:        table,
		season:       opts.Season,
		competitions: append([]string(nil), opts.Competitions...),
		timeout:      opts.Timeout,
	}, nil
}

func (s *Source) Load(ctx context.Context) (player.Table, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	query, args, err := buildLoadQuery(s.table, s.season, s.competitions)
	if err != nil {
		return player.Table{}, crerr.Wrap(err, "build select season stats query")
	}

	var rows []seasonStatsTableModel
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return player.Table{}, crerr.Wrap(err, "select season stats")
	}
	return toTable(rows)
}

func buildLoadQuery(table, season string, competitions []string) (string, []any, error) {
	builder := qb.Select(seasonStatsSelectColumns...).From(table)
	if season != "" {
		builder = builder.Where(qb.Eq("season", season))
	}
	if len(competitions) > 0 {
		builder = builder.Where(qb.In("comp", competitions))
	}
	return builder.OrderBy("id").ToSQL()
}

// toTable decodes rows into a table whose columns are the identity columns
// followed by every stat key seen, sorted. JSON nulls are missing values.
func toTable(rows []seasonStatsTableModel) (player.Table, error) {
	records := make([]player.Record, 0, len(rows))
	statColumns := make(map[string]struct{})
	for _, row := range rows {
		var raw map[string]*float64
		if len(row.Stats) > 0 {
			if err := sonic.Unmarshal(row.Stats, &raw); err != nil {
				return player.Table{}, crerr.Wrapf(err, "decode stats of %q", row.Player)
			}
		}

		record := player.Record{
			Name:        row.Player,
			Position:    row.Pos,
			Club:        row.Squad,
			Competition: row.Comp,
			Stats:       make(map[string]float64, len(raw)),
		}
		for key, value := range raw {
			statColumns[key] = struct{}{}
			if value != nil {
				record.Stats[key] = *value
			}
		}
		if record.Validate() != nil {
			continue
		}
		records = append(records, record)
	}

	stats := make([]string, 0, len(statColumns))
	for key := range statColumns {
		stats = append(stats, key)
	}
	sort.Strings(stats)

	columns := []string{
		player.ColumnName,
		player.ColumnPosition,
		player.ColumnClub,
		player.ColumnCompetition,
	}
	return player.Table{
		Columns: append(columns, stats...),
		Records: records,
	}, nil
}

func resolveTable(table string) (string, error) {
	if table == "" {
		return DefaultTable, nil
	}
	if !qb.ValidIdentifier(table) {
		return "", crerr.Newf("invalid table name %q", table)
	}
	return table, nil
}
