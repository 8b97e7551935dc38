package postgres

import (
	"context"
	"strings"

	"github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/moneyball/internal/domain/player"
	qb "github.com/riskibarqy/moneyball/internal/platform/querybuilder"
)

const importBatchSize = 200

var (
	seasonStatsInsertColumns  = []string{"season", "player", "pos", "squad", "comp", "stats"}
	seasonStatsConflictKey    = []string{"season", "player", "squad"}
	seasonStatsUpdatedColumns = []string{"pos", "comp", "stats"}
)

// Importer upserts a season table into Postgres.
type Importer struct {
	db    *sqlx.DB
	table string
}

func NewImporter(db *sqlx.DB, table string) (*Importer, error) {
	resolved, err := resolveTable(table)
	if err != nil {
		return nil, err
	}
	return &Importer{db: db, table: resolved}, nil
}

// Save writes every record of t under season in one transaction and
// returns the number of rows written.
func (i *Importer) Save(ctx context.Context, season string, t player.Table) (int, error) {
	season = strings.TrimSpace(season)
	if season == "" {
		return 0, crerr.New("season is required")
	}
	statements, err := buildUpsertStatements(i.table, season, t.Records)
	if err != nil {
		return 0, err
	}

	tx, err := i.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, crerr.Wrap(err, "begin import transaction")
	}
	defer func() { _ = tx.Rollback() }()

	written := 0
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			return 0, crerr.Wrapf(err, "upsert season stats batch at row %d", written)
		}
		written += stmt.rows
	}
	if err := tx.Commit(); err != nil {
		return 0, crerr.Wrap(err, "commit import transaction")
	}
	return written, nil
}

type upsertStatement struct {
	query string
	args  []any
	rows  int
}

func buildUpsertStatements(table, season string, records []player.Record) ([]upsertStatement, error) {
	records = uniqueRecords(records)
	out := make([]upsertStatement, 0, len(records)/importBatchSize+1)
	for start := 0; start < len(records); start += importBatchSize {
		end := min(start+importBatchSize, len(records))

		builder := qb.InsertInto(table).
			Columns(seasonStatsInsertColumns...).
			OnConflict(seasonStatsConflictKey...).
			DoUpdate(seasonStatsUpdatedColumns...).
			Touch("updated_at")
		for _, r := range records[start:end] {
			stats, err := sonic.Marshal(r.Stats)
			if err != nil {
				return nil, crerr.Wrapf(err, "encode stats of %q", r.Name)
			}
			builder.Values(season, r.Name, r.Position, r.Club, r.Competition, string(stats))
		}

		query, args, err := builder.ToSQL()
		if err != nil {
			return nil, crerr.Wrap(err, "build upsert season stats query")
		}
		out = append(out, upsertStatement{query: query, args: args, rows: builder.Rows()})
	}
	return out, nil
}

// uniqueRecords drops invalid rows and keeps the last row per player and
// club. Postgres rejects an upsert that touches the same key twice.
func uniqueRecords(records []player.Record) []player.Record {
	type key struct{ name, club string }
	index := make(map[key]int, len(records))
	out := make([]player.Record, 0, len(records))
	for _, r := range records {
		if r.Validate() != nil {
			continue
		}
		k := key{name: r.Name, club: r.Club}
		if i, ok := index[k]; ok {
			out[i] = r
			continue
		}
		index[k] = len(out)
		out = append(out, r)
	}
	return out
}
