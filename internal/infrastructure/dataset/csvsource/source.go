package csvsource

import (
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/moneyball/internal/domain/player"
)

// textColumns are read verbatim; every other column is numeric.
var textColumns = map[string]struct{}{
	player.ColumnName:        {},
	player.ColumnPosition:    {},
	player.ColumnClub:        {},
	player.ColumnCompetition: {},
	"Nation":                 {},
	"Age":                    {},
	"Born":                   {},
}

// Source reads an FBref style season export with a header row.
type Source struct {
	path string
}

func New(path string) *Source {
	return &Source{path: path}
}

func (s *Source) Load(ctx context.Context) (player.Table, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return player.Table{}, crerr.Wrapf(err, "open dataset %s", s.path)
	}
	defer f.Close()

	table, err := Read(ctx, f)
	if err != nil {
		return player.Table{}, crerr.Wrapf(err, "read dataset %s", s.path)
	}
	return table, nil
}

// Read parses CSV rows into a table. Blank or non-numeric cells of numeric
// columns are missing values. Rows without a player name are skipped.
func Read(ctx context.Context, r io.Reader) (player.Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return player.Table{}, crerr.New("dataset is empty")
	}
	if err != nil {
		return player.Table{}, crerr.Wrap(err, "read header")
	}
	columns := uniqueColumns(header)
	if !slices.Contains(columns, player.ColumnName) {
		return player.Table{}, crerr.Newf("dataset has no %q column", player.ColumnName)
	}

	table := player.Table{Columns: columns}
	for line := 2; ; line++ {
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return player.Table{}, err
			}
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return player.Table{}, crerr.Wrapf(err, "read line %d", line)
		}

		record := parseRow(columns, row)
		if record.Validate() != nil {
			continue
		}
		table.Records = append(table.Records, record)
	}
	return table, nil
}

func parseRow(columns, row []string) player.Record {
	record := player.Record{Stats: make(map[string]float64, len(columns))}
	for i, col := range columns {
		if i >= len(row) {
			break
		}
		cell := strings.TrimSpace(row[i])
		switch col {
		case player.ColumnName:
			record.Name = cell
			continue
		case player.ColumnPosition:
			record.Position = cell
			continue
		case player.ColumnClub:
			record.Club = cell
			continue
		case player.ColumnCompetition:
			record.Competition = cell
			continue
		}
		if _, text := textColumns[col]; text {
			continue
		}
		if v, ok := parseNumber(cell); ok {
			record.Stats[col] = v
		}
	}
	return record
}

// parseNumber accepts thousands separators as FBref prints minutes with
// them ("2,345"). NaN and infinities count as missing.
func parseNumber(cell string) (float64, bool) {
	if cell == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// uniqueColumns renames repeated headers to "name.1", "name.2" so both
// values survive.
func uniqueColumns(header []string) []string {
	out := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}
