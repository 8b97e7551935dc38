package postgres

import (
	"strconv"
	"strings"
	"testing"

	"github.com/riskibarqy/moneyball/internal/domain/player"
)

func TestBuildLoadQuery(t *testing.T) {
	query, args, err := buildLoadQuery(DefaultTable, "2024-2025", nil)
	if err != nil {
		t.Fatalf("build load query: %v", err)
	}
	want := "SELECT player, pos, squad, comp, stats FROM player_season_stats WHERE season = $1 ORDER BY id"
	if query != want {
		t.Fatalf("unexpected query:\nwant: %s\ngot:  %s", want, query)
	}
	if len(args) != 1 || args[0] != "2024-2025" {
		t.Fatalf("unexpected args: %+v", args)
	}

	query, args, err = buildLoadQuery("stats.fbref_2024", "", nil)
	if err != nil {
		t.Fatalf("build load query: %v", err)
	}
	if strings.Contains(query, "WHERE") || len(args) != 0 {
		t.Fatalf("expected unfiltered query, got %s %+v", query, args)
	}

	query, args, err = buildLoadQuery(DefaultTable, "2024-2025", []string{"Liga 1", "Serie A"})
	if err != nil {
		t.Fatalf("build load query: %v", err)
	}
	want = "SELECT player, pos, squad, comp, stats FROM player_season_stats WHERE season = $1 AND comp IN ($2, $3) ORDER BY id"
	if query != want || len(args) != 3 || args[2] != "Serie A" {
		t.Fatalf("unexpected competition query %s %+v", query, args)
	}
}

func TestResolveTable(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "", want: DefaultTable},
		{in: "player_season_stats", want: "player_season_stats"},
		{in: "stats.players", want: "stats.players"},
		{in: "players; DROP TABLE x", wantErr: true},
		{in: "1players", wantErr: true},
	}
	for _, tc := range tests {
		got, err := resolveTable(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("resolveTable(%q) = %q, %v", tc.in, got, err)
		}
	}
}

func TestToTable(t *testing.T) {
	rows := []seasonStatsTableModel{
		{Player: "Rafael Striker", Pos: "FW", Squad: "Persija", Comp: "Liga 1", Stats: []byte(`{"Min":2500,"Gls":18,"xG":null}`)},
		{Player: "", Pos: "MF", Stats: []byte(`{"Gls":1}`)},
		{Player: "Felix Wall", Pos: "DF", Squad: "Arsenal", Comp: "Premier League", Stats: []byte(`{"Tkl":80}`)},
		{Player: "No Stats", Pos: "GK"},
	}

	table, err := toTable(rows)
	if err != nil {
		t.Fatalf("to table: %v", err)
	}

	wantColumns := "Player|Pos|Squad|Comp|Gls|Min|Tkl|xG"
	if got := strings.Join(table.Columns, "|"); got != wantColumns {
		t.Fatalf("unexpected columns: %s", got)
	}
	if table.Len() != 3 {
		t.Fatalf("expected 3 records, got=%d", table.Len())
	}

	rafael := table.Records[0]
	if v, ok := rafael.Stat(player.ColumnMinutes); !ok || v != 2500 {
		t.Fatalf("unexpected minutes: %v %v", v, ok)
	}
	if _, ok := rafael.Stat("xG"); ok {
		t.Fatalf("expected null xG to be missing")
	}
	if table.Records[2].Name != "No Stats" || len(table.Records[2].Stats) != 0 {
		t.Fatalf("unexpected record without stats: %+v", table.Records[2])
	}

	_, err = toTable([]seasonStatsTableModel{{Player: "Broken", Stats: []byte(`{"Gls":`)}})
	if err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestBuildUpsertStatements(t *testing.T) {
	records := make([]player.Record, 0, importBatchSize+3)
	for i := 0; i < importBatchSize+1; i++ {
		records = append(records, player.Record{Name: "P" + strconv.Itoa(i), Position: "FW", Stats: map[string]float64{"Gls": 1}})
	}
	records = append(records, player.Record{Name: " "})
	records = append(records, player.Record{Name: "P0", Position: "MF", Stats: map[string]float64{"Gls": 2}})

	statements, err := buildUpsertStatements(DefaultTable, "2024-2025", records)
	if err != nil {
		t.Fatalf("build upsert statements: %v", err)
	}
	if len(statements) != 2 {
		t.Fatalf("expected 2 batches, got=%d", len(statements))
	}
	if statements[0].rows != importBatchSize || statements[1].rows != 1 {
		t.Fatalf("unexpected batch sizes: %d, %d", statements[0].rows, statements[1].rows)
	}
	last := statements[1]
	want := "INSERT INTO player_season_stats (season, player, pos, squad, comp, stats) VALUES ($1, $2, $3, $4, $5, $6) " +
		"ON CONFLICT (season, player, squad) DO UPDATE SET pos = EXCLUDED.pos, comp = EXCLUDED.comp, stats = EXCLUDED.stats, updated_at = NOW()"
	if last.query != want {
		t.Fatalf("unexpected query: %s", last.query)
	}
	if last.args[0] != "2024-2025" || last.args[5] != `{"Gls":1}` {
		t.Fatalf("unexpected args: %+v", last.args)
	}

	first := statements[0]
	if first.args[1] != "P0" || first.args[2] != "MF" || first.args[5] != `{"Gls":2}` {
		t.Fatalf("expected the later duplicate to replace P0 in place, got %+v", first.args[:6])
	}
}
