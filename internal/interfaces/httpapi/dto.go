package httpapi

import (
	"github.com/riskibarqy/moneyball/internal/domain/player"
	"github.com/riskibarqy/moneyball/internal/domain/similarity"
	"github.com/riskibarqy/moneyball/internal/usecase"
)

type playerDTO struct {
	Name        string             `json:"name"`
	Position    string             `json:"position"`
	Club        string             `json:"club"`
	Competition string             `json:"competition"`
	Stats       map[string]float64 `json:"stats,omitempty"`
}

type similarPlayerDTO struct {
	Rank        int     `json:"rank"`
	Player      string  `json:"player"`
	Position    string  `json:"position"`
	Club        string  `json:"club"`
	Competition string  `json:"competition"`
	Similarity  float64 `json:"similarity"`
}

type similarPlayersDTO struct {
	Target  playerDTO          `json:"target"`
	Mode    string             `json:"mode"`
	Metric  string             `json:"metric"`
	Results []similarPlayerDTO `json:"results"`
}

type comparisonRowDTO struct {
	Stat string  `json:"stat"`
	A    float64 `json:"a"`
	B    float64 `json:"b"`
}

type comparisonDTO struct {
	PlayerA playerDTO          `json:"player_a"`
	PlayerB playerDTO          `json:"player_b"`
	Rows    []comparisonRowDTO `json:"rows"`
}

type batchItemDTO struct {
	Query   string             `json:"query"`
	Found   bool               `json:"found"`
	Results []similarPlayerDTO `json:"results"`
	Error   string             `json:"error,omitempty"`
}

type engineStatusDTO struct {
	State      string   `json:"state"`
	Rows       int      `json:"rows"`
	Features   []string `json:"features"`
	Position   string   `json:"position,omitempty"`
	MinMinutes float64  `json:"min_minutes"`
	Metric     string   `json:"metric"`
	Mode       string   `json:"mode"`
	Positions  []string `json:"positions"`
}

type narrativeDTO struct {
	Kind    string   `json:"kind"`
	Players []string `json:"players"`
	Text    string   `json:"text"`
}

type boardEntryDTO struct {
	Query     string        `json:"query"`
	Narrative *narrativeDTO `json:"narrative,omitempty"`
	Error     string        `json:"error,omitempty"`
}

type prepareSimilarityRequest struct {
	Position   string   `json:"position" validate:"omitempty,max=20"`
	MinMinutes float64  `json:"min_minutes" validate:"gte=0"`
	Features   []string `json:"features" validate:"omitempty,max=64,dive,required"`
}

type batchSimilarRequest struct {
	Players []string `json:"players" validate:"required,min=1,max=50,dive,required"`
	TopN    int      `json:"top_n" validate:"gte=0,lte=100"`
}

type narrativeRequest struct {
	Players  []string `json:"players" validate:"required,min=1,max=2,dive,required"`
	Criteria string   `json:"criteria" validate:"omitempty,max=200"`
	TopN     int      `json:"top_n" validate:"gte=0,lte=100"`
}

type scoutingBoardRequest struct {
	Players []string `json:"players" validate:"required,min=1,max=20,dive,required"`
}

func playerToDTO(r player.Record) playerDTO {
	return playerDTO{
		Name:        r.Name,
		Position:    r.Position,
		Club:        r.Club,
		Competition: r.Competition,
		Stats:       r.Stats,
	}
}

// playerSummaryToDTO leaves the stat map out; search results can be long.
func playerSummaryToDTO(r player.Record) playerDTO {
	out := playerToDTO(r)
	out.Stats = nil
	return out
}

func similarResultsToDTO(results []similarity.Result) []similarPlayerDTO {
	out := make([]similarPlayerDTO, 0, len(results))
	for _, r := range results {
		out = append(out, similarPlayerDTO{
			Rank:        r.Rank,
			Player:      r.Player,
			Position:    r.Position,
			Club:        r.Club,
			Competition: r.Competition,
			Similarity:  r.Similarity,
		})
	}
	return out
}

func similarPlayersToDTO(in usecase.SimilarPlayers) similarPlayersDTO {
	return similarPlayersDTO{
		Target:  playerSummaryToDTO(in.Target),
		Mode:    string(in.Mode),
		Metric:  string(in.Metric),
		Results: similarResultsToDTO(in.Results),
	}
}

func comparisonToDTO(in similarity.Comparison) comparisonDTO {
	rows := make([]comparisonRowDTO, 0, len(in.Rows))
	for _, row := range in.Rows {
		rows = append(rows, comparisonRowDTO{Stat: row.Stat, A: row.A, B: row.B})
	}
	return comparisonDTO{
		PlayerA: playerSummaryToDTO(in.PlayerA),
		PlayerB: playerSummaryToDTO(in.PlayerB),
		Rows:    rows,
	}
}

func batchItemsToDTO(items []usecase.BatchItem) []batchItemDTO {
	out := make([]batchItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, batchItemDTO{
			Query:   item.Query,
			Found:   item.Found,
			Results: similarResultsToDTO(item.Results),
			Error:   item.Error,
		})
	}
	return out
}

func engineStatusToDTO(in usecase.EngineStatus) engineStatusDTO {
	return engineStatusDTO{
		State:      in.State,
		Rows:       in.Rows,
		Features:   in.Features,
		Position:   in.Prepared.Position,
		MinMinutes: in.Prepared.MinMinutes,
		Metric:     string(in.Metric),
		Mode:       string(in.Mode),
		Positions:  in.Positions,
	}
}

func narrativeToDTO(in usecase.Narrative) narrativeDTO {
	return narrativeDTO{
		Kind:    string(in.Kind),
		Players: in.Players,
		Text:    in.Text,
	}
}

func boardEntriesToDTO(entries []usecase.BoardEntry) []boardEntryDTO {
	out := make([]boardEntryDTO, 0, len(entries))
	for _, entry := range entries {
		item := boardEntryDTO{Query: entry.Query, Error: entry.Error}
		if entry.Error == "" {
			n := narrativeToDTO(entry.Narrative)
			item.Narrative = &n
		}
		out = append(out, item)
	}
	return out
}
