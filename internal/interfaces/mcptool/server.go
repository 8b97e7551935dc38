// Package mcptool exposes the similarity usecases as MCP tools so agent
// clients can ask "who plays like X" without going through the REST API.
package mcptool

import (
	"context"
	"fmt"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/riskibarqy/moneyball/internal/platform/logging"
	"github.com/riskibarqy/moneyball/internal/usecase"
)

const serverName = "moneyball-mcp"

type FindSimilarArgs struct {
	Player      string `json:"player" jsonschema:"Player name or a fragment of it (required)"`
	TopN        int    `json:"top_n,omitempty" jsonschema:"Number of similar players to return (0 = server default)"`
	Mode        string `json:"mode,omitempty" jsonschema:"matrix or index (empty = server default)"`
	Metric      string `json:"metric,omitempty" jsonschema:"cosine or euclidean (empty = server default)"`
	Position    string `json:"position,omitempty" jsonschema:"Keep only results whose position contains this, e.g. FW"`
	Competition string `json:"competition,omitempty" jsonschema:"Keep only results from this competition"`
}

type SearchPlayersArgs struct {
	Query       string `json:"query" jsonschema:"Case-insensitive name fragment (required)"`
	Club        string `json:"club,omitempty" jsonschema:"Club name fragment"`
	Competition string `json:"competition,omitempty" jsonschema:"Competition name fragment"`
	Limit       int    `json:"limit,omitempty" jsonschema:"Maximum rows (default 100)"`
}

type ComparePlayersArgs struct {
	PlayerA string `json:"player_a" jsonschema:"First player (required)"`
	PlayerB string `json:"player_b" jsonschema:"Second player (required)"`
}

type ListCompetitionsArgs struct{}

type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Tools binds MCP tool handlers to the recommendation usecase.
type Tools struct {
	recommendations *usecase.RecommendationService
	logger          *logging.Logger
	registry        []ToolInfo
}

// NewServer registers every tool on a fresh MCP server.
func NewServer(recommendations *usecase.RecommendationService, version string, logger *logging.Logger) (*mcp.Server, *Tools) {
	if logger == nil {
		logger = logging.Default()
	}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: version,
	}, nil)

	tools := &Tools{
		recommendations: recommendations,
		logger:          logger,
		registry:        make([]ToolInfo, 0, 4),
	}

	addTool(server, tools, &mcp.Tool{
		Name:        "find_similar_players",
		Description: "Rank the players whose statistical profile is closest to the given player",
	}, tools.FindSimilarPlayers)
	addTool(server, tools, &mcp.Tool{
		Name:        "search_players",
		Description: "Find players by name fragment, optionally narrowed by club and competition",
	}, tools.SearchPlayers)
	addTool(server, tools, &mcp.Tool{
		Name:        "compare_players",
		Description: "Side-by-side values of two players over the prepared feature list",
	}, tools.ComparePlayers)
	addTool(server, tools, &mcp.Tool{
		Name:        "list_competitions",
		Description: "Distinct competitions in the loaded season",
	}, tools.ListCompetitions)

	return server, tools
}

// NewHandler serves server over streamable HTTP with plain JSON responses.
func NewHandler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, &mcp.StreamableHTTPOptions{JSONResponse: true})
}

func (t *Tools) Registry() []ToolInfo {
	return append([]ToolInfo(nil), t.registry...)
}

func addTool[T any](server *mcp.Server, tools *Tools, tool *mcp.Tool, handler func(context.Context, *mcp.CallToolRequest, T) (*mcp.CallToolResult, any, error)) {
	tools.registry = append(tools.registry, ToolInfo{Name: tool.Name, Description: tool.Description})
	mcp.AddTool(server, tool, handler)
}

func (t *Tools) FindSimilarPlayers(ctx context.Context, _ *mcp.CallToolRequest, args FindSimilarArgs) (*mcp.CallToolResult, any, error) {
	result, err := t.recommendations.FindSimilar(ctx, usecase.FindSimilarInput{
		Player:      args.Player,
		TopN:        args.TopN,
		Mode:        args.Mode,
		Metric:      args.Metric,
		Position:    args.Position,
		Competition: args.Competition,
	})
	if err != nil {
		t.logger.WarnContext(ctx, "mcp find similar players failed", "player", args.Player, "error", err)
		return toolError(err), nil, nil
	}

	rows := make([]similarRow, 0, len(result.Results))
	for _, r := range result.Results {
		rows = append(rows, similarRow{
			Rank:        r.Rank,
			Player:      r.Player,
			Position:    r.Position,
			Club:        r.Club,
			Competition: r.Competition,
			Similarity:  r.Similarity,
		})
	}
	return toolJSON(similarOutput{
		Target:  result.Target.Name,
		Mode:    string(result.Mode),
		Metric:  string(result.Metric),
		Results: rows,
	})
}

func (t *Tools) SearchPlayers(ctx context.Context, _ *mcp.CallToolRequest, args SearchPlayersArgs) (*mcp.CallToolResult, any, error) {
	players, err := t.recommendations.SearchPlayers(ctx, usecase.SearchInput{
		Query:       args.Query,
		Club:        args.Club,
		Competition: args.Competition,
		Limit:       args.Limit,
	})
	if err != nil {
		t.logger.WarnContext(ctx, "mcp search players failed", "query", args.Query, "error", err)
		return toolError(err), nil, nil
	}

	rows := make([]playerRow, 0, len(players))
	for _, p := range players {
		rows = append(rows, playerRow{
			Name:        p.Name,
			Position:    p.Position,
			Club:        p.Club,
			Competition: p.Competition,
		})
	}
	return toolJSON(rows)
}

func (t *Tools) ComparePlayers(ctx context.Context, _ *mcp.CallToolRequest, args ComparePlayersArgs) (*mcp.CallToolResult, any, error) {
	comparison, err := t.recommendations.ComparePlayers(ctx, args.PlayerA, args.PlayerB)
	if err != nil {
		t.logger.WarnContext(ctx, "mcp compare players failed", "player_a", args.PlayerA, "player_b", args.PlayerB, "error", err)
		return toolError(err), nil, nil
	}

	out := compareOutput{
		PlayerA: comparison.PlayerA.Name,
		PlayerB: comparison.PlayerB.Name,
		Stats:   make([]compareRow, 0, len(comparison.Rows)),
	}
	for _, row := range comparison.Rows {
		out.Stats = append(out.Stats, compareRow{Stat: row.Stat, A: row.A, B: row.B})
	}
	return toolJSON(out)
}

func (t *Tools) ListCompetitions(ctx context.Context, _ *mcp.CallToolRequest, _ ListCompetitionsArgs) (*mcp.CallToolResult, any, error) {
	return toolJSON(t.recommendations.ListCompetitions(ctx))
}

type similarRow struct {
	Rank        int     `json:"rank"`
	Player      string  `json:"player"`
	Position    string  `json:"position"`
	Club        string  `json:"club"`
	Competition string  `json:"competition"`
	Similarity  float64 `json:"similarity"`
}

type similarOutput struct {
	Target  string       `json:"target"`
	Mode    string       `json:"mode"`
	Metric  string       `json:"metric"`
	Results []similarRow `json:"results"`
}

type playerRow struct {
	Name        string `json:"name"`
	Position    string `json:"position"`
	Club        string `json:"club"`
	Competition string `json:"competition"`
}

type compareRow struct {
	Stat string  `json:"stat"`
	A    float64 `json:"a"`
	B    float64 `json:"b"`
}

type compareOutput struct {
	PlayerA string       `json:"player_a"`
	PlayerB string       `json:"player_b"`
	Stats   []compareRow `json:"stats"`
}

func toolJSON(v any) (*mcp.CallToolResult, any, error) {
	raw, err := sonic.ConfigDefault.MarshalIndent(v, "", "  ")
	if err != nil {
		return toolError(err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(raw)},
		},
	}, nil, nil
}

func toolError(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("error: %v", err)},
		},
	}
}
