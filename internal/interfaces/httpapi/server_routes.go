package httpapi

import (
	"net/http"
	"strings"
)

func handle(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, route(pattern, h))
}

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	handle(mux, "GET /healthz", handler.Healthz)
}

func registerPlayerRoutes(mux *http.ServeMux, handler *Handler) {
	handle(mux, "GET /v1/players", handler.SearchPlayers)
	handle(mux, "GET /v1/players/compare", handler.ComparePlayers)
	handle(mux, "GET /v1/players/{name}", handler.GetPlayer)
	handle(mux, "GET /v1/players/{name}/similar", handler.FindSimilarPlayers)
	handle(mux, "GET /v1/players/{name}/suggestions", handler.SuggestPlayerNames)
	handle(mux, "GET /v1/competitions", handler.ListCompetitions)
	handle(mux, "GET /v1/clubs", handler.ListClubs)
}

func registerSimilarityRoutes(mux *http.ServeMux, handler *Handler) {
	handle(mux, "GET /v1/similarity/status", handler.SimilarityStatus)
	handle(mux, "POST /v1/similarity/prepare", handler.PrepareSimilarity)
	handle(mux, "POST /v1/similarity/batch", handler.BatchSimilarPlayers)
}

func registerNarrativeRoutes(mux *http.ServeMux, handler *Handler) {
	// The literal segment wins over {kind}, so "board" never reaches GenerateNarrative.
	handle(mux, "POST /v1/narratives/board", handler.ScoutingBoard)
	handle(mux, "POST /v1/narratives/{kind}", handler.GenerateNarrative)
}

func registerMCPRoutes(mux *http.ServeMux, mcpHandler http.Handler, path string) {
	if mcpHandler == nil {
		return
	}
	path = strings.TrimSpace(path)
	if path == "" {
		path = "/mcp"
	}
	mux.Handle(path, route("MCP "+path, mcpHandler.ServeHTTP))
}
