package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/moneyball/internal/usecase"
)

const defaultSuggestionLimit = 5

func (h *Handler) SearchPlayers(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SearchPlayers")
	defer span.End()

	query := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	players, err := h.recommendationService.SearchPlayers(ctx, usecase.SearchInput{
		Query:       strings.TrimSpace(query.Get("q")),
		Club:        strings.TrimSpace(query.Get("club")),
		Competition: strings.TrimSpace(query.Get("competition")),
		Limit:       limit,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "search players failed", "query", query.Get("q"), "error", err)
		writeError(ctx, w, err)
		return
	}

	items := make([]playerDTO, 0, len(players))
	for _, p := range players {
		items = append(items, playerSummaryToDTO(p))
	}
	writeSuccess(ctx, w, http.StatusOK, items)
}

func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetPlayer", attribute.String("player", name))
	defer span.End()

	item, err := h.recommendationService.GetPlayer(ctx, name)
	if err != nil {
		h.logger.WarnContext(ctx, "get player failed", "player", name, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, playerToDTO(item))
}

func (h *Handler) FindSimilarPlayers(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	ctx, span := startSpan(r.Context(), "httpapi.Handler.FindSimilarPlayers", attribute.String("player", name))
	defer span.End()

	topN, err := queryInt(r, "top_n")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if topN < 0 {
		writeError(ctx, w, fmt.Errorf("%w: top_n must be positive integer", usecase.ErrInvalidInput))
		return
	}

	query := r.URL.Query()
	result, err := h.recommendationService.FindSimilar(ctx, usecase.FindSimilarInput{
		Player:      name,
		TopN:        topN,
		Mode:        query.Get("mode"),
		Metric:      query.Get("metric"),
		Position:    query.Get("position"),
		Competition: query.Get("competition"),
	})
	if err != nil {
		h.logger.WarnContext(ctx, "find similar players failed", "player", name, "top_n", topN, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, similarPlayersToDTO(result))
}

func (h *Handler) SuggestPlayerNames(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SuggestPlayerNames")
	defer span.End()

	name := strings.TrimSpace(r.PathValue("name"))
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	if limit <= 0 {
		limit = defaultSuggestionLimit
	}

	writeSuccess(ctx, w, http.StatusOK, h.recommendationService.SuggestNames(ctx, name, limit))
}

func (h *Handler) ComparePlayers(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ComparePlayers")
	defer span.End()

	nameA := strings.TrimSpace(r.URL.Query().Get("a"))
	nameB := strings.TrimSpace(r.URL.Query().Get("b"))
	if nameA == "" || nameB == "" {
		writeError(ctx, w, fmt.Errorf("%w: query parameters a and b are required", usecase.ErrInvalidInput))
		return
	}

	comparison, err := h.recommendationService.ComparePlayers(ctx, nameA, nameB)
	if err != nil {
		h.logger.WarnContext(ctx, "compare players failed", "player_a", nameA, "player_b", nameB, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, comparisonToDTO(comparison))
}

func (h *Handler) ListCompetitions(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListCompetitions")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.recommendationService.ListCompetitions(ctx))
}

func (h *Handler) ListClubs(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListClubs")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.recommendationService.ListClubs(ctx))
}
