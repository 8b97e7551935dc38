package httpapi

import (
	"fmt"
	"net/http"

	sonic "github.com/bytedance/sonic"
	"go.opentelemetry.io/otel/attribute"

	"github.com/riskibarqy/moneyball/internal/usecase"
)

func (h *Handler) GenerateNarrative(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GenerateNarrative", attribute.String("kind", r.PathValue("kind")))
	defer span.End()

	kind, err := usecase.ParseNarrativeKind(r.PathValue("kind"))
	if err != nil {
		writeError(ctx, w, err)
		return
	}

	var req narrativeRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}
	if kind == usecase.NarrativeCompare && len(req.Players) != 2 {
		writeError(ctx, w, fmt.Errorf("%w: compare needs exactly two players", usecase.ErrInvalidInput))
		return
	}

	var narrative usecase.Narrative
	target := req.Players[0]
	switch kind {
	case usecase.NarrativeDescribe:
		narrative, err = h.narrativeService.DescribePlayer(ctx, target)
	case usecase.NarrativeScout:
		narrative, err = h.narrativeService.ScoutReport(ctx, target)
	case usecase.NarrativeSummary:
		narrative, err = h.narrativeService.QuickSummary(ctx, target)
	case usecase.NarrativeCompare:
		narrative, err = h.narrativeService.ComparePlayers(ctx, target, req.Players[1])
	case usecase.NarrativeExplain:
		var similar usecase.SimilarPlayers
		similar, err = h.recommendationService.FindSimilar(ctx, usecase.FindSimilarInput{
			Player: target,
			TopN:   req.TopN,
		})
		if err == nil {
			narrative, err = h.narrativeService.ExplainRecommendations(ctx, similar.Target.Name, similar.Results, req.Criteria)
		}
	}
	if err != nil {
		h.logger.WarnContext(ctx, "generate narrative failed", "kind", kind, "players", req.Players, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, narrativeToDTO(narrative))
}

func (h *Handler) ScoutingBoard(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ScoutingBoard")
	defer span.End()

	var req scoutingBoardRequest
	decoder := sonic.ConfigDefault.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	entries, err := h.narrativeService.ScoutingBoard(ctx, req.Players)
	if err != nil {
		h.logger.WarnContext(ctx, "scouting board failed", "players", len(req.Players), "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, boardEntriesToDTO(entries))
}
