package httpapi

import (
	"fmt"
	"net/http"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/moneyball/internal/usecase"
)

func (h *Handler) SimilarityStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SimilarityStatus")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, engineStatusToDTO(h.recommendationService.Status(ctx)))
}

func (h *Handler) PrepareSimilarity(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.PrepareSimilarity")
	defer span.End()

	var req prepareSimilarityRequest
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

	if err := h.recommendationService.Prepare(ctx, usecase.PrepareInput{
		Position:   req.Position,
		MinMinutes: req.MinMinutes,
		Features:   req.Features,
	}); err != nil {
		h.logger.WarnContext(ctx, "prepare similarity failed", "position", req.Position, "min_minutes", req.MinMinutes, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, engineStatusToDTO(h.recommendationService.Status(ctx)))
}

func (h *Handler) BatchSimilarPlayers(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.BatchSimilarPlayers")
	defer span.End()

	var req batchSimilarRequest
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

	items, err := h.recommendationService.BatchSimilar(ctx, req.Players, req.TopN)
	if err != nil {
		h.logger.WarnContext(ctx, "batch similar players failed", "players", len(req.Players), "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, batchItemsToDTO(items))
}
