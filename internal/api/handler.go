package api

import (
	"errors"
	"net/http"

	"github.com/arbes-ai/evaluator/internal/api/middleware"
	"github.com/arbes-ai/evaluator/internal/engine"
	"github.com/arbes-ai/evaluator/internal/models"
	"github.com/emicklei/go-restful/v3"
	"github.com/rs/zerolog"
)

var errMissingDocument = errors.New("document_text is required")

type Handler struct {
	orchestrator *engine.Orchestrator
	logger       *zerolog.Logger
}

func NewHandler(orchestrator *engine.Orchestrator, logger *zerolog.Logger) *Handler {
	return &Handler{orchestrator: orchestrator, logger: logger}
}

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// POST /api/v1/evaluate
// Body: EvaluationRequest
// Returns: CombinedEvaluation
func (h *Handler) Evaluate(req *restful.Request, resp *restful.Response) {
	var evalRequest models.EvaluationRequest
	if err := req.ReadEntity(&evalRequest); err != nil {
		h.logger.Error().Err(err).Msg("Failed to parse request body")
		middleware.HandleError(resp, err, http.StatusBadRequest)
		return
	}

	if evalRequest.DocumentText == "" {
		middleware.HandleError(resp, errMissingDocument, http.StatusBadRequest)
		return
	}

	source := evalRequest.SourceName
	if source == "" {
		source = evalRequest.DocumentID
	}

	h.logger.Info().
		Str("document_id", evalRequest.DocumentID).
		Str("source", source).
		Msg("Start evaluation")

	ctx := req.Request.Context()
	combined, err := h.orchestrator.EvaluateText(ctx, evalRequest.DocumentText, source)
	if err != nil {
		h.logger.Error().Err(err).Str("document_id", evalRequest.DocumentID).Msg("Evaluation failed")
		middleware.HandleError(resp, err, http.StatusInternalServerError)
		return
	}

	h.logger.Info().
		Str("document_id", evalRequest.DocumentID).
		Float64("score", combined.OverallEvaluation.Score).
		Str("rating", combined.OverallEvaluation.Rating).
		Msg("Evaluation complete")

	resp.WriteHeaderAndEntity(http.StatusOK, combined)
}

// Health handler GET /api/v1/health
func (h *Handler) Health(req *restful.Request, resp *restful.Response) {
	resp.WriteHeaderAndEntity(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	})
}
