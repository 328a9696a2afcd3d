// Package handlers contains the HTTP handler implementations for the
// raincheck API: the prediction pipeline endpoint and the extraction debug
// endpoint.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"raincheck/internal/core"
	"raincheck/internal/external"
	"raincheck/internal/intent"
	"raincheck/internal/predict"
	"raincheck/internal/types"
)

// Predictor runs the full resolution pipeline. Implemented by
// predict.Service; narrowed to an interface for handler tests.
type Predictor interface {
	Predict(ctx context.Context, req predict.Request) (types.PredictionResult, error)
}

// ModelCompleter is the slice of the model client the parse endpoint needs:
// the raw completion call, without fallback semantics.
type ModelCompleter interface {
	Complete(ctx context.Context, query string) (string, error)
}

// PredictHandler serves the /v1/predict and /v1/parse endpoints.
type PredictHandler struct {
	predictor Predictor
	model     ModelCompleter
	validator *core.Validator
	logger    *slog.Logger
}

// NewPredictHandler creates a PredictHandler with the provided dependencies.
func NewPredictHandler(
	predictor Predictor,
	model ModelCompleter,
	validator *core.Validator,
	logger *slog.Logger,
) *PredictHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PredictHandler{
		predictor: predictor,
		model:     model,
		validator: validator,
		logger:    logger,
	}
}

// RegisterRoutes mounts the handler's endpoints on a v1 router group.
func (h *PredictHandler) RegisterRoutes(r chi.Router) {
	r.Post("/predict", h.HandlePredict)
	r.Post("/parse", h.HandleParse)
}

// predictRequest is the wire shape of a prediction request. All fields are
// optional individually, but the request must carry either a query or a full
// coordinate pair to be resolvable.
type predictRequest struct {
	Query    string   `json:"query"`
	Lat      *float64 `json:"lat" validate:"omitempty,min=-90,max=90"`
	Lon      *float64 `json:"lon" validate:"omitempty,min=-180,max=180"`
	Date     string   `json:"date"`
	Activity string   `json:"activity"`
}

// HandlePredict runs one pass of the resolution pipeline.
func (h *PredictHandler) HandlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	// A half-specified coordinate pair is rejected up front rather than
	// silently falling back to geocoding.
	if (req.Lat == nil) != (req.Lon == nil) {
		code := types.ErrCodeValidationInvalidLat
		if req.Lat != nil {
			code = types.ErrCodeValidationInvalidLon
		}
		core.Error(w, r, types.NewAppError(code, "lat and lon must be provided together", nil))
		return
	}

	if req.Date != "" && intent.NormalizeDateISO(req.Date) == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationInvalidDate,
			"date must be an ISO calendar day (YYYY-MM-DD) or a recognizable date",
			nil,
		))
		return
	}

	result, err := h.predictor.Predict(r.Context(), predict.Request{
		Query:    strings.TrimSpace(req.Query),
		Lat:      req.Lat,
		Lon:      req.Lon,
		Date:     req.Date,
		Activity: strings.ToLower(strings.TrimSpace(req.Activity)),
	})
	if err != nil {
		// Upstream degradation is absorbed into the blend before it reaches
		// this point; a propagated upstream code here is a pipeline failure
		// and reads as 500, not 502. The parse endpoint keeps 502.
		var appErr *types.AppError
		if errors.As(err, &appErr) && strings.HasPrefix(string(appErr.Code), "upstream_") {
			err = types.NewAppError(types.ErrCodeInternalUnexpected, "prediction failed", err)
		}
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, result)
}

// parseRequest is the wire shape of an extraction debug request.
type parseRequest struct {
	Query string `json:"query"`
}

// parseResponse exposes each stage of the extraction for inspection: the raw
// model content, its projection into intent fields, and the normalized form
// the pipeline would consume.
type parseResponse struct {
	ModelContent string             `json:"model_content"`
	ModelParsed  types.ParsedIntent `json:"model_parsed"`
	Normalized   types.ParsedIntent `json:"normalized"`
}

// HandleParse runs only the model extraction, with no fallback and no
// geocoding. Unlike the predict path, model failures surface here: that is
// the point of the endpoint.
func (h *PredictHandler) HandleParse(w http.ResponseWriter, r *http.Request) {
	var req parseRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidationMissingQuery,
			"query is required",
			nil,
		))
		return
	}

	content, err := h.model.Complete(r.Context(), query)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	raw, err := external.ParseModelContent(content)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	parsed, err := external.ProjectIntent(raw)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	normalized := types.ParsedIntent{
		Location: intent.SanitizeLocation(parsed.Location),
		DateISO:  intent.NormalizeDateISO(parsed.DateISO),
		Activity: parsed.Activity,
	}

	core.JSON(w, r, http.StatusOK, parseResponse{
		ModelContent: content,
		ModelParsed:  parsed,
		Normalized:   normalized,
	})
}
