package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/xpoints/internal/domain/types"
	"github.com/okian/xpoints/pkg/logger"
)

const maxBodyBytes = 1 << 20

// RecalculateHandler handles synchronous recalculations.
type RecalculateHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewRecalculateHandler creates a new recalculation handler.
func NewRecalculateHandler(deps Dependencies, log logger.Logger) *RecalculateHandler {
	return &RecalculateHandler{deps: deps, logger: log}
}

// HandleRecalculate handles POST /v1/xpoints/recalculate. A warning summary
// is still a 200.
func (h *RecalculateHandler) HandleRecalculate(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(w, r)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	sum, err := h.deps.Recalculate(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func decodeRequest(w http.ResponseWriter, r *http.Request) (types.RecalculateRequest, error) {
	var req types.RecalculateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrBadRequest, err)
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}
