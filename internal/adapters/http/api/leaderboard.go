package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/xpoints/internal/domain/engine"
	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/types"
	"github.com/okian/xpoints/pkg/logger"
)

// LeaderboardReader loads the stored table of a dataset.
type LeaderboardReader interface {
	Leaderboard(ctx context.Context, userID, dataset string) (*leaderboard.Table, error)
}

// LeaderboardHandler handles leaderboard requests.
type LeaderboardHandler struct {
	deps     LeaderboardReader
	maxLimit int
	logger   logger.Logger
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardReader, maxLimit int, log logger.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps, maxLimit: maxLimit, logger: log}
}

type leaderboardResponse struct {
	UserID  string                 `json:"user_id"`
	Dataset string                 `json:"dataset"`
	View    string                 `json:"view"`
	Total   int                    `json:"total"`
	Rows    []types.LeaderboardRow `json:"rows,omitempty"`
	Player  *leaderboard.Entry     `json:"player,omitempty"`
}

// HandleGetLeaderboard handles
// GET /v1/leaderboard?user_id=&dataset=&view=points|goals|overall&limit=N&player_id=.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := strings.TrimSpace(q.Get("user_id"))
	dataset := strings.TrimSpace(q.Get("dataset"))
	if userID == "" || dataset == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: user_id and dataset are required", ErrBadRequest))
		return
	}
	view := q.Get("view")
	if view == "" {
		view = engine.ViewPoints
	}
	limit := leaderboard.DefaultTopN
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: invalid limit", ErrBadRequest))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded", fmt.Errorf("%w: limit above %d", ErrBadRequest, h.maxLimit))
			return
		}
		limit = n
	}

	table, err := h.deps.Leaderboard(r.Context(), userID, dataset)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	resp := leaderboardResponse{UserID: userID, Dataset: dataset, View: view, Total: table.Len()}

	if pid := strings.TrimSpace(q.Get("player_id")); pid != "" {
		e, ok := table.Player(pid)
		if !ok {
			writeError(w, http.StatusNotFound, "not_found", fmt.Errorf("player %s not found", pid))
			return
		}
		resp.Player = &e
		writeJSON(w, http.StatusOK, resp)
		return
	}

	rows, err := engine.Rows(table, view, limit)
	if errors.Is(err, engine.ErrUnknownView) {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	resp.Rows = rows
	writeJSON(w, http.StatusOK, resp)
}
