package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rivaldex/rivaldex/internal/competitor"
	"github.com/rivaldex/rivaldex/internal/profile"
)

// addCompetitorRequest is the JSON body for POST /api/v1/competitors.
type addCompetitorRequest struct {
	Primary string `json:"primary"`
	Target  string `json:"target"`
}

func (h *Handler) handleAddCompetitor(w http.ResponseWriter, r *http.Request) {
	var req addCompetitorRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Primary == "" || req.Target == "" {
		writeFailure(w, http.StatusBadRequest, "primary and target are required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, err := h.pipeline.AddCompetitor(ctx, req.Primary, req.Target)
	if err != nil {
		status, msg := statusForError(err)
		h.logger.Warn("add competitor failed",
			"owner", req.Primary, "target", req.Target, "status", status, "error", err)
		writeFailure(w, status, msg)
		return
	}

	writeSuccess(w, rec, "competitor tracked")
}

func (h *Handler) handleGetCompetitor(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	target := r.PathValue("target")

	rec, err := h.reader.Get(r.Context(), owner, target)
	if err != nil {
		if errors.Is(err, competitor.ErrNotTracked) {
			writeFailure(w, http.StatusNotFound, "competitor not tracked")
			return
		}
		h.logger.Error("get competitor failed", "owner", owner, "target", target, "error", err)
		writeFailure(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeSuccess(w, rec, "")
}

func (h *Handler) handleListCompetitors(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("primary")
	if owner == "" {
		writeFailure(w, http.StatusBadRequest, "primary query parameter is required")
		return
	}

	records, err := h.reader.List(r.Context(), owner)
	if err != nil {
		h.logger.Error("list competitors failed", "owner", owner, "error", err)
		writeFailure(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []competitor.Record{}
	}

	writeSuccess(w, records, "")
}

// statusForError maps pipeline failures to HTTP outcomes: a missing
// target is a 404, an unreachable or unconfigured profile source is a
// 503, an exhausted request budget is a 503, and everything else is a
// 500.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, profile.ErrNotFound):
		return http.StatusNotFound, "target profile not found"
	case errors.Is(err, profile.ErrSourceUnavailable):
		return http.StatusServiceUnavailable, "profile source unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "operation timed out"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
