package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/posematch/internal/domain/library"
)

type matchRequest struct {
	Skeleton json.RawMessage `json:"skeleton"`
}

// matchResponse carries a nil score when nothing could be compared.
type matchResponse struct {
	Label     string   `json:"label,omitempty"`
	Index     int      `json:"index"`
	Score     *float64 `json:"score"`
	Threshold float64  `json:"threshold"`
	Matched   bool     `json:"matched"`
}

// MatchHandler handles best-match requests.
type MatchHandler struct {
	deps MatchDependencies
}

// NewMatchHandler creates a new match handler.
func NewMatchHandler(deps MatchDependencies) *MatchHandler {
	return &MatchHandler{deps: deps}
}

// HandleMatch handles POST /match requests. An input that matches no entry
// is a 200 with matched false.
func (h *MatchHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.match"
	var req matchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rec, err := parseSkeleton(req.Skeleton)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	res, err := h.deps.Match(r.Context(), rec)
	if err != nil && !errors.Is(err, library.ErrNoMatch) {
		writeError(w, classify(op, err))
		return
	}
	if err != nil {
		writeJSON(w, http.StatusOK, matchResponse{Index: -1, Threshold: res.Threshold})
		return
	}
	writeJSON(w, http.StatusOK, matchResponse{
		Label:     res.Label,
		Index:     res.Index,
		Score:     finite(res.Score),
		Threshold: res.Threshold,
		Matched:   res.Matched,
	})
}
