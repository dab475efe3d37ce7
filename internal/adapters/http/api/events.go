package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	service "github.com/okian/posematch/internal/app"
	"github.com/okian/posematch/internal/domain/model"
	"github.com/okian/posematch/internal/domain/sequence"
)

// frameRequest is one observed pose for a session. frame_id is optional and
// makes resubmission idempotent.
type frameRequest struct {
	FrameID  string          `json:"frame_id"`
	Skeleton json.RawMessage `json:"skeleton"`
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type feedResponse struct {
	SessionID string              `json:"session_id"`
	FrameID   string              `json:"frame_id,omitempty"`
	Outcome   sequence.Outcome    `json:"outcome"`
	Score     *float64            `json:"score"`
	Duplicate bool                `json:"duplicate"`
	Progress  sequence.Snapshot   `json:"progress"`
	Events    []model.MotionEvent `json:"events,omitempty"`
}

type eventsResponse struct {
	SessionID string              `json:"session_id"`
	Events    []model.MotionEvent `json:"events"`
}

// EventsHandler handles frame ingestion and event listing.
type EventsHandler struct {
	frames   FrameDependencies
	sessions SessionDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(frames FrameDependencies, sessions SessionDependencies) *EventsHandler {
	return &EventsHandler{frames: frames, sessions: sessions}
}

// HandlePostFrame handles POST /sessions/{id}/frames requests. With
// ?async=true the frame is queued and acknowledged with 202.
func (h *EventsHandler) HandlePostFrame(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_frame"
	id, err := sessionID(op, r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req frameRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	rec, err := parseSkeleton(req.Skeleton)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	async, err := boolQuery(r, "async")
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if async {
		dup, err := h.frames.Enqueue(r.Context(), id, req.FrameID, rec)
		if err != nil {
			writeError(w, classify(op, err))
			return
		}
		if dup {
			writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
			return
		}
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
		return
	}

	res, err := h.frames.Feed(r.Context(), id, req.FrameID, rec)
	if err != nil {
		writeError(w, classify(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toFeedResponse(res))
}

// HandleListEvents handles GET /sessions/{id}/events[?limit=n] requests.
func (h *EventsHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_events"
	id, err := sessionID(op, r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, WrapKind(op, ErrBadRequest, errors.New("limit must be a non-negative integer")))
			return
		}
	}

	events, err := h.sessions.History(r.Context(), id, limit)
	if err != nil {
		writeError(w, classify(op, err))
		return
	}
	if events == nil {
		events = []model.MotionEvent{}
	}
	writeJSON(w, http.StatusOK, eventsResponse{SessionID: id, Events: events})
}

func toFeedResponse(res service.FeedResult) feedResponse { //nolint:gocritic // hugeParam: results travel by value
	return feedResponse{
		SessionID: res.SessionID,
		FrameID:   res.FrameID,
		Outcome:   res.Outcome,
		Score:     finite(res.Score),
		Duplicate: res.Duplicate,
		Progress:  res.Progress,
		Events:    res.Events,
	}
}

func boolQuery(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New(key + " must be a boolean")
	}
	return b, nil
}
