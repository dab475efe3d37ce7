package api

import (
	"net/http"
	"strings"
)

// SessionHandler handles session lifecycle requests.
type SessionHandler struct {
	deps SessionDependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps SessionDependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// HandleCreate handles POST /sessions requests.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	info, err := h.deps.CreateSession(r.Context())
	if err != nil {
		writeError(w, classify("api.create_session", err))
		return
	}
	w.Header().Set("Location", "/sessions/"+info.ID)
	writeJSON(w, http.StatusCreated, info)
}

// HandleGet handles GET /sessions/{id} requests.
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	id, err := sessionID(op, r)
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := h.deps.Session(r.Context(), id)
	if err != nil {
		writeError(w, classify(op, err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleDelete handles DELETE /sessions/{id} requests.
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_session"
	id, err := sessionID(op, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.deps.DeleteSession(r.Context(), id); err != nil {
		writeError(w, classify(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleReset handles POST /sessions/{id}/reset requests.
func (h *SessionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	const op = "api.reset_session"
	id, err := sessionID(op, r)
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := h.deps.ResetSession(r.Context(), id)
	if err != nil {
		writeError(w, classify(op, err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func sessionID(op string, r *http.Request) (string, error) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		return "", NewKind(op, ErrBadRequest)
	}
	return id, nil
}
