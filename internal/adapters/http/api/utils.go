package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"

	"github.com/okian/posematch/internal/domain/skeleton"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes err with the status its kind maps to.
func writeError(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// parseSkeleton decodes a required skeleton field.
func parseSkeleton(raw json.RawMessage) (skeleton.Record, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return skeleton.Record{}, errors.New("missing skeleton")
	}
	rec, err := skeleton.Parse(raw)
	if err != nil {
		return skeleton.Record{}, fmt.Errorf("skeleton: %w", err)
	}
	return rec, nil
}

// finite returns nil for scores JSON cannot carry.
func finite(score float64) *float64 {
	if math.IsInf(score, 0) || math.IsNaN(score) {
		return nil
	}
	return &score
}
