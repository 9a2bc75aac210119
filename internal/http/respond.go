package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"financecalc/internal/core"
	"financecalc/internal/log"
	"financecalc/internal/store"

	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case core.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrClosed), store.IsStorage(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func bodyFor(err error) errorBody {
	body := errorBody{Error: err.Error()}
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	return body
}

// writeError logs server-side failures and writes the JSON error body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, nil)
	}
	writeJSON(w, status, bodyFor(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return &core.ValidationError{Field: "body", Err: fmt.Errorf("malformed JSON: %w", err)}
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &core.ValidationError{Field: "id", Err: fmt.Errorf("invalid id %q", raw)}
	}
	return id, nil
}

// parseAmountField parses a non-negative amount given as text. Empty is
// zero when allowEmpty is set.
func parseAmountField(field, raw string, allowEmpty bool) (decimal.Decimal, error) {
	if allowEmpty && strings.TrimSpace(raw) == "" {
		return decimal.Zero, nil
	}
	d, err := core.ParseAmount(raw)
	if err != nil {
		return decimal.Zero, &core.ValidationError{Field: field, Err: err}
	}
	return d, nil
}

// parseProfitField is parseAmountField for values that may be negative.
func parseProfitField(field, raw string) (decimal.Decimal, error) {
	d, err := core.ParseProfit(raw)
	if err != nil {
		return decimal.Zero, &core.ValidationError{Field: field, Err: err}
	}
	return d, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' {
			return -1
		}
		return r
	}, s)
}
