package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/coalesce-dev/coalesce/internal/identity"
)

// Identifier is the slice of the identity service the HTTP layer needs.
type Identifier interface {
	Identify(ctx context.Context, req identity.Request) (identity.Aggregate, error)
}

// IdentifyHandlers contains HTTP handlers for the identify API.
type IdentifyHandlers struct {
	service Identifier
}

// NewIdentifyHandlers creates a new IdentifyHandlers instance.
func NewIdentifyHandlers(service Identifier) *IdentifyHandlers {
	return &IdentifyHandlers{service: service}
}

// Identify handles POST /identify - consolidate the submitted identifiers
// into their identity cluster and return the aggregate contact view.
func (h *IdentifyHandlers) Identify(w http.ResponseWriter, r *http.Request) {
	var body IdentifyRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	req, err := identity.NewRequest(body.Email, string(body.PhoneNumber))
	if err != nil {
		respondError(w, http.StatusBadRequest, "email or phoneNumber is required", nil)
		return
	}

	agg, err := h.service.Identify(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrValidation):
			respondError(w, http.StatusBadRequest, "email or phoneNumber is required", nil)
		case errors.Is(err, identity.ErrCircuitOpen):
			respondError(w, http.StatusServiceUnavailable, "storage temporarily unavailable", nil)
		default:
			respondError(w, http.StatusInternalServerError, "failed to identify contact", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, ToIdentifyResponse(agg))
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers already sent; nothing useful left to write.
		fmt.Printf("failed to encode JSON response: %v\n", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}
	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}
	respondJSON(w, statusCode, errResp)
}
