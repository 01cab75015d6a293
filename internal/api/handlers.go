/**
 * @description
 * This file contains the HTTP handlers for the relay's API endpoints. Handlers
 * parse incoming requests, call the appropriate methods on the application
 * service, and write the HTTP response. They act as the bridge between the web
 * layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app: For service logic and its error taxonomy.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Amigos-del-Biscoint-Hackathon-LABITCONF/experimental-lnsms/internal/app"
)

// RelayHandlers holds the application service that handlers will use.
type RelayHandlers struct {
	service *app.Service
}

// NewRelayHandlers creates a new instance of RelayHandlers.
func NewRelayHandlers(service *app.Service) *RelayHandlers {
	return &RelayHandlers{service: service}
}

type requestInvoiceRequest struct {
	Number string `json:"number"`
	Amount string `json:"amount"`
}

type claimRequest struct {
	Code    string `json:"code"`
	Invoice string `json:"invoice"`
}

// RequestInvoiceHandler handles requests for a lightning invoice addressed to
// a phone number.
func (h *RelayHandlers) RequestInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	var req requestInvoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	invoice, err := h.service.RequestInvoice(r.Context(), req.Number, req.Amount)
	if err != nil {
		if errors.Is(err, app.ErrInvalidRequest) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("level=error component=api msg=\"invoice request failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to create invoice")
		return
	}

	h.writeJSON(w, http.StatusOK, invoice)
}

// ClaimHandler handles claim redemption: it exchanges a claim code plus a
// lightning invoice for a payout.
func (h *RelayHandlers) ClaimHandler(w http.ResponseWriter, r *http.Request) {
	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	_, err := h.service.Claim(r.Context(), req.Code, req.Invoice)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidRequest):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, app.ErrInvalidCode):
			h.writeError(w, http.StatusBadRequest, "Invalid claim code")
		case errors.Is(err, app.ErrPayoutFailed):
			h.writeError(w, http.StatusInternalServerError, "Payout failed; the claim code is still valid")
		case errors.Is(err, app.ErrPayoutIndeterminate):
			log.Printf("level=error component=api msg=\"claim frozen for review\" err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Payout outcome unknown; the claim is under review")
		default:
			log.Printf("level=error component=api msg=\"claim failed\" err=%v", err)
			h.writeError(w, http.StatusInternalServerError, "Unable to process claim")
		}
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// IndeterminateClaimsHandler returns claims frozen for manual review. The
// route sits behind the internal API key middleware.
func (h *RelayHandlers) IndeterminateClaimsHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := h.service.ListIndeterminateClaims(r.Context())
	if err != nil {
		log.Printf("level=error component=api msg=\"indeterminate claims listing failed\" err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Unable to list claims")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"claims": claims, "count": len(claims)})
}

// writeJSON is a helper for writing JSON responses.
func (h *RelayHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *RelayHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
