package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/BTreeMap/LeadPipe/internal/models"
)

// MaxBodyBytes bounds the size of a submission request body.
const MaxBodyBytes = 64 << 10

// CORS headers sent on every collector response.
const (
	corsAllowOrigin  = "*"
	corsAllowHeaders = "authorization, x-client-info, apikey, content-type"
	corsAllowMethods = "POST, OPTIONS"
)

var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.CollectorError{Error: "Internal server error"})
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// Collector accepts one submission and returns the stored contact.
type Collector interface {
	Collect(ctx context.Context, sub models.Submission) (models.Contact, error)
}

// Handler serves the collector endpoint.
type Handler struct {
	collector Collector
	schema    *Schema
}

// NewHandler creates the HTTP handler for a collector.
func NewHandler(c Collector, schema *Schema) *Handler {
	return &Handler{collector: c, schema: schema}
}

func setCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", corsAllowOrigin)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Allow-Methods", corsAllowMethods)
}

func writeJSON(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Handler.writeJSON: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Handler.writeJSON: failed to write JSON response", "error", writeErr)
	}
}

// ServeHTTP answers preflight requests and stores POSTed submissions.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	setCORSHeaders(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", strings.Join([]string{http.MethodPost, http.MethodOptions}, ", "))
		slog.Warn("Handler.ServeHTTP: method not allowed", "method", r.Method)
		writeJSON(w, http.StatusMethodNotAllowed, models.CollectorError{Error: "Method not allowed"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		slog.Warn("Handler.ServeHTTP: failed to read body", "error", err)
		writeJSON(w, http.StatusBadRequest, models.CollectorError{Error: "Failed to read request body"})
		return
	}

	sub, err := h.schema.Decode(body)
	if err != nil {
		slog.Warn("Handler.ServeHTTP: rejected payload", "error", err)
		writeJSON(w, http.StatusBadRequest, models.CollectorError{Error: err.Error()})
		return
	}

	contact, err := h.collector.Collect(r.Context(), sub)
	if err != nil {
		if errors.Is(err, models.ErrInvalidSubmission) {
			writeJSON(w, http.StatusBadRequest, models.CollectorError{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, models.CollectorError{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, models.CollectorResponse{Success: true, Data: contact})
}

// SchemaHandler serves the submission JSON Schema.
func (h *Handler) SchemaHandler(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.schema.JSON()); err != nil {
		slog.Error("Handler.SchemaHandler: failed to write schema", "error", err)
	}
}
