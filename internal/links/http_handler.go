package links

import (
	"errors"
	"net/http"

	"sefaria/internal/content"
	"sefaria/internal/httpx"
)

type HTTPHandler struct {
	aggregator *Aggregator
}

func NewHTTPHandler(aggregator *Aggregator) *HTTPHandler {
	return &HTTPHandler{aggregator: aggregator}
}

// Summary serves GET /v1/links/{ref...}.
func (h *HTTPHandler) Summary(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	if ref == "" {
		httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, "BAD_REQUEST", "ref is required", nil)
		return
	}

	summary, err := h.aggregator.SummarizeRef(r.Context(), ref)
	switch {
	case err == nil:
		httpx.JSONSuccessWithRequest(r, w, summary, map[string]interface{}{"ref": ref})
	case errors.Is(err, content.ErrNotFound):
		httpx.JSONErrorWithRequest(r, w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, content.ErrUnavailable):
		httpx.JSONErrorWithRequest(r, w, http.StatusServiceUnavailable, "UNAVAILABLE", "Links are not downloaded and the network is unreachable", nil)
	default:
		httpx.JSONErrorWithRequest(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load links", nil)
	}
}
