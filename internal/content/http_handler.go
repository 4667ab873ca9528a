package content

import (
	"errors"
	"net/http"

	"sefaria/internal/httpx"
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// GetText serves GET /v1/texts/{ref...}. With links=1 only the links of the
// ref are loaded.
func (h *HTTPHandler) GetText(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("ref")
	if ref == "" {
		httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, "BAD_REQUEST", "ref is required", nil)
		return
	}
	opts := Options{IsLinkRequest: r.URL.Query().Get("links") == "1"}

	rec, err := h.service.Get(r.Context(), ref, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccessWithRequest(r, w, rec, nil)
}

// Resolve serves GET /v1/refs/{ref...}.
func (h *HTTPHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Resolve(r.PathValue("ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONSuccessWithRequest(r, w, res, nil)
}

func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	httpx.JSONSuccessWithRequest(r, w, h.service.Stats(), nil)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.JSONErrorWithRequest(r, w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	case errors.Is(err, ErrUnavailable):
		httpx.JSONErrorWithRequest(r, w, http.StatusServiceUnavailable, "UNAVAILABLE", "Content is not downloaded and the network is unreachable", nil)
	default:
		httpx.JSONErrorWithRequest(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load content", nil)
	}
}
