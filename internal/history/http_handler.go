package history

import (
	"errors"
	"net/http"
	"strconv"

	"sefaria/internal/entity"
	"sefaria/internal/httpx"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

type HTTPHandler struct {
	service *Service
}

func NewHTTPHandler(service *Service) *HTTPHandler {
	return &HTTPHandler{service: service}
}

// recordReq is the body of POST /v1/history.
type recordReq struct {
	Ref       string            `json:"ref" validate:"required"`
	HeRef     string            `json:"he_ref"`
	Book      string            `json:"book"`
	Versions  map[string]string `json:"versions"`
	TimeStamp int64             `json:"time_stamp" validate:"gte=0"`
	Secondary bool              `json:"secondary"`
	Saved     bool              `json:"saved"`
	Action    string            `json:"action" validate:"omitempty,oneof=add_saved delete_saved"`
}

func (h *HTTPHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req recordReq
	if !httpx.DecodeJSON(w, r, &req) {
		return
	}

	recorded, err := h.service.RecordEvent(r.Context(), entity.HistoryItem{
		Ref:       req.Ref,
		HeRef:     req.HeRef,
		Book:      req.Book,
		Versions:  req.Versions,
		TimeStamp: req.TimeStamp,
		Secondary: req.Secondary,
		Saved:     req.Saved,
		Action:    req.Action,
	})
	if err != nil {
		if errors.Is(err, ErrInvalidItem) {
			httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
			return
		}
		httpx.JSONErrorWithRequest(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record the event", nil)
		return
	}
	httpx.JSONSuccessWithRequest(r, w, map[string]bool{"recorded": recorded}, nil)
}

// List serves GET /v1/history?limit=&offset=, newest first.
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	httpx.JSONSuccessWithRequest(r, w, h.service.History(limit, offset), map[string]interface{}{
		"limit":  limit,
		"offset": offset,
	})
}

func (h *HTTPHandler) Saved(w http.ResponseWriter, r *http.Request) {
	httpx.JSONSuccessWithRequest(r, w, h.service.Saved(), nil)
}

func (h *HTTPHandler) LastPlace(w http.ResponseWriter, r *http.Request) {
	httpx.JSONSuccessWithRequest(r, w, h.service.LastPlace(), nil)
}

// Sync serves POST /v1/history/sync. The optional body carries the reader's
// current settings; without it the stored settings are sent.
func (h *HTTPHandler) Sync(w http.ResponseWriter, r *http.Request) {
	settings := h.service.Settings()
	if r.ContentLength != 0 {
		var body entity.Settings
		if !httpx.DecodeJSON(w, r, &body) {
			return
		}
		settings = &body
	}

	res := h.service.SyncHistory(r.Context(), settings)
	if !res.Synced && !res.Skipped {
		httpx.JSONErrorWithRequest(r, w, http.StatusBadGateway, "SYNC_FAILED", "History sync failed; pending events are kept", nil)
		return
	}
	httpx.JSONSuccessWithRequest(r, w, res, nil)
}
