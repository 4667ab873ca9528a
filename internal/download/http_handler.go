package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"sefaria/internal/entity"
	"sefaria/internal/httpx"

	"github.com/google/uuid"
)

// HTTPHandler exposes the download manager. Transfers started over HTTP
// outlive the request and run under the handler's context.
type HTTPHandler struct {
	service *Service
	ctx     context.Context
}

func NewHTTPHandler(ctx context.Context, service *Service) *HTTPHandler {
	return &HTTPHandler{service: service, ctx: ctx}
}

type queueResponse struct {
	Queue      []string            `json:"queue"`
	InProgress []string            `json:"in_progress"`
	Titles     []entity.TitleState `json:"titles,omitempty"`
}

func (h *HTTPHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	httpx.JSONSuccessWithRequest(r, w, h.service.Packages(), nil)
}

// Queue serves GET /v1/downloads. titles=1 adds the per title states.
func (h *HTTPHandler) Queue(w http.ResponseWriter, r *http.Request) {
	res := queueResponse{Queue: h.service.Queue(), InProgress: h.service.InProgress()}
	if r.URL.Query().Get("titles") == "1" {
		res.Titles = h.service.Titles()
	}
	httpx.JSONSuccessWithRequest(r, w, res, nil)
}

func (h *HTTPHandler) CheckForUpdates(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.CheckForUpdates(r.Context())
	if err != nil {
		log.Printf("download check_failed request_id=%s err=%v", httpx.RequestIDFrom(r), err)
		httpx.JSONErrorWithRequest(r, w, http.StatusBadGateway, "UPSTREAM_ERROR", "Could not fetch the download manifest", nil)
		return
	}
	httpx.JSONSuccessWithRequest(r, w, res, nil)
}

// DownloadPackage serves POST /v1/packages/{name}/download. The transfer
// continues in the background; progress is on /v1/downloads/progress.
func (h *HTTPHandler) DownloadPackage(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !h.service.HasPackage(name) {
		httpx.JSONErrorWithRequest(r, w, http.StatusNotFound, "NOT_FOUND", "Unknown package", nil)
		return
	}
	go func() {
		if err := h.service.DownloadPackage(h.ctx, name); err != nil {
			log.Printf("download package_failed name=%s err=%v", name, err)
		}
	}()
	httpx.JSONAcceptedWithRequest(r, w, map[string]string{"package": name})
}

// Resume is how HTTP clients retry after a failed transfer: the server has no
// FailureHandler, so a failure pauses the queue and this call restarts it.
func (h *HTTPHandler) Resume(w http.ResponseWriter, r *http.Request) {
	go func() {
		if err := h.service.ResumeDownload(h.ctx); err != nil {
			log.Printf("download resume_failed err=%v", err)
		}
	}()
	httpx.JSONAcceptedWithRequest(r, w, nil)
}

func (h *HTTPHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.service.Pause()
	httpx.JSONSuccessNoContent(w)
}

// Prioritize serves POST /v1/titles/{title}/prioritize.
func (h *HTTPHandler) Prioritize(w http.ResponseWriter, r *http.Request) {
	h.service.PrioritizeDownload(r.PathValue("title"))
	httpx.JSONSuccessNoContent(w)
}

// DeleteLibrary serves DELETE /v1/library?confirm=true.
func (h *HTTPHandler) DeleteLibrary(w http.ResponseWriter, r *http.Request) {
	confirmed, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	err := h.service.DeleteLibrary(r.Context(), confirmed)
	switch {
	case err == nil:
		httpx.JSONSuccessNoContent(w)
	case errors.Is(err, ErrConfirmationRequired):
		httpx.JSONErrorWithRequest(r, w, http.StatusBadRequest, "CONFIRMATION_REQUIRED", "Pass confirm=true to delete the library", nil)
	case errors.Is(err, ErrDownloadInProgress):
		httpx.JSONErrorWithRequest(r, w, http.StatusConflict, "DOWNLOAD_IN_PROGRESS", "Pause downloads before deleting the library", nil)
	default:
		log.Printf("download delete_failed request_id=%s err=%v", httpx.RequestIDFrom(r), err)
		httpx.JSONErrorWithRequest(r, w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete the library", nil)
	}
}

// Progress streams transfer progress as server-sent events until the client
// goes away. Slow clients miss intermediate events.
func (h *HTTPHandler) Progress(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	events := make(chan entity.Progress, 16)
	name := "sse-" + uuid.NewString()
	h.service.Subscribe(name, func(p entity.Progress) {
		select {
		case events <- p:
		default:
		}
	})
	defer h.service.Unsubscribe(name)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.ctx.Done():
			return
		case p := <-events:
			b, err := json.Marshal(p)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: progress\ndata: %s\n\n", b); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
