// Package api exposes HTTP handlers for tracker sessions.
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"example.com/ecotrack/internal/domain"
	"example.com/ecotrack/internal/export"
	"example.com/ecotrack/internal/persistence"
	"example.com/ecotrack/internal/realtime"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
	maxBodyBytes    = 64 << 10
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	hub     *realtime.Hub
	logger  *log.Logger
}

// NewHandler builds a Handler. hub may be nil, in which case the stream
// endpoint is not registered.
func NewHandler(service *domain.Service, hub *realtime.Hub) *Handler {
	return &Handler{
		service: service,
		hub:     hub,
		logger:  log.New(log.Writer(), "[api] ", log.LstdFlags),
	}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/trackers", h.createTracker)
	mux.HandleFunc("DELETE /v1/trackers/{id}", h.endTracker)
	mux.HandleFunc("POST /v1/trackers/{id}/activities", h.recordActivity)
	mux.HandleFunc("GET /v1/trackers/{id}/activities", h.listActivities)
	mux.HandleFunc("GET /v1/trackers/{id}/activities/recent", h.recentActivities)
	mux.HandleFunc("GET /v1/trackers/{id}/summary", h.summary)
	mux.HandleFunc("GET /v1/trackers/{id}/leaderboard", h.leaderboard)
	mux.HandleFunc("GET /v1/trackers/{id}/export", h.export)
	if h.hub != nil {
		mux.HandleFunc("GET /v1/trackers/{id}/stream", h.stream)
	}
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) createTracker(w http.ResponseWriter, r *http.Request) {
	tracker, err := h.service.CreateTracker(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateTrackerResponse{
		TrackerID: tracker.ID,
		CreatedAt: tracker.CreatedAt,
	})
}

func (h *Handler) endTracker(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.service.EndTracker(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if h.hub != nil {
		h.hub.Close(id)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) recordActivity(w http.ResponseWriter, r *http.Request) {
	sub, err := decodeSubmission(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	activity, summary, err := h.service.RecordActivity(r.Context(), r.PathValue("id"), sub)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RecordActivityResponse{
		Activity: toActivityView(activity),
		Summary:  NewSummaryView(summary),
	})
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = min(parsed, maxPageSize)
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	activities, next, err := h.service.ListActivities(r.Context(), r.PathValue("id"), cursor, limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{
		Items:      toActivityViews(activities),
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) recentActivities(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "n must be a non-negative integer")
			return
		}
		n = min(parsed, maxPageSize)
		if n == 0 {
			writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: []ActivityView{}})
			return
		}
	}

	activities, err := h.service.Recent(r.Context(), r.PathValue("id"), n)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListActivitiesResponse{Items: toActivityViews(activities)})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewSummaryView(summary))
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	period := domain.ParsePeriod(r.URL.Query().Get("period"))
	rows, result, err := h.service.Leaderboard(r.Context(), r.PathValue("id"), period)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewLeaderboardResponse(period, result, rows))
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ledger, err := h.service.Ledger(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	summary := h.service.Summarize(ledger)
	summary.TrackerID = id

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, ledger.All(), summary); err != nil {
		h.logger.Printf("export tracker %s: %v", id, err)
		writeError(w, http.StatusInternalServerError, "server_error", "unable to build workbook")
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="ecotrack-%s.xlsx"`, id))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	summary, err := h.service.Summary(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	// Subscribe writes its own error response when the upgrade fails.
	if err := h.hub.Subscribe(w, r, id, NewSummaryView(summary)); err != nil {
		h.logger.Printf("stream upgrade for tracker %s: %v", id, err)
	}
}

// decodeSubmission accepts either a JSON body or the widget's form encoding.
func decodeSubmission(w http.ResponseWriter, r *http.Request) (domain.Submission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return domain.Submission{}, errors.New("unable to parse form")
		}
		form := r.PostForm
		return domain.Submission{
			Meal:          form.Get(FieldMealType),
			Vehicle:       form.Get(FieldVehicleType),
			Distance:      form.Get(FieldDistance),
			OutsideFood:   form.Get(FieldOutsideFood),
			EnvActivities: form[FieldEnvActivity],
			Duration:      form.Get(FieldActivityDuration),
		}, nil
	default:
		var req RecordActivityRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return domain.Submission{}, errors.New("unable to parse body")
		}
		return req.Submission(), nil
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrTrackerNotFound):
		writeError(w, http.StatusNotFound, "not_found", "tracker not found")
	case errors.Is(err, domain.ErrTrackerEnded):
		writeError(w, http.StatusConflict, "tracker_ended", "tracker has ended")
	default:
		h.logger.Printf("request failed: %v", err)
		writeError(w, http.StatusInternalServerError, "server_error", strings.TrimSpace(err.Error()))
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
