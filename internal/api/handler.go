package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"relnotify/internal/csvparser"
	"relnotify/internal/db"
	"relnotify/internal/email"
	"relnotify/internal/models"
	"relnotify/internal/worker"
)

// Store is the slice of the database layer the API reads and writes.
type Store interface {
	GetJob(ctx context.Context, id int64) (*models.EmailJob, error)
	ListActiveJobs(ctx context.Context) ([]*models.EmailJob, error)
	ListHistory(ctx context.Context) ([]*models.HistoryRecord, error)
	CountSubscribers(ctx context.Context) (int, error)
	AddSubscriber(ctx context.Context, email string) error
	RemoveSubscriber(ctx context.Context, email string) error
	GetReleaseNote(ctx context.Context, id int64) (*models.ReleaseNote, error)
	ListReleaseNotes(ctx context.Context) ([]*models.ReleaseNote, error)
	CreateReleaseNote(ctx context.Context, note *models.ReleaseNote) error
}

// Kicker wakes the background poller without waiting for its timer.
type Kicker interface {
	Kick()
}

type Handler struct {
	Store     Store
	Lifecycle *worker.Lifecycle
	Scheduler Kicker
	Transport email.Transport
	Renderer  *email.Renderer

	FromName    string
	FromAddress string

	Log *zap.Logger
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs", h.CreateJob)
		r.Get("/jobs", h.ListJobs)
		r.Get("/jobs/{id}", h.GetJob)

		r.Get("/history", h.ListHistory)
		r.Post("/test-send", h.TestSend)

		r.Post("/subscribers", h.AddSubscriber)
		r.Post("/subscribers/import", h.ImportSubscribers)
		r.Get("/subscribers/count", h.SubscriberCount)
		r.Post("/unsubscribe", h.Unsubscribe)

		r.Get("/release-notes", h.ListReleaseNotes)
		r.Get("/release-notes/{id}", h.GetReleaseNote)
		r.Post("/release-notes", h.CreateReleaseNote)

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("OK"))
		})
	})

	return r
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error("response encode failed", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// sanitizeEmail validates and normalizes an address. The domain must carry a
// dot so bare local hostnames are rejected.
func sanitizeEmail(address string) (string, bool) {
	address = strings.ToLower(strings.TrimSpace(address))
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return "", false
	}
	at := strings.LastIndex(address, "@")
	if !strings.Contains(address[at+1:], ".") {
		return "", false
	}
	return address, true
}

// ----------------------------
// Jobs
// ----------------------------

func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReleaseNoteID int64 `json:"release_note_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ReleaseNoteID == 0 {
		h.writeError(w, http.StatusBadRequest, "release note ID is required")
		return
	}

	job, err := h.Lifecycle.CreateJob(r.Context(), req.ReleaseNoteID)
	switch {
	case errors.Is(err, worker.ErrReleaseNoteNotFound):
		h.writeError(w, http.StatusNotFound, "release note not found")
		return
	case errors.Is(err, worker.ErrNoSubscribers):
		h.writeError(w, http.StatusBadRequest, "no subscribers found")
		return
	case err != nil:
		h.Log.Error("job creation failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to create email job")
		return
	}

	// processing starts on the next poll; nudge so it is immediate
	h.Scheduler.Kick()

	h.writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":       job.ID,
		"total_emails": job.TotalEmails,
	})
}

func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid job ID")
		return
	}

	job, err := h.Store.GetJob(r.Context(), id)
	if err != nil {
		h.Log.Error("job fetch failed", zap.Int64("job_id", id), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to fetch job")
		return
	}
	if job == nil {
		h.writeError(w, http.StatusNotFound, "job not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.Store.ListActiveJobs(r.Context())
	if err != nil {
		h.Log.Error("job list failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to fetch jobs")
		return
	}
	if jobs == nil {
		jobs = []*models.EmailJob{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// ----------------------------
// History
// ----------------------------

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListHistory(r.Context())
	if err != nil {
		h.Log.Error("history list failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to fetch email history")
		return
	}
	if records == nil {
		records = []*models.HistoryRecord{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"history":       records,
		"total_records": len(records),
	})
}

// ----------------------------
// Test Send
// ----------------------------

// TestSend delivers the announcement to a single address synchronously,
// bypassing the job pipeline, and records an individual history row.
func (h *Handler) TestSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReleaseNoteID int64  `json:"release_note_id"`
		Email         string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ReleaseNoteID == 0 {
		h.writeError(w, http.StatusBadRequest, "release note ID is required")
		return
	}
	address, ok := sanitizeEmail(req.Email)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid test email address")
		return
	}

	note, err := h.Store.GetReleaseNote(r.Context(), req.ReleaseNoteID)
	if err != nil {
		h.Log.Error("release note fetch failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to fetch release note")
		return
	}
	if note == nil {
		h.writeError(w, http.StatusNotFound, "release note not found")
		return
	}

	rendered, err := h.Renderer.Render(note, address)
	if err != nil {
		h.Log.Error("render failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to render email")
		return
	}

	sendErr := h.Transport.Send(&email.Message{
		FromName:    h.FromName,
		FromAddress: h.FromAddress,
		To:          address,
		Subject:     rendered.Subject,
		Text:        rendered.Text,
		HTML:        rendered.HTML,
	})

	if err := h.Lifecycle.RecordIndividual(r.Context(), req.ReleaseNoteID, sendErr); err != nil {
		h.Log.Error("history record failed", zap.Error(err))
	}

	if sendErr != nil {
		h.Log.Error("test send failed", zap.String("to", address), zap.Error(sendErr))
		h.writeError(w, http.StatusBadGateway, "test email failed to send")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "test email sent successfully"})
}

// ----------------------------
// Subscribers
// ----------------------------

func (h *Handler) AddSubscriber(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	address, ok := sanitizeEmail(req.Email)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}

	err := h.Store.AddSubscriber(r.Context(), address)
	if errors.Is(err, db.ErrDuplicateSubscriber) {
		h.writeError(w, http.StatusConflict, "email already exists")
		return
	}
	if err != nil {
		h.Log.Error("subscriber insert failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to save email")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]string{"message": "email saved successfully"})
}

func (h *Handler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	address, ok := sanitizeEmail(req.Email)
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}

	err := h.Store.RemoveSubscriber(r.Context(), address)
	if errors.Is(err, db.ErrSubscriberNotFound) {
		h.writeError(w, http.StatusNotFound, "email not found in our subscribe list")
		return
	}
	if err != nil {
		h.Log.Error("subscriber delete failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to unsubscribe")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"message": "unsubscribed successfully"})
}

func (h *Handler) SubscriberCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.Store.CountSubscribers(r.Context())
	if err != nil {
		h.Log.Error("subscriber count failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to fetch subscriber count")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"count": count})
}

func (h *Handler) ImportSubscribers(w http.ResponseWriter, r *http.Request) {
	emails, err := csvparser.ParseSubscriberEmails(r.Body, 1000)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	imported, skipped := 0, 0
	for _, address := range emails {
		if _, ok := sanitizeEmail(address); !ok {
			skipped++
			continue
		}

		addErr := h.Store.AddSubscriber(r.Context(), address)
		switch {
		case errors.Is(addErr, db.ErrDuplicateSubscriber):
			skipped++
		case addErr != nil:
			h.Log.Error("subscriber import failed", zap.String("email", address), zap.Error(addErr))
			h.writeError(w, http.StatusInternalServerError, "failed to import subscribers")
			return
		default:
			imported++
		}
	}

	h.writeJSON(w, http.StatusOK, map[string]int{
		"imported": imported,
		"skipped":  skipped,
	})
}

// ----------------------------
// Release Notes
// ----------------------------

func (h *Handler) ListReleaseNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.Store.ListReleaseNotes(r.Context())
	if err != nil {
		h.Log.Error("release note list failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to fetch release notes")
		return
	}
	if notes == nil {
		notes = []*models.ReleaseNote{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"release_notes": notes})
}

func (h *Handler) GetReleaseNote(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid release note ID")
		return
	}

	note, err := h.Store.GetReleaseNote(r.Context(), id)
	if err != nil {
		h.Log.Error("release note fetch failed", zap.Int64("id", id), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to fetch release note")
		return
	}
	if note == nil {
		h.writeError(w, http.StatusNotFound, "release note not found")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"release_note": note})
}

func (h *Handler) CreateReleaseNote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Version     string          `json:"version"`
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Type        string          `json:"type"`
		Tags        []string        `json:"tags"`
		Changes     []models.Change `json:"changes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var problems []string
	if strings.TrimSpace(req.Version) == "" {
		problems = append(problems, "version is required")
	}
	if strings.TrimSpace(req.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(req.Description) == "" {
		problems = append(problems, "description is required")
	}
	if req.Type == "" {
		req.Type = string(models.ReleasePatch)
	}
	switch models.ReleaseType(req.Type) {
	case models.ReleaseMajor, models.ReleaseMinor, models.ReleasePatch:
	default:
		problems = append(problems, "release type must be major, minor, or patch")
	}
	if len(problems) > 0 {
		h.writeError(w, http.StatusBadRequest, strings.Join(problems, "; "))
		return
	}

	note := &models.ReleaseNote{
		Version:     strings.TrimSpace(req.Version),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Type:        models.ReleaseType(req.Type),
		Tags:        req.Tags,
		Changes:     req.Changes,
	}

	if err := h.Store.CreateReleaseNote(r.Context(), note); err != nil {
		h.Log.Error("release note insert failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to create release note")
		return
	}

	h.writeJSON(w, http.StatusCreated, map[string]any{"release_note": note})
}
