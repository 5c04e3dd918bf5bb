package dlq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/kmassidik/payflow/internal/common/logger"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type ServiceInterface interface {
	List(ctx context.Context, status string, limit, offset int) ([]DeadLetter, error)
	Get(ctx context.Context, id string) (*DeadLetter, error)
	Replay(ctx context.Context, id string) error
}

type Handler struct {
	service ServiceInterface
	logger  *logger.Logger
}

func NewHandler(service ServiceInterface, log *logger.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  log,
	}
}

// ListDeadLetters returns dead letters newest first. ?status= filters by
// PENDING, PROCESSED or FAILED.
func (h *Handler) ListDeadLetters(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	limit := queryInt(r, "limit", defaultListLimit)
	offset := queryInt(r, "offset", 0)

	if limit < 1 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	letters, err := h.service.List(r.Context(), status, limit, offset)
	if err != nil {
		if errors.Is(err, ErrUnknownStatus) {
			h.respondError(w, http.StatusBadRequest, "status must be PENDING, PROCESSED or FAILED")
			return
		}
		h.logger.Errorf("Failed to list dead letters: %v", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}

	if letters == nil {
		letters = []DeadLetter{}
	}
	h.respondJSON(w, http.StatusOK, letters)
}

// GetDeadLetter returns one dead letter, including its original payload.
func (h *Handler) GetDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrDeadLetterNotFound) {
			h.respondError(w, http.StatusNotFound, "dead letter not found")
			return
		}
		h.logger.Errorf("Failed to get dead letter %s: %v", id, err)
		h.respondError(w, http.StatusInternalServerError, "failed to get dead letter")
		return
	}

	h.respondJSON(w, http.StatusOK, d)
}

// ReplayDeadLetter re-runs the dead letter through its original handler.
func (h *Handler) ReplayDeadLetter(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.service.Replay(r.Context(), id); err != nil {
		if errors.Is(err, ErrDeadLetterNotFound) {
			h.respondError(w, http.StatusNotFound, "dead letter not found")
			return
		}
		h.logger.Warnf("Replay of dead letter %s failed: %v", id, err)
		h.respondJSON(w, http.StatusOK, ReplayResponse{Success: false, Message: err.Error()})
		return
	}

	h.respondJSON(w, http.StatusOK, ReplayResponse{Success: true, Message: "replayed"})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{Error: message})
}
