package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kmassidik/payflow/internal/common/logger"
)

type ServiceInterface interface {
	Initiate(ctx context.Context, req *CreateTransferRequest) (*Transfer, error)
	GetTransfer(ctx context.Context, id string) (*Transfer, error)
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

// CreateTransfer accepts a transfer request and returns 202 with the PENDING
// saga record. The actual money movement happens asynchronously.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	t, err := h.service.Initiate(r.Context(), &req)
	if err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			h.respondError(w, http.StatusBadRequest, vErr.Message)
			return
		}
		h.logger.Errorf("Failed to initiate transfer: %v", err)
		h.respondError(w, http.StatusInternalServerError, "failed to initiate transfer")
		return
	}

	h.respondJSON(w, http.StatusAccepted, t)
}

// GetTransfer returns the transfer projection by id.
func (h *Handler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	t, err := h.service.GetTransfer(r.Context(), id)
	if err != nil {
		var vErr *ValidationError
		switch {
		case errors.As(err, &vErr):
			h.respondError(w, http.StatusBadRequest, vErr.Message)
		case errors.Is(err, ErrTransferNotFound):
			h.respondError(w, http.StatusNotFound, "transfer not found")
		default:
			h.logger.Errorf("Failed to get transfer %s: %v", id, err)
			h.respondError(w, http.StatusInternalServerError, "failed to get transfer")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, t)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{Error: message})
}
