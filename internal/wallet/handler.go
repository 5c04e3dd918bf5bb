package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/kmassidik/payflow/internal/common/logger"
)

const (
	defaultEntriesLimit = 50
	maxEntriesLimit     = 200
)

type ServiceInterface interface {
	CreateWallet(ctx context.Context, req *CreateWalletRequest) (*Wallet, error)
	GetWallet(ctx context.Context, walletID string) (*Wallet, error)
	GetWalletEntries(ctx context.Context, walletID string, limit, offset int) ([]LedgerEntry, error)
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

// CreateWallet provisions a zero-balance wallet for a user.
func (h *Handler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req CreateWalletRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	wallet, err := h.service.CreateWallet(r.Context(), &req)
	if err != nil {
		var vErr *ValidationError
		switch {
		case errors.As(err, &vErr):
			h.respondError(w, http.StatusBadRequest, vErr.Message)
		case errors.Is(err, ErrDuplicateUser):
			h.respondError(w, http.StatusConflict, "user already has a wallet")
		default:
			h.logger.Errorf("Failed to create wallet: %v", err)
			h.respondError(w, http.StatusInternalServerError, "failed to create wallet")
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, wallet)
}

// GetWallet returns a wallet with its current balance.
func (h *Handler) GetWallet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	wallet, err := h.service.GetWallet(r.Context(), id)
	if err != nil {
		h.respondWalletError(w, id, err, "failed to get wallet")
		return
	}

	h.respondJSON(w, http.StatusOK, wallet)
}

// GetWalletEntries returns a wallet's ledger history, newest first.
func (h *Handler) GetWalletEntries(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	limit := queryInt(r, "limit", defaultEntriesLimit)
	offset := queryInt(r, "offset", 0)

	if limit < 1 || limit > maxEntriesLimit {
		limit = defaultEntriesLimit
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := h.service.GetWalletEntries(r.Context(), id, limit, offset)
	if err != nil {
		h.respondWalletError(w, id, err, "failed to get ledger entries")
		return
	}

	if entries == nil {
		entries = []LedgerEntry{}
	}
	h.respondJSON(w, http.StatusOK, LedgerEntriesResponse{WalletID: id, Entries: entries, Total: len(entries)})
}

func (h *Handler) respondWalletError(w http.ResponseWriter, id string, err error, fallback string) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		h.respondError(w, http.StatusBadRequest, vErr.Message)
	case errors.Is(err, ErrWalletNotFound):
		h.respondError(w, http.StatusNotFound, "wallet not found")
	default:
		h.logger.Errorf("Wallet %s request failed: %v", id, err)
		h.respondError(w, http.StatusInternalServerError, fallback)
	}
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
