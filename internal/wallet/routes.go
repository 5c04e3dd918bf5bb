package wallet

import (
	"net/http"

	"github.com/kmassidik/payflow/internal/common/middleware"
)

func (h *Handler) RegisterRoutes(mux *http.ServeMux, jwtSecret string) {
	protected := middleware.JWTAuth(jwtSecret)

	mux.Handle("POST /wallets", protected(http.HandlerFunc(h.CreateWallet)))
	mux.Handle("GET /wallets/{id}", protected(http.HandlerFunc(h.GetWallet)))
	mux.Handle("GET /wallets/{id}/entries", protected(http.HandlerFunc(h.GetWalletEntries)))
}
