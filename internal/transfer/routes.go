package transfer

import (
	"net/http"

	"github.com/kmassidik/payflow/internal/common/middleware"
)

func (h *Handler) RegisterRoutes(mux *http.ServeMux, jwtSecret string) {
	protected := middleware.JWTAuth(jwtSecret)

	mux.Handle("POST /transfers", protected(http.HandlerFunc(h.CreateTransfer)))
	mux.Handle("GET /transfers/{id}", protected(http.HandlerFunc(h.GetTransfer)))
}
