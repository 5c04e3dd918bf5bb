package dlq

import (
	"net/http"

	"github.com/kmassidik/payflow/internal/common/middleware"
)

func (h *Handler) RegisterRoutes(mux *http.ServeMux, jwtSecret string) {
	protected := middleware.JWTAuth(jwtSecret)

	mux.Handle("GET /admin/dlq", protected(http.HandlerFunc(h.ListDeadLetters)))
	mux.Handle("GET /admin/dlq/{id}", protected(http.HandlerFunc(h.GetDeadLetter)))
	mux.Handle("POST /admin/dlq/{id}/replay", protected(http.HandlerFunc(h.ReplayDeadLetter)))
}
