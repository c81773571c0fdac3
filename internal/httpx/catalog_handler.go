package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/ariefcatur/go-meatshop-orders/internal/notify"
	"github.com/ariefcatur/go-meatshop-orders/internal/store"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CatalogHandler serves the read-only product list and the notification log.
type CatalogHandler struct {
	Repos      *store.Repositories
	Dispatcher *notify.Dispatcher
	Logger     *zap.Logger
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/api/products", h.listProducts)
	r.Get("/api/notifications", h.listNotifications)
}

func (h *CatalogHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Repos.Products.List(r.Context())
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	all := r.URL.Query().Get("all") == "true"
	out := make([]domain.Product, 0, len(ps))
	for _, p := range ps {
		if p.IsActive || all {
			out = append(out, p)
		}
	}
	ok(w, http.StatusOK, out, "")
}

func (h *CatalogHandler) listNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := h.Dispatcher.ListNotifications(r.Context(), r.URL.Query().Get("orderId"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, list, "")
}
