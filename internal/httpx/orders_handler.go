package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/apperr"
	"github.com/ariefcatur/go-meatshop-orders/internal/domain"
	"github.com/ariefcatur/go-meatshop-orders/internal/orders"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// IdempotencyStore remembers which order an Idempotency-Key produced.
// *redisx.Cache implements it.
type IdempotencyStore interface {
	ClaimIdempotencyKey(ctx context.Context, key string) (orderID string, claimed bool)
	RememberIdempotencyKey(ctx context.Context, key, orderID string)
	ReleaseIdempotencyKey(ctx context.Context, key string)
}

type OrdersHandler struct {
	Orders      *orders.Service
	Idempotency IdempotencyStore // optional
	Logger      *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Route("/api/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/", h.createOrder)
		r.Get("/{id}", h.getOrder)
		r.Get("/{id}/status", h.getOrderStatus)
		r.Patch("/{id}/status", h.updateStatus)
		r.Delete("/{id}", h.cancelOrder)
	})
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderInput
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// a retried request with the same key gets the original order
	idemKey := r.Header.Get("Idempotency-Key")
	if h.Idempotency == nil {
		idemKey = ""
	}
	if idemKey != "" {
		id, claimed := h.Idempotency.ClaimIdempotencyKey(ctx, idemKey)
		if !claimed {
			if id == "" {
				writeError(w, r, h.Logger, &apperr.ErrConflict{Message: "an order with this idempotency key is still being created"})
				return
			}
			o, err := h.Orders.GetOrder(ctx, id)
			if err != nil {
				writeError(w, r, h.Logger, err)
				return
			}
			ok(w, http.StatusOK, o, "order already created")
			return
		}
	}

	o, err := h.Orders.CreateOrder(ctx, req)
	if err != nil {
		if idemKey != "" {
			h.Idempotency.ReleaseIdempotencyKey(context.WithoutCancel(ctx), idemKey)
		}
		writeError(w, r, h.Logger, err)
		return
	}
	if idemKey != "" {
		h.Idempotency.RememberIdempotencyKey(context.WithoutCancel(ctx), idemKey, o.ID)
	}
	ok(w, http.StatusCreated, o, "order created")
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.Orders.ListOrders(r.Context(), orders.ListFilter{
		UserID: q.Get("userId"),
		Status: domain.OrderStatus(q.Get("status")),
	})
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, list, "")
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, o, "")
}

func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	st, err := h.Orders.GetOrderStatus(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, st, "")
}

type updateStatusReq struct {
	Status domain.OrderStatus `json:"status"`
	Notes  string             `json:"notes,omitempty"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	o, err := h.Orders.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), req.Status, req.Notes, actor(r, "admin"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, o, "order status updated")
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelReq
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	o, err := h.Orders.CancelOrder(r.Context(), chi.URLParam(r, "id"), req.Reason, actor(r, "customer"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, o, "order cancelled")
}
