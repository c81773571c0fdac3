package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-meatshop-orders/internal/payments"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type PaymentsHandler struct {
	Payments *payments.Service
	Logger   *zap.Logger
}

func (h *PaymentsHandler) Register(r chi.Router) {
	r.Route("/api/payments", func(r chi.Router) {
		r.Get("/", h.listPayments)
		r.Post("/process", h.process)
		r.Get("/{id}", h.getPayment)
		r.Post("/{id}/refund", h.refund)
		r.Post("/{id}/capture", h.capture)
	})
}

func (h *PaymentsHandler) process(w http.ResponseWriter, r *http.Request) {
	var req payments.ProcessInput
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	// gateway calls are slow; do not let a hung provider hold the request
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := h.Payments.ProcessPayment(ctx, req)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, p, "payment processed")
}

type refundReq struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

func (h *PaymentsHandler) refund(w http.ResponseWriter, r *http.Request) {
	var req refundReq
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p, err := h.Payments.RefundPayment(ctx, chi.URLParam(r, "id"), req.Amount, req.Reason, actor(r, "admin"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, p, "refund processed")
}

func (h *PaymentsHandler) capture(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payments.CapturePayment(r.Context(), chi.URLParam(r, "id"), actor(r, "admin"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, p, "payment captured")
}

func (h *PaymentsHandler) getPayment(w http.ResponseWriter, r *http.Request) {
	p, err := h.Payments.GetPayment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, p, "")
}

func (h *PaymentsHandler) listPayments(w http.ResponseWriter, r *http.Request) {
	list, err := h.Payments.ListPayments(r.Context(), r.URL.Query().Get("orderId"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, list, "")
}
