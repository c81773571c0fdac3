package httpx

import (
	"net/http"

	"github.com/ariefcatur/go-meatshop-orders/internal/apperr"
	"github.com/ariefcatur/go-meatshop-orders/internal/inventory"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type StockHandler struct {
	Stock  *inventory.Service
	Logger *zap.Logger
}

func (h *StockHandler) Register(r chi.Router) {
	r.Route("/api/stock", func(r chi.Router) {
		r.Get("/", h.listStock)
		r.Get("/alerts", h.alerts)
		r.Get("/movements", h.movements)
		r.Post("/update", h.update)
		r.Post("/bulk-update", h.bulkUpdate)
		r.Post("/restock/{productId}", h.restock)
		r.Get("/{productId}", h.getStock)
	})
}

func (h *StockHandler) update(w http.ResponseWriter, r *http.Request) {
	var req inventory.AdjustInput
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	req.PerformedBy = actor(r, "admin")
	item, err := h.Stock.AdjustStock(r.Context(), req)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, item, "stock updated")
}

type bulkReq struct {
	Updates []inventory.AdjustInput `json:"updates"`
}

func (h *StockHandler) bulkUpdate(w http.ResponseWriter, r *http.Request) {
	var req bulkReq
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if len(req.Updates) == 0 {
		writeError(w, r, h.Logger, apperr.Validation("updates must not be empty"))
		return
	}
	by := actor(r, "admin")
	for i := range req.Updates {
		req.Updates[i].PerformedBy = by
	}
	results := h.Stock.BulkAdjust(r.Context(), req.Updates)
	failed := 0
	for _, res := range results {
		if !res.Success {
			failed++
		}
	}
	msg := "all updates applied"
	if failed > 0 {
		msg = "some updates failed"
	}
	ok(w, http.StatusOK, results, msg)
}

type restockReq struct {
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
	Notes    string           `json:"notes,omitempty"`
}

func (h *StockHandler) restock(w http.ResponseWriter, r *http.Request) {
	var req restockReq
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	item, err := h.Stock.Restock(r.Context(), chi.URLParam(r, "productId"), req.Quantity, actor(r, "admin"), req.Notes)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, item, "stock replenished")
}

func (h *StockHandler) alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.Stock.LowStockAlerts(r.Context())
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, alerts, "")
}

func (h *StockHandler) listStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.Stock.ListStock(r.Context())
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, items, "")
}

func (h *StockHandler) getStock(w http.ResponseWriter, r *http.Request) {
	item, err := h.Stock.GetStock(r.Context(), chi.URLParam(r, "productId"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, item, "")
}

func (h *StockHandler) movements(w http.ResponseWriter, r *http.Request) {
	mvs, err := h.Stock.ListMovements(r.Context(), r.URL.Query().Get("productId"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	ok(w, http.StatusOK, mvs, "")
}
