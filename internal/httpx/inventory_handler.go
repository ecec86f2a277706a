package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shopcore/order-inventory/internal/apperr"
	"github.com/shopcore/order-inventory/internal/inventory"
)

type InventoryHandler struct {
	Service *inventory.Service
}

type createRecordReq struct {
	ProductID    string `json:"product_id" validate:"required"`
	SKU          string `json:"sku" validate:"required"`
	InitialStock int    `json:"initial_stock" validate:"min=0"`
	MinStock     int    `json:"min_stock" validate:"min=0"`
	MaxStock     int    `json:"max_stock" validate:"min=0"`
	Location     string `json:"location"`
	Supplier     string `json:"supplier"`
}

type adjustReq struct {
	Delta     int    `json:"delta" validate:"required"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

type reserveReq struct {
	Quantity  int    `json:"quantity" validate:"required,min=1"`
	Reason    string `json:"reason"`
	Reference string `json:"reference"`
}

type movementResp struct {
	Record   *inventory.InventoryRecord `json:"record"`
	Movement *inventory.StockMovement   `json:"movement"`
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	r.Post("/inventory", h.createRecord)
	r.Get("/inventory", h.listRecords)
	r.Get("/inventory/{id}", h.getRecord)
	r.Get("/inventory/sku/{sku}", h.getRecordBySKU)
	r.Delete("/inventory/{id}", h.deleteRecord)
	r.Post("/inventory/{id}/adjust", h.adjust)
	r.Post("/inventory/{id}/reserve", h.reserve)
	r.Post("/inventory/{id}/release", h.release)
	r.Get("/movements", h.listMovements)
}

func (h *InventoryHandler) createRecord(w http.ResponseWriter, r *http.Request) {
	var req createRecordReq
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, err := h.Service.CreateRecord(ctx, req.ProductID, req.SKU,
		req.InitialStock, req.MinStock, req.MaxStock, req.Location, req.Supplier)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *InventoryHandler) listRecords(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var (
		recs []inventory.InventoryRecord
		err  error
	)
	if r.URL.Query().Get("low") == "true" {
		recs, err = h.Service.ListLowStock(ctx)
	} else {
		recs, err = h.Service.ListRecords(ctx)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *InventoryHandler) getRecord(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, err := h.Service.GetRecord(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *InventoryHandler) getRecordBySKU(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	rec, err := h.Service.GetRecordBySKU(ctx, chi.URLParam(r, "sku"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *InventoryHandler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Service.DeleteRecord(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, mv, err := h.Service.AdjustStock(ctx, chi.URLParam(r, "id"),
		req.Delta, req.Reason, req.Reference, actorFrom(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movementResp{Record: rec, Movement: mv})
}

func (h *InventoryHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveReq
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, mv, err := h.Service.ReserveStock(ctx, chi.URLParam(r, "id"),
		req.Quantity, req.Reason, req.Reference, actorFrom(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movementResp{Record: rec, Movement: mv})
}

func (h *InventoryHandler) release(w http.ResponseWriter, r *http.Request) {
	var req reserveReq
	if err := bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rec, mv, err := h.Service.ReleaseStock(ctx, chi.URLParam(r, "id"),
		req.Quantity, req.Reason, req.Reference, actorFrom(r).ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movementResp{Record: rec, Movement: mv})
}

// listMovements answers the audit queries: by product, by type, or by
// time window, newest first.
func (h *InventoryHandler) listMovements(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	q := r.URL.Query()
	switch {
	case q.Get("product_id") != "":
		mvs, err := h.Service.MovementsByProduct(ctx, q.Get("product_id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, mvs)
	case q.Get("type") != "":
		mvs, err := h.Service.MovementsByType(ctx, inventory.MovementType(q.Get("type")))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, mvs)
	case q.Get("from") != "" && q.Get("to") != "":
		from, err := time.Parse(time.RFC3339, q.Get("from"))
		if err != nil {
			writeError(w, apperr.Validation("invalid from timestamp"))
			return
		}
		to, err := time.Parse(time.RFC3339, q.Get("to"))
		if err != nil {
			writeError(w, apperr.Validation("invalid to timestamp"))
			return
		}
		mvs, err := h.Service.MovementsBetween(ctx, from, to)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, mvs)
	default:
		writeError(w, apperr.Validation("provide product_id, type, or a from/to window"))
	}
}
