package www

import (
	"net/http"

	"wmscore/engine"
	"wmscore/store"
)

func actor(r *http.Request) string {
	return identityFrom(r.Context()).Username
}

func (h *Handlers) apiAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req engine.AdjustRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.idempotent(w, r, req, func() (any, error) {
		return h.engine.AdjustStock(r.Context(), actor(r), req)
	})
}

func (h *Handlers) apiListStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.engine.DB().ListStock(r.Context(), store.StockFilter{
		MaterialID: queryInt64(r, "material_id"),
		LocationID: queryInt64(r, "location_id"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []*store.StockRow{}
	}
	h.jsonOK(w, rows)
}

func (h *Handlers) apiLocationStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.engine.DB().GetLocation(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	state, err := h.stock.GetLocationState(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, state)
}

func (h *Handlers) apiLocationStates(w http.ResponseWriter, r *http.Request) {
	states, err := h.stock.GetAllLocationStates(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, states)
}

func (h *Handlers) apiListStockMoves(w http.ResponseWriter, r *http.Request) {
	moves, err := h.engine.DB().ListStockMoves(r.Context(), store.StockMoveFilter{
		MaterialID: queryInt64(r, "material_id"),
		RefID:      queryInt64(r, "ref_id"),
		MoveType:   r.URL.Query().Get("move_type"),
		Limit:      queryLimit(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if moves == nil {
		moves = []*store.StockMove{}
	}
	h.jsonOK(w, moves)
}

func (h *Handlers) apiListOperationLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	logs, err := h.engine.DB().ListOperationLogs(r.Context(), store.OperationLogFilter{
		Module:   q.Get("module"),
		Entity:   q.Get("entity"),
		EntityID: queryInt64(r, "entity_id"),
		TraceID:  q.Get("trace_id"),
		Limit:    queryLimit(r),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if logs == nil {
		logs = []*store.OperationLog{}
	}
	h.jsonOK(w, logs)
}
