package www

import (
	"net/http"

	"wmscore/engine"
	"wmscore/store"
)

type statusResponse struct {
	Status string `json:"status"`
}

var statusOK = statusResponse{Status: "ok"}

func (h *Handlers) apiCreateInbound(w http.ResponseWriter, r *http.Request) {
	var req engine.InboundRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.idempotent(w, r, req, func() (any, error) {
		id, err := h.engine.CreateInbound(r.Context(), actor(r), req)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"order_id": id}, nil
	})
}

func (h *Handlers) apiReceiveInbound(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.idempotent(w, r, map[string]int64{"order_id": id}, func() (any, error) {
		status, err := h.engine.ReceiveInbound(r.Context(), actor(r), id)
		if err != nil {
			return nil, err
		}
		return statusResponse{Status: status}, nil
	})
}

func (h *Handlers) apiCreateOutbound(w http.ResponseWriter, r *http.Request) {
	var req engine.OutboundRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.idempotent(w, r, req, func() (any, error) {
		id, err := h.engine.CreateOutbound(r.Context(), actor(r), req)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"order_id": id}, nil
	})
}

type reserveRequest struct {
	Force int `json:"force"`
}

func (h *Handlers) apiReserveOutbound(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req reserveRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.idempotent(w, r, req, func() (any, error) {
		return statusOK, h.engine.Reserve(r.Context(), actor(r), id, req.Force != 0)
	})
}

type pickRequest struct {
	StagingLocationID int64 `json:"staging_location_id"`
}

func (h *Handlers) apiPickOutbound(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req pickRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.idempotent(w, r, req, func() (any, error) {
		return statusOK, h.engine.Pick(r.Context(), actor(r), id, req.StagingLocationID)
	})
}

type packRequest struct {
	PackAll *int `json:"pack_all"`
}

func (h *Handlers) apiPackOutbound(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req packRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	packAll := req.PackAll == nil || *req.PackAll != 0
	h.idempotent(w, r, req, func() (any, error) {
		return statusOK, h.engine.Pack(r.Context(), actor(r), id, packAll)
	})
}

type shipRequest struct {
	ShipAll *int `json:"ship_all"`
}

func (h *Handlers) apiShipOutbound(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req shipRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.idempotent(w, r, req, func() (any, error) {
		return statusOK, h.engine.Ship(r.Context(), actor(r), id, true)
	})
}

func (h *Handlers) apiListOrders(w http.ResponseWriter, r *http.Request) {
	orderType := r.URL.Query().Get("order_type")
	if orderType != "" && orderType != store.OrderInbound && orderType != store.OrderOutbound {
		h.writeError(w, r, store.Errorf(store.KindInvalid, "order_type must be inbound or outbound"))
		return
	}
	orders, err := h.engine.DB().ListOrders(r.Context(), orderType, queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*store.Order{}
	}
	h.jsonOK(w, orders)
}

func (h *Handlers) apiGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	o, err := h.engine.DB().GetOrder(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, o)
}

func (h *Handlers) apiOrderLines(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.engine.DB().GetOrder(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	lines, err := h.engine.DB().ListOrderLines(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if lines == nil {
		lines = []*store.OrderLine{}
	}
	h.jsonOK(w, lines)
}

func (h *Handlers) apiOrderHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if _, err := h.engine.DB().GetOrder(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	history, err := h.engine.DB().ListOrderHistory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if history == nil {
		history = []*store.OrderHistory{}
	}
	h.jsonOK(w, history)
}
