package www

import (
	"net/http"

	"wmscore/engine"
	"wmscore/store"
)

func (h *Handlers) apiCreateContainer(w http.ResponseWriter, r *http.Request) {
	var req engine.ContainerRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.engine.CreateContainer(r.Context(), actor(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, c)
}

func (h *Handlers) apiListContainers(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.DB().ListContainers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*store.Container{}
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiDeleteContainer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.engine.DeleteContainer(r.Context(), actor(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "deleted"})
}

type bindRequest struct {
	LocationID int64 `json:"location_id"`
}

func (h *Handlers) apiBindContainer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req bindRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.LocationID <= 0 {
		h.writeError(w, r, store.Errorf(store.KindInvalid, "location_id is required"))
		return
	}
	c, err := h.engine.BindContainer(r.Context(), actor(r), id, req.LocationID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, c)
}

func (h *Handlers) apiUnbindContainer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	changed, err := h.engine.UnbindContainer(r.Context(), actor(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	status := "ok"
	if !changed {
		status = "already"
	}
	h.jsonOK(w, map[string]string{"status": status})
}

type moveRequest struct {
	ToLocationID int64  `json:"to_location_id"`
	Note         string `json:"note"`
}

func (h *Handlers) apiMoveContainer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req moveRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.ToLocationID <= 0 {
		h.writeError(w, r, store.Errorf(store.KindInvalid, "to_location_id is required"))
		return
	}
	c, err := h.engine.MoveContainer(r.Context(), actor(r), id, req.ToLocationID, req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, c)
}

func (h *Handlers) apiAdjustContainerStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req engine.ContainerAdjustRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	req.ContainerID = id
	h.idempotent(w, r, req, func() (any, error) {
		return h.engine.AdjustContainerStock(r.Context(), actor(r), req)
	})
}

func (h *Handlers) apiListContainerStock(w http.ResponseWriter, r *http.Request) {
	rows, err := h.engine.DB().ListContainerStock(r.Context(), store.ContainerStockFilter{
		ContainerID: queryInt64(r, "container_id"),
		MaterialID:  queryInt64(r, "material_id"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []*store.ContainerStockRow{}
	}
	h.jsonOK(w, rows)
}

func (h *Handlers) apiListContainerMoves(w http.ResponseWriter, r *http.Request) {
	moves, err := h.engine.DB().ListContainerMoves(r.Context(), queryInt64(r, "container_id"), queryLimit(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if moves == nil {
		moves = []*store.ContainerMove{}
	}
	h.jsonOK(w, moves)
}
