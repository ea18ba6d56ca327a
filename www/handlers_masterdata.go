package www

import (
	"net/http"

	"wmscore/store"
)

func (h *Handlers) apiCreateWarehouse(w http.ResponseWriter, r *http.Request) {
	var wh store.Warehouse
	if err := decode(r, &wh); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.engine.CreateWarehouse(r.Context(), actor(r), &wh); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, wh)
}

func (h *Handlers) apiListWarehouses(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.DB().ListWarehouses(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*store.Warehouse{}
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiDeleteWarehouse(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.engine.DeleteWarehouse(r.Context(), actor(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "deleted"})
}

func (h *Handlers) apiCreateLocation(w http.ResponseWriter, r *http.Request) {
	var l store.Location
	if err := decode(r, &l); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.engine.CreateLocation(r.Context(), actor(r), &l); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, l)
}

func (h *Handlers) apiListLocations(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.DB().ListLocations(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*store.Location{}
	}
	h.jsonOK(w, list)
}

type locationStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handlers) apiSetLocationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req locationStatusRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.engine.SetLocationStatus(r.Context(), actor(r), id, req.Status); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, statusOK)
}

func (h *Handlers) apiDeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.engine.DeleteLocation(r.Context(), actor(r), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, map[string]string{"status": "deleted"})
}

func (h *Handlers) apiCreateMaterial(w http.ResponseWriter, r *http.Request) {
	var m store.Material
	if err := decode(r, &m); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.engine.CreateMaterial(r.Context(), actor(r), &m); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, m)
}

func (h *Handlers) apiListMaterials(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.DB().ListMaterials(r.Context(), r.URL.Query().Get("include_inactive") == "1")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if list == nil {
		list = []*store.Material{}
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiDeleteMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.engine.DeleteMaterial(r.Context(), actor(r), id, r.URL.Query().Get("force") == "1")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.jsonOK(w, out)
}
