package www

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Driver   string `json:"driver"`
	Redis    string `json:"redis"`
}

func (h *Handlers) apiHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Database: "ok", Driver: h.engine.DB().Driver(), Redis: "disabled"}
	code := http.StatusOK
	if err := h.engine.DB().PingContext(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
		code = http.StatusServiceUnavailable
	}
	if h.redisPing != nil {
		if err := h.redisPing(ctx); err != nil {
			// Redis only backs caches; the service keeps serving from SQL.
			resp.Redis = err.Error()
		} else {
			resp.Redis = "ok"
		}
	}
	writeJSON(w, code, resp)
}
