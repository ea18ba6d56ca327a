package www

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"wmscore/idempotency"
	"wmscore/logging"
	"wmscore/store"
)

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg, kind string, code int) {
	writeJSON(w, code, errorBody{Error: msg, Kind: kind})
}

// statusFor maps a business error kind onto its HTTP status.
func statusFor(kind store.Kind) int {
	switch kind {
	case store.KindInvalidQuantity, store.KindInvalid, store.KindLocationNotOperable:
		return http.StatusBadRequest
	case store.KindNotFound:
		return http.StatusNotFound
	case store.KindInvalidTransition, store.KindLocationOccupied, store.KindConflict,
		store.KindDuplicateInFlight, store.KindKeyReuseConflict, store.KindInFlightRetry:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError renders a business error as {"error", "kind"}. Anything that
// is not a business error is logged and reported as a 500 without detail.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := store.KindOf(err)
	if kind == "" {
		logging.Error(r.Context()).Err(err).Str("path", r.URL.Path).Msg("www: internal error")
		h.jsonError(w, "internal error", "Internal", http.StatusInternalServerError)
		return
	}
	h.metrics.BusinessError(string(kind))
	h.jsonError(w, store.Reason(err), string(kind), statusFor(kind))
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return store.Errorf(store.KindInvalid, "invalid JSON body: %v", err)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, store.Errorf(store.KindInvalid, "invalid %s", name)
	}
	return id, nil
}

func queryInt64(r *http.Request, name string) int64 {
	n, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return n
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// idempotent runs fn under the request's Idempotency-Key. A replay writes
// the stored body without calling fn; an error from fn releases the key so the
// client can retry.
func (h *Handlers) idempotent(w http.ResponseWriter, r *http.Request, payload any, fn func() (any, error)) {
	ctx := r.Context()
	req := idempotency.Request{
		UserID:  identityFrom(ctx).UserID,
		Method:  r.Method,
		Path:    r.URL.Path,
		Key:     r.Header.Get("Idempotency-Key"),
		Payload: payload,
	}
	out, err := h.gateway.Begin(ctx, req)
	if err != nil {
		h.metrics.IdempotencyOutcome("rejected")
		h.writeError(w, r, err)
		return
	}
	h.metrics.IdempotencyOutcome(out.Result)
	if out.Replay {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set(headerReplayed, "true")
		w.WriteHeader(out.StatusCode)
		w.Write(out.Body)
		return
	}

	resp, err := fn()
	if err != nil {
		h.gateway.Abort(ctx, req)
		h.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	body, err := json.Marshal(resp)
	if err != nil {
		// fn has committed, so the key is finalized with the failure and
		// never released.
		logging.Error(ctx).Err(err).Str("path", r.URL.Path).Msg("www: marshal response")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorBody{Error: "internal error", Kind: "Internal"})
	}
	h.gateway.Finalize(ctx, req, out.Fingerprint, status, body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}
