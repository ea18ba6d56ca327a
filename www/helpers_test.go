package www

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"wmscore/idempotency"
	"wmscore/metrics"
	"wmscore/store"
)

func TestIdempotentMarshalFailureFinalizesKey(t *testing.T) {
	env := newTestEnv(t)
	h := &Handlers{
		engine:  env.eng,
		gateway: idempotency.New(env.eng.DB(), nil),
		metrics: metrics.New(),
	}

	calls := 0
	call := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest("POST", "/api/inventory/adjust", nil)
		r.Header.Set("Idempotency-Key", "k-marshal")
		w := httptest.NewRecorder()
		h.idempotent(w, r, map[string]int{"delta": 1}, func() (any, error) {
			calls++
			return func() {}, nil
		})
		return w
	}

	first := call()
	if first.Code != http.StatusInternalServerError {
		t.Fatalf("first status = %d, want 500", first.Code)
	}
	rec, err := env.eng.DB().GetIdempotencyRecord(context.Background(), store.IdempotencyScope{
		Method: "POST", Path: "/api/inventory/adjust", Key: "k-marshal",
	})
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec == nil || rec.StatusCode != http.StatusInternalServerError {
		t.Fatalf("stored record = %+v, want status 500", rec)
	}

	second := call()
	if second.Code != http.StatusInternalServerError {
		t.Errorf("retry status = %d, want 500", second.Code)
	}
	if second.Header().Get(headerReplayed) != "true" {
		t.Errorf("retry was not a replay")
	}
	if calls != 1 {
		t.Errorf("fn calls = %d, want 1", calls)
	}
}
