// Package idempotency makes retried mutating requests safe. A client
// supplies an Idempotency-Key; the first request with that key runs, later
// requests with the same key and payload get the first response back.
package idempotency

import (
	"context"

	"wmscore/logging"
	"wmscore/store"
)

// Request identifies one mutating call. Payload is the decoded request
// body; it is fingerprinted, never stored.
type Request struct {
	UserID  int64
	Method  string
	Path    string
	Key     string
	Payload any
}

func (r Request) scope() store.IdempotencyScope {
	return store.IdempotencyScope{UserID: r.UserID, Method: r.Method, Path: r.Path, Key: r.Key}
}

// Result labels, as reported in Outcome.Result.
const (
	ResultUnkeyed = "unkeyed"
	ResultProceed = "proceed"
	ResultReplay  = "replay"
)

// Outcome is what Begin decided. With Replay set, Body holds the stored
// response and the caller must not execute the operation.
type Outcome struct {
	Replay      bool
	StatusCode  int
	Body        []byte
	Fingerprint string
	Result      string
}

// Cache is an optional fast path in front of the record table. Misses and
// cache errors always fall through to the database.
type Cache interface {
	Get(ctx context.Context, s store.IdempotencyScope) (*Entry, bool)
	Put(ctx context.Context, s store.IdempotencyScope, e *Entry)
}

// Entry is one finalized response as the cache holds it.
type Entry struct {
	RequestHash string `json:"request_hash"`
	StatusCode  int    `json:"status_code"`
	Body        []byte `json:"body"`
}

type Gateway struct {
	db    *store.DB
	cache Cache
}

// New builds a Gateway over the connection pool. cache may be nil.
func New(db *store.DB, cache Cache) *Gateway {
	return &Gateway{db: db, cache: cache}
}

// Begin claims the request's key, or reports how an earlier request with
// the same key ended.
func (g *Gateway) Begin(ctx context.Context, req Request) (Outcome, error) {
	if req.Key == "" {
		return Outcome{Result: ResultUnkeyed}, nil
	}
	fp, err := Fingerprint(req.Payload)
	if err != nil {
		return Outcome{}, err
	}
	s := req.scope()

	if g.cache != nil {
		if e, ok := g.cache.Get(ctx, s); ok && e.RequestHash == fp {
			return replay(fp, e.StatusCode, e.Body), nil
		}
	}

	rec, err := g.db.GetIdempotencyRecord(ctx, s)
	if err != nil {
		return Outcome{}, err
	}
	if rec != nil {
		return decide(rec, fp)
	}

	inserted, err := g.db.InsertIdempotencyLock(ctx, s, fp)
	if err != nil {
		return Outcome{}, err
	}
	if inserted {
		return Outcome{Fingerprint: fp, Result: ResultProceed}, nil
	}

	// Lost the insert race: the winner's record decides.
	rec, err = g.db.GetIdempotencyRecord(ctx, s)
	if err != nil {
		return Outcome{}, err
	}
	if rec != nil && rec.StatusCode != 0 && rec.RequestHash == fp {
		return replay(fp, rec.StatusCode, rec.ResponseBody), nil
	}
	return Outcome{}, store.Errorf(store.KindDuplicateInFlight, "a request with this Idempotency-Key is already in progress")
}

func decide(rec *store.IdempotencyRecord, fp string) (Outcome, error) {
	switch {
	case rec.RequestHash != fp:
		return Outcome{}, store.Errorf(store.KindKeyReuseConflict, "Idempotency-Key was already used with a different payload")
	case rec.StatusCode == 0:
		return Outcome{}, store.Errorf(store.KindInFlightRetry, "the original request with this Idempotency-Key has not finished; retry later")
	default:
		return replay(fp, rec.StatusCode, rec.ResponseBody), nil
	}
}

func replay(fp string, status int, body []byte) Outcome {
	return Outcome{Replay: true, StatusCode: status, Body: body, Fingerprint: fp, Result: ResultReplay}
}

// Finalize stores the committed response so retries replay it. A failure
// here leaves the record in flight; the operation itself has already
// committed, so the error is logged rather than surfaced.
func (g *Gateway) Finalize(ctx context.Context, req Request, fingerprint string, status int, body []byte) {
	if req.Key == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s := req.scope()
	if err := g.db.FinalizeIdempotency(ctx, s, fingerprint, status, body); err != nil {
		logging.Error(ctx).Err(err).Str("key", req.Key).Str("path", req.Path).Msg("idempotency: finalize failed")
		return
	}
	if g.cache != nil {
		g.cache.Put(ctx, s, &Entry{RequestHash: fingerprint, StatusCode: status, Body: body})
	}
}

// Abort releases an in-flight claim after the operation failed, so the
// client may retry with the same key.
func (g *Gateway) Abort(ctx context.Context, req Request) {
	if req.Key == "" {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if err := g.db.ReleaseIdempotencyLock(ctx, req.scope()); err != nil {
		logging.Warn(ctx).Err(err).Str("key", req.Key).Str("path", req.Path).Msg("idempotency: abort failed")
	}
}
