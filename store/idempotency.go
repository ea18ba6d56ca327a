package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IdempotencyRecord pins one client key to the request it first carried.
// StatusCode 0 means the first attempt is still executing.
type IdempotencyRecord struct {
	ID             int64
	UserID         int64
	Method         string
	Path           string
	IdempotencyKey string
	RequestHash    string
	StatusCode     int
	ResponseBody   []byte
	CreatedAt      time.Time
}

// IdempotencyScope is the unique identity of a record.
type IdempotencyScope struct {
	UserID int64
	Method string
	Path   string
	Key    string
}

func (db *DB) GetIdempotencyRecord(ctx context.Context, s IdempotencyScope) (*IdempotencyRecord, error) {
	var r IdempotencyRecord
	var body sql.NullString
	var createdAt any
	err := db.QueryRowContext(ctx, db.Q(`SELECT id, user_id, method, path, idempotency_key, request_hash, status_code, response_body, created_at
		FROM idempotency_records WHERE user_id = ? AND method = ? AND path = ? AND idempotency_key = ?`),
		s.UserID, s.Method, s.Path, s.Key).
		Scan(&r.ID, &r.UserID, &r.Method, &r.Path, &r.IdempotencyKey, &r.RequestHash, &r.StatusCode, &body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency record: %w", err)
	}
	if body.Valid {
		r.ResponseBody = []byte(body.String)
	}
	r.CreatedAt = parseTime(createdAt)
	return &r, nil
}

// InsertIdempotencyLock creates the in-flight record. It reports false,
// without error, when another request already holds the scope.
func (db *DB) InsertIdempotencyLock(ctx context.Context, s IdempotencyScope, requestHash string) (bool, error) {
	_, err := db.ExecContext(ctx, db.Q(`INSERT INTO idempotency_records (user_id, method, path, idempotency_key, request_hash, status_code) VALUES (?, ?, ?, ?, ?, 0)`),
		s.UserID, s.Method, s.Path, s.Key, requestHash)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert idempotency record: %w", err)
	}
	return true, nil
}

func (db *DB) FinalizeIdempotency(ctx context.Context, s IdempotencyScope, requestHash string, statusCode int, body []byte) error {
	_, err := db.ExecContext(ctx, db.Q(`UPDATE idempotency_records SET status_code = ?, response_body = ?
		WHERE user_id = ? AND method = ? AND path = ? AND idempotency_key = ? AND request_hash = ?`),
		statusCode, string(body), s.UserID, s.Method, s.Path, s.Key, requestHash)
	if err != nil {
		return fmt.Errorf("finalize idempotency record: %w", err)
	}
	return nil
}

// ReleaseIdempotencyLock deletes the record only while it is still in
// flight, so a finalized response is never lost.
func (db *DB) ReleaseIdempotencyLock(ctx context.Context, s IdempotencyScope) error {
	_, err := db.ExecContext(ctx, db.Q(`DELETE FROM idempotency_records
		WHERE user_id = ? AND method = ? AND path = ? AND idempotency_key = ? AND status_code = 0`),
		s.UserID, s.Method, s.Path, s.Key)
	if err != nil {
		return fmt.Errorf("release idempotency record: %w", err)
	}
	return nil
}

// PurgeIdempotencyRecords removes finalized records older than cutoff and
// in-flight records older than staleCutoff. An in-flight record that old
// was orphaned by a crash and would otherwise block its key forever.
func (db *DB) PurgeIdempotencyRecords(ctx context.Context, cutoff, staleCutoff time.Time) (int64, error) {
	const layout = "2006-01-02 15:04:05"
	res, err := db.ExecContext(ctx, db.Q(`DELETE FROM idempotency_records
		WHERE (status_code <> 0 AND created_at < ?) OR (status_code = 0 AND created_at < ?)`),
		cutoff.Local().Format(layout), staleCutoff.Local().Format(layout))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
