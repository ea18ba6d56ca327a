package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestRequestMetaRoundTrip(t *testing.T) {
	ctx := WithRequestMeta(context.Background(), RequestMeta{TraceID: "abc", Source: "10.0.0.1"})
	m := RequestMetaFrom(ctx)
	if m.TraceID != "abc" || m.Source != "10.0.0.1" {
		t.Errorf("meta = %+v", m)
	}
	if got := RequestMetaFrom(context.Background()); got != (RequestMeta{}) {
		t.Errorf("empty context meta = %+v, want zero", got)
	}
}

func TestWithContextAddsTraceFields(t *testing.T) {
	var buf bytes.Buffer
	saved := Logger
	Logger = zerolog.New(&buf)
	defer func() { Logger = saved }()

	ctx := WithRequestMeta(context.Background(), RequestMeta{TraceID: "abc", Source: "scanner-3"})
	WithContext(ctx).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["trace_id"] != "abc" {
		t.Errorf("trace_id = %v, want abc", line["trace_id"])
	}
	if line["request_source"] != "scanner-3" {
		t.Errorf("request_source = %v, want scanner-3", line["request_source"])
	}
}
