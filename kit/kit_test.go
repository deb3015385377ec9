package kit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	chained := Chain(mw("a"), mw("b"), mw("c"))(base)
	resp, err := chained(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "c_before", "endpoint", "c_after", "b_after", "a_after"}
	if len(order) != len(expected) {
		t.Fatalf("order length: got %d, want %d", len(order), len(expected))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Fatalf("order[%d]: got %q, want %q", i, order[i], v)
		}
	}
}

func TestChain_ErrorPropagation(t *testing.T) {
	errFail := errors.New("fail")
	base := func(_ context.Context, _ any) (any, error) {
		return nil, errFail
	}

	noop := func(next Endpoint) Endpoint { return next }
	chained := Chain(noop)(base)

	_, err := chained(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}
}

func TestTraceIDs_MintsWhenAbsent(t *testing.T) {
	var seen string
	base := func(ctx context.Context, _ any) (any, error) {
		seen = GetTraceID(ctx)
		return nil, nil
	}

	wrapped := TraceIDs(func() string { return "trc_minted" })(base)
	if _, err := wrapped(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if seen != "trc_minted" {
		t.Fatalf("trace id: got %q, want trc_minted", seen)
	}
}

func TestTraceIDs_KeepsExisting(t *testing.T) {
	var seen string
	base := func(ctx context.Context, _ any) (any, error) {
		seen = GetTraceID(ctx)
		return nil, nil
	}

	wrapped := TraceIDs(func() string { return "trc_new" })(base)
	ctx := WithTraceID(context.Background(), "trc_http")
	if _, err := wrapped(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if seen != "trc_http" {
		t.Fatalf("trace id: got %q, want trc_http", seen)
	}
}

func TestLogging_RecordsOutcome(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	ok := Logging(logger, "convert")(func(_ context.Context, _ any) (any, error) {
		return "ok", nil
	})
	if _, err := ok(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "endpoint ok") || !strings.Contains(buf.String(), "op=convert") {
		t.Fatalf("success log missing fields: %s", buf.String())
	}

	buf.Reset()
	fail := Logging(logger, "convert")(func(_ context.Context, _ any) (any, error) {
		return nil, errors.New("boom")
	})
	if _, err := fail(context.Background(), nil); err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(buf.String(), "endpoint failed") || !strings.Contains(buf.String(), "boom") {
		t.Fatalf("error log missing fields: %s", buf.String())
	}
}

func TestContext_TraceID(t *testing.T) {
	if v := GetTraceID(context.Background()); v != "" {
		t.Fatalf("empty context: got %q", v)
	}
	ctx := WithTraceID(context.Background(), "trc_123")
	if v := GetTraceID(ctx); v != "trc_123" {
		t.Fatalf("after set: got %q", v)
	}
}

func TestContext_TransportDefaultsToHTTP(t *testing.T) {
	if v := GetTransport(context.Background()); v != "http" {
		t.Fatalf("default transport: got %q", v)
	}
	ctx := WithTransport(context.Background(), "mcp")
	if v := GetTransport(ctx); v != "mcp" {
		t.Fatalf("after set: got %q", v)
	}
}
