package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/hanpama/fieldcover/internal/evaluator"
	"github.com/hanpama/fieldcover/internal/field"
	"github.com/hanpama/fieldcover/internal/provider"
	"github.com/hanpama/fieldcover/internal/reqid"
	"github.com/hanpama/fieldcover/internal/stats"
)

func newTestHandler(t *testing.T, opts ...Option) *Handler {
	t.Helper()
	ev, err := evaluator.New(stats.Universe(), stats.Providers())
	require.NoError(t, err)
	return New(ev, opts...)
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type wireResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Path       []any          `json:"path"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
	Extensions struct {
		Providers []string `json:"providers"`
		RequestID string   `json:"requestId"`
	} `json:"extensions"`
}

func decode(t *testing.T, b []byte) wireResponse {
	t.Helper()
	var r wireResponse
	require.NoError(t, json.Unmarshal(b, &r))
	return r
}

func TestEval_KeepsSelectionOrderAndAliases(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, `{"query":"{ max spread: range min }","variables":{"input":[1,5,8,2,6,3]}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body)
	}
	r := decode(t, w.Body.Bytes())
	require.Empty(t, r.Errors)
	require.JSONEq(t, `{"max":8,"spread":7,"min":1}`, string(r.Data))
	require.True(t, strings.HasPrefix(string(r.Data), `{"max":8,"spread":7`), "keys must keep selection order: %s", r.Data)
	require.Equal(t, []string{"GetRange"}, r.Extensions.Providers)
	require.Equal(t, w.Header().Get(RequestIDHeader), r.Extensions.RequestID)
}

func TestEval_SameFieldTwice(t *testing.T) {
	h := newTestHandler(t)
	w := post(t, h, `{"query":"{ a: min b: min }","variables":{"input":[4,2]}}`)
	r := decode(t, w.Body.Bytes())
	require.Empty(t, r.Errors)
	require.JSONEq(t, `{"a":2,"b":2}`, string(r.Data))

	w = post(t, h, `{"query":"{ a: min a: max }","variables":{"input":[4,2]}}`)
	r = decode(t, w.Body.Bytes())
	require.Len(t, r.Errors, 1)
	require.Equal(t, codeBadUserInput, r.Errors[0].Extensions["code"])
}

func TestEval_ErrorCodes(t *testing.T) {
	h := newTestHandler(t)
	cases := []struct {
		body string
		code string
	}{
		{`{"query":"{ min "}`, codeParseFailed},
		{`{"query":"{ mode }","variables":{"input":[1]}}`, codeBadUserInput},
		{`{"query":"{ min }","variables":{"input":[]}}`, codeBadUserInput},
		{`{"query":"{ min }"}`, codeBadUserInput},
		{`{"query":"{ min { x } }","variables":{"input":[1]}}`, codeParseFailed},
	}
	for _, c := range cases {
		w := post(t, h, c.body)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", c.body, w.Code)
		}
		r := decode(t, w.Body.Bytes())
		require.Len(t, r.Errors, 1, c.body)
		require.Equal(t, c.code, r.Errors[0].Extensions["code"], c.body)
		require.Equal(t, "null", string(r.Data), c.body)
	}
}

func TestEval_UnknownFieldHasPath(t *testing.T) {
	h := newTestHandler(t)
	r := decode(t, post(t, h, `{"query":"{ mode }","variables":{"input":[1]}}`).Body.Bytes())
	if diff := cmp.Diff([]any{"mode"}, r.Errors[0].Path); diff != "" {
		t.Fatalf("path mismatch (-want +got):\n%s", diff)
	}
}

func TestEval_Uncoverable(t *testing.T) {
	u := field.MustDeclare(field.Field{Name: "a"}, field.Field{Name: "b"})
	ev, err := evaluator.New(u, []provider.Provider{
		provider.New("A", []string{"a"}, func(context.Context, any) ([]any, error) { return []any{1}, nil }),
	})
	require.NoError(t, err)
	r := decode(t, post(t, New(ev), `{"query":"{ a b }"}`).Body.Bytes())
	require.Equal(t, codeUncoverable, r.Errors[0].Extensions["code"])
}

func TestGET(t *testing.T) {
	h := newTestHandler(t)
	q := url.Values{"query": {"{ count sum }"}, "variables": {`{"input":[1,2,3]}`}}
	req := httptest.NewRequest("GET", "/?"+q.Encode(), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	r := decode(t, w.Body.Bytes())
	require.JSONEq(t, `{"count":3,"sum":6}`, string(r.Data))
	require.Equal(t, []string{"GetSum"}, r.Extensions.Providers)
}

func TestBatch(t *testing.T) {
	h := newTestHandler(t, WithBatchConcurrency(2))
	w := post(t, h, `[
		{"query":"{ min }","variables":{"input":[3,1]}},
		{"query":"{ mode }","variables":{"input":[3,1]}},
		{"query":"{ avg var }","variables":{"input":[2,4]}}
	]`)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var out []wireResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 3)
	require.JSONEq(t, `{"min":1}`, string(out[0].Data))
	require.Len(t, out[1].Errors, 1)
	require.JSONEq(t, `{"avg":3,"var":1}`, string(out[2].Data))
	require.Equal(t, out[0].Extensions.RequestID, out[2].Extensions.RequestID)

	w = post(t, h, `[]`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBadRequests(t *testing.T) {
	h := newTestHandler(t)
	require.Equal(t, http.StatusBadRequest, post(t, h, `{nope`).Code)
	require.Equal(t, http.StatusBadRequest, post(t, h, `{"variables":{}}`).Code)

	req := httptest.NewRequest("PUT", "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	req = httptest.NewRequest("POST", "/", strings.NewReader("query=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForwardedHeaders(t *testing.T) {
	u := field.MustDeclare(field.Field{Name: "who", Kind: field.KindString})
	var captured metadata.MD
	var capturedID string
	ev, err := evaluator.New(u, []provider.Provider{
		provider.New("Who", []string{"who"}, func(ctx context.Context, _ any) ([]any, error) {
			captured, _ = metadata.FromOutgoingContext(ctx)
			capturedID, _ = reqid.FromContext(ctx)
			return []any{"me"}, nil
		}),
	})
	require.NoError(t, err)
	h := New(ev, WithMetadataHeaders("X-Test"))

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ who }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test", "abc")
	req.Header.Set("X-Other", "nope")
	req.Header.Set(RequestIDHeader, "given-id")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if captured == nil || captured.Get("x-test")[0] != "abc" || len(captured.Get("x-other")) > 0 {
		t.Fatalf("metadata not propagated correctly: %v", captured)
	}
	require.Equal(t, "given-id", capturedID)
	require.Equal(t, "given-id", w.Header().Get(RequestIDHeader))
}

func TestCORSAndPreflight(t *testing.T) {
	h := newTestHandler(t, WithCORS("*"))

	req := httptest.NewRequest("POST", "/", bytes.NewBufferString(`{"query":"{ min }","variables":{"input":[1]}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://example.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("missing CORS header")
	}

	pre := httptest.NewRequest("OPTIONS", "/", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "X-Test")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	if pw.Code != http.StatusNoContent {
		t.Fatalf("preflight status %d", pw.Code)
	}
	if pw.Header().Get("Access-Control-Allow-Headers") != "X-Test" {
		t.Fatalf("preflight missing allow headers")
	}
}

func TestMaxBodyBytes(t *testing.T) {
	h := newTestHandler(t, WithMaxBodyBytes(10))
	w := post(t, h, `{"query":"1234567890"}`)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 got %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestHandler(t, WithRateLimit(0.001, 1))
	body := `{"query":"{ min }","variables":{"input":[1]}}`
	require.Equal(t, http.StatusOK, post(t, h, body).Code)
	w := post(t, h, body)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	r := decode(t, w.Body.Bytes())
	require.Equal(t, codeRateLimited, r.Errors[0].Extensions["code"])
}

func TestTimeout(t *testing.T) {
	u := field.MustDeclare(field.Field{Name: "slow"})
	var calls atomic.Int32
	ev, err := evaluator.New(u, []provider.Provider{
		provider.New("Slow", []string{"slow"}, func(ctx context.Context, _ any) ([]any, error) {
			calls.Add(1)
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	})
	require.NoError(t, err)
	h := New(ev, WithTimeout(10*time.Millisecond))
	r := decode(t, post(t, h, `{"query":"{ slow }"}`).Body.Bytes())
	require.Equal(t, codeTimeout, r.Errors[0].Extensions["code"])
	require.Equal(t, int32(1), calls.Load())
}
