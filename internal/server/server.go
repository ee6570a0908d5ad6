// Package server exposes an Evaluator over HTTP with GraphQL-style
// requests. A query such as `{ min spread: range }` selects fields (and
// response keys); the numbers to evaluate come from the "input" variable.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"google.golang.org/grpc/metadata"

	"github.com/hanpama/fieldcover/internal/evaluator"
	"github.com/hanpama/fieldcover/internal/eventbus"
	"github.com/hanpama/fieldcover/internal/events"
	"github.com/hanpama/fieldcover/internal/reqid"
)

// RequestIDHeader is read from requests and echoed on responses.
const RequestIDHeader = "X-Request-Id"

// Handler is an http.Handler that serves evaluation requests.
type Handler struct {
	ev      *evaluator.Evaluator
	opt     Options
	limiter *rate.Limiter
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// MetadataHeaders lists HTTP headers to forward as gRPC metadata to
	// remote providers. Header names are case-insensitive.
	MetadataHeaders []string

	// RateLimit is the sustained number of requests per second; 0 disables
	// limiting. Burst defaults to 1 when limiting is on.
	RateLimit float64
	Burst     int

	// BatchConcurrency bounds how many items of a batch evaluate at once.
	// 0 means one at a time.
	BatchConcurrency int
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithMetadataHeaders(headers ...string) Option {
	return func(o *Options) { o.MetadataHeaders = headers }
}
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *Options) { o.RateLimit, o.Burst = perSecond, burst }
}
func WithBatchConcurrency(n int) Option { return func(o *Options) { o.BatchConcurrency = n } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a handler serving ev.
func New(ev *evaluator.Evaluator, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second}
	for _, f := range opts {
		f(&op)
	}
	h := &Handler{ev: ev, opt: op}
	if op.RateLimit > 0 {
		burst := op.Burst
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(op.RateLimit), burst)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	var rid string
	if id := r.Header.Get(RequestIDHeader); id != "" {
		ctx, rid = reqid.WithID(ctx, id), id
	} else {
		ctx, rid = reqid.NewContext(ctx)
	}
	w.Header().Set(RequestIDHeader, rid)
	ctx, _ = reqid.NewScope(ctx)

	status, queries := http.StatusOK, 0
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Queries: queries, Duration: time.Since(start)})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}
	if r.Method == http.MethodOptions {
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse(requestError(codeBadRequest, "method not allowed")), h.opt.Pretty)
		return
	}
	if h.limiter != nil && !h.limiter.Allow() {
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", "1")
		writeJSON(w, status, errorResponse(requestError(codeRateLimited, "rate limit exceeded")), h.opt.Pretty)
		return
	}

	ctx = h.forwardHeaders(ctx, r)

	req, batch, berr := parseRequest(r, h.opt.MaxBodyBytes)
	if berr != nil {
		status = http.StatusBadRequest
		if berr.Message == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(berr), h.opt.Pretty)
		return
	}

	if batch == nil {
		queries = 1
		writeJSON(w, status, h.executeOne(ctx, rid, req), h.opt.Pretty)
		return
	}

	queries = len(batch)
	out := make([]response, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	limit := h.opt.BatchConcurrency
	if limit <= 0 {
		limit = 1
	}
	g.SetLimit(limit)
	for i := range batch {
		id := rid + "#" + strconv.Itoa(i)
		g.Go(func() error {
			out[i] = h.executeOne(reqid.WithID(gctx, id), rid, batch[i])
			return nil
		})
	}
	_ = g.Wait()
	writeJSON(w, status, out, h.opt.Pretty)
}

func (h *Handler) forwardHeaders(ctx context.Context, r *http.Request) context.Context {
	if len(h.opt.MetadataHeaders) == 0 {
		return ctx
	}
	md := metadata.MD{}
	for _, hdr := range h.opt.MetadataHeaders {
		if v := r.Header.Values(hdr); len(v) > 0 {
			md[strings.ToLower(hdr)] = v
		}
	}
	if len(md) == 0 {
		return ctx
	}
	return metadata.NewOutgoingContext(ctx, md)
}

func (h *Handler) executeOne(ctx context.Context, rid string, req Request) response {
	q, err := parseQuery(req)
	if err != nil {
		return errorResponse(toGQLError(err))
	}
	log := &evaluator.SeqLog{}
	res, err := h.ev.Eval(ctx, q.fields, q.input, log)
	if err != nil {
		return errorResponse(toGQLError(err))
	}
	return response{
		Data: q.data(res),
		Extensions: map[string]any{
			"providers": log.Providers(),
			"requestId": rid,
		},
	}
}

// ------------------ Request parsing ------------------

// Request is one GraphQL-style request.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

func parseRequest(r *http.Request, maxBody int64) (Request, []Request, *gqlError) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return Request{}, nil, requestError(codeBadRequest, "missing 'query'")
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return Request{}, nil, requestError(codeBadRequest, "invalid 'variables' JSON")
			}
		}
		op := r.URL.Query().Get("operationName")
		return Request{Query: q, Variables: vars, OperationName: op}, nil, nil
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return Request{}, nil, requestError(codeBadRequest, "unsupported Content-Type")
	}
	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return Request{}, nil, requestError(codeBadRequest, "failed to read body")
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return Request{}, nil, requestError(codeBadRequest, errBodyTooLargeMessage)
	}

	if len(body) > 0 && body[0] == '[' {
		var arr []Request
		if err := json.Unmarshal(body, &arr); err != nil {
			return Request{}, nil, requestError(codeBadRequest, "invalid JSON")
		}
		if len(arr) == 0 {
			return Request{}, nil, requestError(codeBadRequest, "empty batch")
		}
		return Request{}, arr, nil
	}
	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		return Request{}, nil, requestError(codeBadRequest, "invalid JSON")
	}
	if req.Query == "" {
		return Request{}, nil, requestError(codeBadRequest, "missing 'query'")
	}
	return req, nil, nil
}

// ------------------ Response formatting ------------------

type response struct {
	Data       any            `json:"data"`
	Errors     gqlErrorList   `json:"errors,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

func errorResponse(err *gqlError) response {
	return response{Errors: gqlErrorList{err}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

const errBodyTooLargeMessage = "body too large"

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	wildcard, allowed := false, false
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			wildcard = true
		}
		if o == "*" || o == origin {
			allowed = true
		}
	}
	if !allowed {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Expose-Headers", RequestIDHeader)
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}
