// Package otel turns bus events into OpenTelemetry spans: one span per HTTP
// request, a child span per evaluation, and grandchildren for every
// provider and remote call the evaluation makes.
package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/hanpama/fieldcover/internal/eventbus"
	"github.com/hanpama/fieldcover/internal/events"
	"github.com/hanpama/fieldcover/internal/reqid"
)

const tracerName = "github.com/hanpama/fieldcover"

// Setup configures an OTLP/gRPC exporter and attaches the span subscriber.
// If endpoint is empty, no telemetry is configured.
func Setup(ctx context.Context, endpoint, service string, insecure bool) (shutdown func(context.Context) error, err error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exp, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(service),
		)),
	)
	otel.SetTracerProvider(tp)

	unsubscribe := Subscribe(tp.Tracer(tracerName))
	return func(ctx context.Context) error {
		unsubscribe()
		return tp.Shutdown(ctx)
	}, nil
}

// Subscribe records spans with tracer for events on the global bus.
func Subscribe(tracer trace.Tracer) (unsubscribe func()) {
	s := &subscriber{tracer: tracer}
	return s.register()
}

// subscriber tracks open spans by reqid scope. HTTP requests and
// evaluations each open their own scope, so concurrent work never shares a
// key even when request IDs repeat.
type subscriber struct {
	tracer     trace.Tracer
	httpSpans  sync.Map // scope -> trace.Span
	evalSpans  sync.Map // scope -> trace.Span
	childSpans sync.Map // scope + "|" + name -> trace.Span
}

func (s *subscriber) parent(ctx context.Context, m *sync.Map, rid string) context.Context {
	if v, ok := m.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func finish(m *sync.Map, key string, err error, attrs ...attribute.KeyValue) {
	v, ok := m.LoadAndDelete(key)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *subscriber) register() func() {
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
			scope, _ := reqid.Scope(ctx)
			_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
			span.SetAttributes(
				semconv.HTTPMethodKey.String(e.Request.Method),
				attribute.String("http.target", e.Request.URL.Path),
			)
			if rid, ok := reqid.FromContext(ctx); ok {
				span.SetAttributes(attribute.String("fieldcover.request_id", rid))
			}
			s.httpSpans.Store(scope, span)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			scope, _ := reqid.Scope(ctx)
			finish(&s.httpSpans, scope, nil,
				semconv.HTTPStatusCodeKey.Int(e.Status),
				attribute.Int("fieldcover.queries", e.Queries),
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.EvalStart) {
			scope, parent := reqid.Scope(ctx)
			_, span := s.tracer.Start(s.parent(ctx, &s.httpSpans, parent), "fieldcover.eval")
			span.SetAttributes(attribute.StringSlice("fieldcover.query", e.Query))
			if rid, ok := reqid.FromContext(ctx); ok {
				span.SetAttributes(attribute.String("fieldcover.request_id", rid))
			}
			s.evalSpans.Store(scope, span)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.EvalFinish) {
			scope, _ := reqid.Scope(ctx)
			finish(&s.evalSpans, scope, e.Err, attribute.StringSlice("fieldcover.providers", e.Providers))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ProviderStart) {
			scope, _ := reqid.Scope(ctx)
			_, span := s.tracer.Start(s.parent(ctx, &s.evalSpans, scope), "fieldcover.provider")
			span.SetAttributes(
				attribute.String("fieldcover.provider", e.Provider),
				attribute.StringSlice("fieldcover.outputs", e.Outputs),
			)
			s.childSpans.Store(scope+"|"+e.Provider, span)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ProviderFinish) {
			scope, _ := reqid.Scope(ctx)
			finish(&s.childSpans, scope+"|"+e.Provider, e.Err)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.RemoteCallStart) {
			scope, _ := reqid.Scope(ctx)
			_, span := s.tracer.Start(s.parent(ctx, &s.evalSpans, scope), "grpc.client", trace.WithSpanKind(trace.SpanKindClient))
			span.SetAttributes(
				semconv.RPCSystemGRPC,
				semconv.RPCMethodKey.String(e.Method),
				attribute.String("net.peer.name", e.Target),
			)
			s.childSpans.Store(scope+"|rpc|"+e.Target, span)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.RemoteCallFinish) {
			scope, _ := reqid.Scope(ctx)
			finish(&s.childSpans, scope+"|rpc|"+e.Target, e.Err, attribute.String("grpc.code", e.Code.String()))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
