package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/fieldcover/internal/eventbus"
	"github.com/hanpama/fieldcover/internal/events"
)

func TestSubscribe_CountsEvents(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	m := New()
	unsub := m.Subscribe()
	defer unsub()

	ctx := context.Background()
	eventbus.Publish(ctx, events.EvalFinish{Providers: []string{"GetSorted", "GetVar"}, Duration: time.Millisecond})
	eventbus.Publish(ctx, events.EvalFinish{Err: errors.New("boom")})
	eventbus.Publish(ctx, events.ProviderFinish{Provider: "GetVar"})
	eventbus.Publish(ctx, events.ProviderFinish{Provider: "GetVar"})
	eventbus.Publish(ctx, events.HTTPFinish{Request: httptest.NewRequest("POST", "/", nil), Status: 200})

	require.Equal(t, 1.0, testutil.ToFloat64(m.evals.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.evals.WithLabelValues("error")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.providerCalls.WithLabelValues("GetVar", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("200")))
	require.Equal(t, 1, testutil.CollectAndCount(m.providersPerEval))
}

func TestHandler_ServesRegistry(t *testing.T) {
	m := New()
	m.evals.WithLabelValues("ok").Inc()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	require.Contains(t, rec.Body.String(), `fieldcover_evals_total{outcome="ok"} 1`)
}
