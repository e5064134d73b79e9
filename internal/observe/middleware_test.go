package observe

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// newTestMiddleware wires a Middleware over in-memory metric and span
// collectors and restores the global tracer provider afterwards.
func newTestMiddleware(t *testing.T) (func(http.Handler) http.Handler, *sdkmetric.ManualReader, *tracetest.InMemoryExporter) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	return Middleware(m), reader, exp
}

func serve(mw func(http.Handler) http.Handler, inner http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mw(inner).ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_CorrelationIDAndSpan(t *testing.T) {
	mw, _, exp := newTestMiddleware(t)

	var cid string
	rec := serve(mw, func(w http.ResponseWriter, r *http.Request) {
		cid = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	}, httptest.NewRequest("GET", "/session", nil))

	if len(cid) != 32 {
		t.Errorf("correlation ID = %q, want 32 hex chars", cid)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != cid {
		t.Errorf("X-Correlation-ID = %q, want %q", got, cid)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("spans recorded = %d, want 1", len(spans))
	}
	if spans[0].Name != "HTTP GET /session" {
		t.Errorf("span name = %q", spans[0].Name)
	}
}

func TestMiddleware_RecordsRequestDuration(t *testing.T) {
	mw, reader, _ := newTestMiddleware(t)

	serve(mw, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, httptest.NewRequest("GET", "/readyz", nil))

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, "gingerd.http.request.duration")
	if met == nil {
		t.Fatal("gingerd.http.request.duration not recorded")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) == 0 {
		t.Fatal("no histogram data points")
	}

	dp := hist.DataPoints[0]
	if dp.Count != 1 {
		t.Errorf("sample count = %d, want 1", dp.Count)
	}
	want := map[string]string{"method": "GET", "path": "/readyz"}
	for _, kv := range dp.Attributes.ToSlice() {
		if v, ok := want[string(kv.Key)]; ok && kv.Value.AsString() == v {
			delete(want, string(kv.Key))
		}
	}
	if len(want) != 0 {
		t.Errorf("missing attributes: %v", want)
	}
}

func TestMiddleware_SpanCarriesStatusCode(t *testing.T) {
	mw, _, exp := newTestMiddleware(t)

	rec := serve(mw, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, httptest.NewRequest("GET", "/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("response status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	spans := exp.GetSpans()
	if len(spans) == 0 {
		t.Fatal("no spans recorded")
	}
	var got int64
	for _, a := range spans[0].Attributes {
		if string(a.Key) == "http.response.status_code" {
			got = a.Value.AsInt64()
		}
	}
	if got != 404 {
		t.Errorf("http.response.status_code = %d, want 404", got)
	}
}

// hijackableRecorder gives the recorder a Hijack method so tests can prove
// the wrapper does not hide it from websocket upgrades.
type hijackableRecorder struct {
	*httptest.ResponseRecorder
}

var errHijackReached = errors.New("hijack reached underlying writer")

func (h *hijackableRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return nil, nil, errHijackReached
}

func TestMiddleware_PreservesHijackAccess(t *testing.T) {
	mw, _, _ := newTestMiddleware(t)

	var hijackErr error
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _, hijackErr = http.NewResponseController(w).Hijack()
	}))

	rec := &hijackableRecorder{httptest.NewRecorder()}
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/session", nil))

	if !errors.Is(hijackErr, errHijackReached) {
		t.Errorf("Hijack did not reach the underlying writer, got: %v", hijackErr)
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	mw, _, _ := newTestMiddleware(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest("GET", "/session", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")

	var cid string
	rec := serve(mw, func(w http.ResponseWriter, r *http.Request) {
		cid = CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	}, req)

	if cid != traceID {
		t.Errorf("correlation ID = %q, want incoming trace ID %q", cid, traceID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, traceID)
	}
}
