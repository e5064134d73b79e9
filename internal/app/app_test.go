package app_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/natea/conversational-reflection/internal/app"
	"github.com/natea/conversational-reflection/internal/config"
	"github.com/natea/conversational-reflection/internal/emotion"
	emotionmock "github.com/natea/conversational-reflection/internal/emotion/mock"
	"github.com/natea/conversational-reflection/pkg/synth"
	synthmock "github.com/natea/conversational-reflection/pkg/synth/mock"
)

// testConfig returns a minimal config with one persona profile.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: "127.0.0.1:0",
			LogLevel:   config.LogInfo,
		},
		Synth: config.SynthConfig{Name: "noop"},
		Voices: config.VoicesConfig{
			Self: synth.Profile{
				ParticipantID: "ginger",
				DisplayName:   "Ginger",
				Self:          true,
			},
			Participants: []synth.Profile{
				{ParticipantID: "difficult-mother", DisplayName: "Mom"},
			},
		},
	}
}

func testMocks() (*synthmock.Adapter, *emotionmock.Source) {
	adapter := &synthmock.Adapter{
		Caps: synth.Capabilities{ParameterSet: true},
	}
	source := &emotionmock.Source{
		Snapshot: emotion.Snapshot{Primary: emotion.Joy, Intensity: 0.5},
	}
	return adapter, source
}

func TestNew_WithMocks(t *testing.T) {
	t.Parallel()

	adapter, source := testMocks()
	application, err := app.New(
		context.Background(),
		testConfig(),
		config.NewRegistry(),
		app.WithAdapter(adapter),
		app.WithSource(source),
	)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if application == nil {
		t.Fatal("New() returned nil app")
	}
	if application.Manager() == nil {
		t.Fatal("Manager() returned nil")
	}
}

func TestNew_MissingAdapterFactory(t *testing.T) {
	t.Parallel()

	// Empty registry and no injected adapter: New must fail.
	_, source := testMocks()
	_, err := app.New(
		context.Background(),
		testConfig(),
		config.NewRegistry(),
		app.WithSource(source),
	)
	if err == nil {
		t.Fatal("New() succeeded without a registered synth factory")
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	adapter, source := testMocks()
	application, err := app.New(
		context.Background(),
		testConfig(),
		config.NewRegistry(),
		app.WithAdapter(adapter),
		app.WithSource(source),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz status = %d, want 200", rec.Code)
	}
}

func TestReadyz_EmotionSourceFailure(t *testing.T) {
	t.Parallel()

	adapter, source := testMocks()
	source.Err = context.DeadlineExceeded

	application, err := app.New(
		context.Background(),
		testConfig(),
		config.NewRegistry(),
		app.WithAdapter(adapter),
		app.WithSource(source),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("GET /readyz status = %d, want 503", rec.Code)
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status = %q, want %q", body.Status, "fail")
	}
	if _, ok := body.Checks["emotion_source"]; !ok {
		t.Errorf("checks missing emotion_source entry: %v", body.Checks)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	adapter, source := testMocks()
	application, err := app.New(
		context.Background(),
		testConfig(),
		config.NewRegistry(),
		app.WithAdapter(adapter),
		app.WithSource(source),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	rec := httptest.NewRecorder()
	application.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /metrics status = %d, want 200", rec.Code)
	}
}

func TestSessionEndpoint_UpgradesThroughInstrumentedHandler(t *testing.T) {
	t.Parallel()

	adapter, source := testMocks()
	application, err := app.New(
		context.Background(),
		testConfig(),
		config.NewRegistry(),
		app.WithAdapter(adapter),
		app.WithSource(source),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Serve the full handler stack, middleware included, so the upgrade
	// crosses the instrumented writer the way production requests do.
	srv := httptest.NewServer(application.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/session"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// A successful upgrade is announced with the session's voice frame.
	typ, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read voice frame: %v", err)
	}
	if typ != websocket.MessageText {
		t.Fatalf("message type = %v, want text", typ)
	}
	var frame struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if frame.Type != "voice" {
		t.Errorf("first frame type = %q, want %q", frame.Type, "voice")
	}
}

func TestApp_RunAndShutdown(t *testing.T) {
	t.Parallel()

	adapter, source := testMocks()
	application, err := app.New(
		context.Background(),
		testConfig(),
		config.NewRegistry(),
		app.WithAdapter(adapter),
		app.WithSource(source),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- application.Run(ctx)
	}()

	// Give the listener a moment to come up, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			t.Fatalf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return within 5s after context cancellation")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
}
