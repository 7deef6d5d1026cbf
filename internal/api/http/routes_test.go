package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/farm-weather/internal/telemetry"
	"github.com/i474232898/farm-weather/internal/weather"
)

type stubResolver struct {
	res       weather.Result
	err       error
	panic     bool
	gotBearer string
}

func (s *stubResolver) Resolve(_ context.Context, bearer string) (weather.Result, error) {
	s.gotBearer = bearer
	if s.panic {
		panic("resolver exploded")
	}
	return s.res, s.err
}

type captureSink struct {
	mu     sync.Mutex
	events []telemetry.Event
}

func (c *captureSink) Emit(_ context.Context, ev telemetry.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func newTestApp(svc WeatherResolver) (*fiber.App, *captureSink) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	sink := &captureSink{}
	RegisterRoutes(app, svc, sink)
	return app, sink
}

func doRequest(t *testing.T, app *fiber.App, method, path string, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, _ := io.ReadAll(resp.Body)
	var body map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Fatalf("response is not JSON: %q", raw)
		}
	}
	return resp, body
}

func samplePayload() *weather.WeatherPayload {
	return &weather.WeatherPayload{
		TempC: 30, Humidity: 61, WindKmh: 12,
		Description: "Partly cloudy", Icon: weather.IconCloud,
		ForecastShort: "Partly cloudy. High 33°C, low 23°C.",
		FetchedAt:     time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC),
		Location:      "Guntur, Andhra Pradesh, India",
	}
}

func TestMethodNotAllowed(t *testing.T) {
	svc := &stubResolver{}
	app, sink := newTestApp(svc)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		resp, _ := doRequest(t, app, method, "/api/v1/weather", nil)
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", method, resp.StatusCode)
		}
	}
	if len(sink.events) != 3 {
		t.Fatalf("expected one telemetry event per request, got %d", len(sink.events))
	}
	if sink.events[0].Outcome != outcomeMethodNotAllowed || sink.events[0].HTTPStatus != 405 {
		t.Fatalf("unexpected event: %+v", sink.events[0])
	}
}

func TestUnauthenticated(t *testing.T) {
	svc := &stubResolver{res: weather.Result{Outcome: weather.OutcomeUnauthenticated, Message: "Unauthorized"}}
	app, sink := newTestApp(svc)

	resp, body := doRequest(t, app, http.MethodPost, "/api/v1/weather", map[string]string{"Authorization": "Basic abc"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if svc.gotBearer != "" {
		t.Fatalf("non-bearer credentials must not be forwarded, got %q", svc.gotBearer)
	}
	if body["message"] != "Unauthorized" {
		t.Fatalf("unexpected body: %v", body)
	}
	if len(sink.events) != 1 || sink.events[0].HTTPStatus != 401 {
		t.Fatalf("unexpected events: %+v", sink.events)
	}
}

func TestFreshResponseShape(t *testing.T) {
	svc := &stubResolver{res: weather.Result{
		Outcome:          weather.OutcomeRefetched,
		Data:             samplePayload(),
		CacheKey:         "weather:guntur-andhra-pradesh-india",
		Candidate:        &weather.LocationCandidate{Query: "Guntur, Andhra Pradesh, India", Label: weather.LabelDistrict},
		SummaryProvider:  weather.SummaryRule,
		ForecastProvider: "open-meteo",
	}}
	app, sink := newTestApp(svc)

	resp, body := doRequest(t, app, http.MethodPost, "/farmer-weather", map[string]string{"Authorization": "Bearer tok-123"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if svc.gotBearer != "tok-123" {
		t.Fatalf("expected bearer token to be forwarded, got %q", svc.gotBearer)
	}
	if body["cached"] != false {
		t.Fatalf("expected cached=false, got %v", body["cached"])
	}
	for _, absent := range []string{"stale", "cache_age_minutes", "message"} {
		if _, ok := body[absent]; ok {
			t.Fatalf("%s must be omitted on a fresh response: %v", absent, body)
		}
	}
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %v", body["data"])
	}
	for _, field := range []string{"temp_c", "humidity", "wind_kmh", "description", "icon", "forecast_short", "fetched_at", "location"} {
		if _, ok := data[field]; !ok {
			t.Fatalf("data is missing %s: %v", field, data)
		}
	}

	if len(sink.events) != 1 {
		t.Fatalf("expected one event, got %d", len(sink.events))
	}
	ev := sink.events[0]
	if ev.Endpoint != endpointFarmerWeather || ev.CandidateLabel != "district" || ev.SummaryProvider != "rule" || ev.ForecastProvider != "open-meteo" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestStaleResponseShape(t *testing.T) {
	svc := &stubResolver{res: weather.Result{
		Outcome:         weather.OutcomeStaleFallback,
		Data:            samplePayload(),
		Cached:          true,
		Stale:           true,
		CacheAgeMinutes: 100,
		Message:         "Live weather is temporarily unavailable; showing the last known reading",
	}}
	app, _ := newTestApp(svc)

	resp, body := doRequest(t, app, http.MethodPost, "/api/v1/weather", map[string]string{"Authorization": "Bearer t"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if body["cached"] != true || body["stale"] != true || body["cache_age_minutes"] != float64(100) {
		t.Fatalf("unexpected body: %v", body)
	}
	if body["message"] == nil {
		t.Fatal("expected explanatory message")
	}
}

func TestFreshCacheHitShape(t *testing.T) {
	svc := &stubResolver{res: weather.Result{
		Outcome:         weather.OutcomeCacheFresh,
		Data:            samplePayload(),
		Cached:          true,
		CacheAgeMinutes: 0,
	}}
	app, _ := newTestApp(svc)

	_, body := doRequest(t, app, http.MethodPost, "/api/v1/weather", map[string]string{"Authorization": "Bearer t"})
	if body["stale"] != false || body["cache_age_minutes"] != float64(0) {
		t.Fatalf("cached responses must carry stale and cache_age_minutes: %v", body)
	}
}

func TestSoftOutcomesAre200(t *testing.T) {
	for _, outcome := range []weather.Outcome{weather.OutcomeNoLocation, weather.OutcomeUnresolved} {
		svc := &stubResolver{res: weather.Result{Outcome: outcome, Message: "explained"}}
		app, sink := newTestApp(svc)

		resp, body := doRequest(t, app, http.MethodPost, "/api/v1/weather", map[string]string{"Authorization": "Bearer t"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", outcome, resp.StatusCode)
		}
		if v, ok := body["data"]; !ok || v != nil {
			t.Fatalf("%s: expected data:null, got %v", outcome, body)
		}
		if body["message"] != "explained" {
			t.Fatalf("%s: unexpected message: %v", outcome, body)
		}
		if sink.events[0].Outcome != string(outcome) {
			t.Fatalf("%s: unexpected event %+v", outcome, sink.events[0])
		}
	}
}

func TestProviderUnavailableIs502(t *testing.T) {
	svc := &stubResolver{res: weather.Result{Outcome: weather.OutcomeProviderUnavailable, Message: "Weather unavailable: weather provider unavailable"}}
	app, sink := newTestApp(svc)

	resp, body := doRequest(t, app, http.MethodPost, "/api/v1/weather", map[string]string{"Authorization": "Bearer t"})
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	if v, ok := body["data"]; !ok || v != nil {
		t.Fatalf("expected data:null, got %v", body)
	}
	if sink.events[0].HTTPStatus != 502 || sink.events[0].Error == "" {
		t.Fatalf("unexpected event: %+v", sink.events[0])
	}
}

func TestServiceErrorsAre500(t *testing.T) {
	cases := []struct {
		name    string
		svc     *stubResolver
		outcome string
		message string
	}{
		{"misconfigured", &stubResolver{err: weather.ErrConfiguration}, outcomeMisconfigured, "server misconfigured"},
		{"internal", &stubResolver{err: errors.New("db password is hunter2")}, outcomeInternal, "internal error"},
		{"panic", &stubResolver{panic: true}, outcomeInternal, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app, sink := newTestApp(tc.svc)
			resp, body := doRequest(t, app, http.MethodPost, "/api/v1/weather", map[string]string{"Authorization": "Bearer t"})
			if resp.StatusCode != http.StatusInternalServerError {
				t.Fatalf("expected 500, got %d", resp.StatusCode)
			}
			if body["message"] != tc.message {
				t.Fatalf("unexpected message: %v", body["message"])
			}
			if len(sink.events) != 1 || sink.events[0].Outcome != tc.outcome {
				t.Fatalf("unexpected events: %+v", sink.events)
			}
		})
	}
}

func TestRequestIDPropagation(t *testing.T) {
	svc := &stubResolver{res: weather.Result{Outcome: weather.OutcomeNoLocation}}
	app, sink := newTestApp(svc)

	resp, _ := doRequest(t, app, http.MethodPost, "/api/v1/weather", map[string]string{HeaderRequestID: "abc-123"})
	if got := resp.Header.Get(HeaderRequestID); got != "abc-123" {
		t.Fatalf("expected inbound request id to be echoed, got %q", got)
	}

	resp, _ = doRequest(t, app, http.MethodPost, "/api/v1/weather", nil)
	generated := resp.Header.Get(HeaderRequestID)
	if len(generated) != 36 {
		t.Fatalf("expected a generated uuid, got %q", generated)
	}

	resp, _ = doRequest(t, app, http.MethodGet, "/api/v1/weather", nil)
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Fatal("error responses must carry a request id")
	}

	if sink.events[0].RequestID != "abc-123" || sink.events[1].RequestID != generated {
		t.Fatalf("telemetry request ids do not match responses: %+v", sink.events)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
		"Token abc":    "",
		"BEARER x.y.z": "x.y.z",
	}
	for in, want := range cases {
		if got := bearerToken(in); got != want {
			t.Errorf("bearerToken(%q) = %q, want %q", in, got, want)
		}
	}
}
