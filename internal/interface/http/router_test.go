package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yanqian/horizon/internal/domain/auditlog"
	"github.com/yanqian/horizon/internal/domain/dashboard"
	"github.com/yanqian/horizon/internal/domain/session"
	"github.com/yanqian/horizon/internal/domain/sunreport"
	"github.com/yanqian/horizon/internal/infra/auditrepo"
	"github.com/yanqian/horizon/internal/infra/config"
	"github.com/yanqian/horizon/internal/infra/diagnostics"
	"github.com/yanqian/horizon/internal/infra/sessionstore"
)

const parisReport = "```json\n" + `{
  "locationName": "Paris, France",
  "date": "June 21, 2024",
  "weather": {"temp": "22°C", "condition": "Clear", "cloudCover": "10%", "visibility": "10 km"},
  "goldenHourMorning": "5:47 AM - 6:30 AM",
  "goldenHourEvening": "9:10 PM - 9:58 PM",
  "sunrise": {
    "time": "5:47 AM", "qualityScore": 82, "qualityDescription": "Crisp", "advice": "Arrive early",
    "spots": [{"name": "Sacré-Cœur", "description": "Hilltop", "distance": "3 km", "rating": "4.8"}]
  },
  "sunset": {
    "time": "9:58 PM", "qualityScore": 45, "qualityDescription": "Hazy", "advice": "Stay late",
    "spots": [{"name": "Pont des Arts", "description": "River view", "rating": 4.5}]
  }
}` + "\n```"

type stubGenerator struct {
	calls  atomic.Int32
	text   string
	err    error
	prompt atomic.Value
}

func (s *stubGenerator) Generate(_ context.Context, req sunreport.GenerateRequest) (sunreport.Generation, error) {
	s.calls.Add(1)
	s.prompt.Store(req.Prompt)
	if s.err != nil {
		return sunreport.Generation{}, s.err
	}
	return sunreport.Generation{
		Text:    s.text,
		Sources: []sunreport.Source{{Title: "Météo-France", URI: "https://meteofrance.com/paris"}},
	}, nil
}

type routerFixture struct {
	server    *http.Server
	generator *stubGenerator
	sink      *diagnostics.MemorySink
}

func newRouterUnderTest(t *testing.T, generator *stubGenerator) routerFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := diagnostics.NewMemorySink(10)

	reportSvc := sunreport.NewService(sunreport.Config{Model: "gemini-2.5-flash", SearchGrounding: true}, generator, sink, logger)
	auditSvc := auditlog.NewService(auditlog.Config{DefaultLimit: 50, MaxLimit: 100}, auditrepo.NewMemoryRepository(100), logger)
	sessionSvc := session.NewService(session.Config{}, sessionstore.NewMemoryStore(), reportSvc, auditSvc, logger)

	cfg := &config.Config{HTTP: config.HTTPConfig{Address: ":0"}}
	return routerFixture{
		server:    NewRouter(cfg, NewHandler(sessionSvc, reportSvc, auditSvc, logger)),
		generator: generator,
		sink:      sink,
	}
}

func TestRouter_ParisEndToEnd(t *testing.T) {
	fx := newRouterUnderTest(t, &stubGenerator{text: parisReport})

	created := performRequest(t, fx.server, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, created.Code)
	view := decodeView(t, created)
	require.Equal(t, dashboard.ScreenHero, view.Screen)
	require.Equal(t, int64(10000), view.Geolocation.TimeoutMs)
	require.False(t, view.Geolocation.EnableHighAccuracy)
	_, err := time.Parse("2006-01-02", view.Date)
	require.NoError(t, err)
	base := "/api/v1/sessions/" + view.SessionID

	rec := performRequest(t, fx.server, http.MethodPost, base+"/search", `{"location":"Paris","date":"2024-06-21"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeView(t, rec)
	require.Equal(t, session.StateSuccess, view.State)
	require.Equal(t, dashboard.ScreenDashboard, view.Screen)
	require.NotEmpty(t, view.Dashboard.LocationName)
	require.Equal(t, "5:47 AM", view.Dashboard.Active.Time)
	require.Equal(t, dashboard.TierEmerald, view.Dashboard.Active.Tier)
	require.Equal(t, "https://meteofrance.com/paris", view.Dashboard.Sources[0].URI)
	require.Contains(t, fx.generator.prompt.Load().(string), `location: "Paris"`)
	require.Contains(t, fx.generator.prompt.Load().(string), "2024-06-21")

	rec = performRequest(t, fx.server, http.MethodPost, base+"/phase", `{"phase":"sunset"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decodeView(t, rec)
	require.Equal(t, session.PhaseSunset, view.Dashboard.ActivePhase)
	require.Equal(t, "9:58 PM", view.Dashboard.Active.Time)
	require.Equal(t, 45, view.Dashboard.Active.Score)
	require.Equal(t, dashboard.TierRed, view.Dashboard.Active.Tier)
	require.Equal(t, "Pont des Arts", view.Dashboard.Active.Spots[0].Name)
	require.Equal(t, "Nearby", view.Dashboard.Active.Spots[0].Distance)
	require.EqualValues(t, 1, fx.generator.calls.Load())

	rec = performRequest(t, fx.server, http.MethodPost, base+"/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, dashboard.ScreenHero, decodeView(t, rec).Screen)

	rec = performRequest(t, fx.server, http.MethodGet, "/api/v1/analyses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Analyses []auditlog.Entry `json:"analyses"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Analyses, 1)
	require.Equal(t, auditlog.OutcomeSuccess, listed.Analyses[0].Outcome)
	require.Equal(t, 82, listed.Analyses[0].SunriseScore)

	rec = performRequest(t, fx.server, http.MethodGet, "/api/v1/analyses/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "id,session_id,location_kind"))
}

func TestRouter_GeolocationFlow(t *testing.T) {
	fx := newRouterUnderTest(t, &stubGenerator{text: parisReport})
	base := "/api/v1/sessions/" + createSession(t, fx.server)

	rec := performRequest(t, fx.server, http.MethodPost, base+"/search", `{"location":"  ","date":"2024-06-21"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeView(t, rec)
	require.Equal(t, session.StateLocating, view.State)
	require.Equal(t, "Locating you...", view.Caption)

	rec = performRequest(t, fx.server, http.MethodPost, base+"/position", `{"lat":37.7,"lng":-122.4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, session.StateSuccess, decodeView(t, rec).State)

	prompt := fx.generator.prompt.Load().(string)
	require.Contains(t, prompt, "latitude: 37.7, longitude: -122.4")
}

func TestRouter_GeolocationDenied(t *testing.T) {
	fx := newRouterUnderTest(t, &stubGenerator{text: parisReport})
	base := "/api/v1/sessions/" + createSession(t, fx.server)

	performRequest(t, fx.server, http.MethodPost, base+"/search", `{"location":""}`)
	rec := performRequest(t, fx.server, http.MethodPost, base+"/position-error", `{"reason":"denied"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeView(t, rec)
	require.Equal(t, dashboard.ScreenError, view.Screen)
	require.Equal(t, session.MessageGeolocationFailed, view.Error.Message)
	require.Equal(t, "Try Again", view.Error.RetryLabel)
	require.Zero(t, fx.generator.calls.Load())
}

func TestRouter_MalformedResponseShowsErrorScreen(t *testing.T) {
	fx := newRouterUnderTest(t, &stubGenerator{text: `{"locationName": "Par`})
	base := "/api/v1/sessions/" + createSession(t, fx.server)

	rec := performRequest(t, fx.server, http.MethodPost, base+"/search", `{"location":"Paris","date":"2024-06-21"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeView(t, rec)
	require.Equal(t, session.StateError, view.State)
	require.Equal(t, sunreport.FailureMessage, view.Error.Message)
	require.Len(t, fx.sink.Captures(), 1)
}

func TestRouter_SessionErrors(t *testing.T) {
	fx := newRouterUnderTest(t, &stubGenerator{text: parisReport})

	rec := performRequest(t, fx.server, http.MethodGet, "/api/v1/sessions/unknown", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", decodeErrorBody(t, rec)["error"]["code"])

	base := "/api/v1/sessions/" + createSession(t, fx.server)

	rec = performRequest(t, fx.server, http.MethodPost, base+"/phase", `{"phase":"sunset"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "invalid_transition", decodeErrorBody(t, rec)["error"]["code"])

	rec = performRequest(t, fx.server, http.MethodPost, base+"/phase", `{"phase":"noon"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = performRequest(t, fx.server, http.MethodPost, base+"/position", `{"lat":37.7}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_input", decodeErrorBody(t, rec)["error"]["code"])

	rec = performRequest(t, fx.server, http.MethodPost, base+"/search", `{"location":"Paris","date":"21/06/2024"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_CreateReport(t *testing.T) {
	fx := newRouterUnderTest(t, &stubGenerator{text: parisReport})

	rec := performRequest(t, fx.server, http.MethodPost, "/api/v1/reports", `{"lat":48.8566,"lng":2.3522,"date":"2024-06-21"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var report sunreport.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, "Paris, France", report.LocationName)
	require.Len(t, report.Sources, 1)

	rec = performRequest(t, fx.server, http.MethodPost, "/api/v1/reports", `{"lat":48.8566}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_CreateReportUpstreamFailure(t *testing.T) {
	fx := newRouterUnderTest(t, &stubGenerator{err: errors.New("connection reset")})

	rec := performRequest(t, fx.server, http.MethodPost, "/api/v1/reports", `{"location":"Paris","date":"2024-06-21"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	body := decodeErrorBody(t, rec)
	require.Equal(t, "analysis_failed", body["error"]["code"])
	require.Equal(t, sunreport.FailureMessage, body["error"]["message"])
	require.NotContains(t, rec.Body.String(), "connection reset")
}

func TestRouter_PageAndHealth(t *testing.T) {
	fx := newRouterUnderTest(t, &stubGenerator{})

	rec := performRequest(t, fx.server, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/static/app.js")

	rec = performRequest(t, fx.server, http.MethodGet, "/static/app.js", "")
	require.Equal(t, http.StatusOK, rec.Code)
	script := rec.Body.String()
	require.Contains(t, script, `$("date").value = view.date`)
	require.Contains(t, script, `{ skipLocate: true }`)

	rec = performRequest(t, fx.server, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func createSession(t *testing.T, server *http.Server) string {
	t.Helper()
	rec := performRequest(t, server, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeView(t, rec).SessionID
}

func performRequest(t *testing.T, server *http.Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) dashboard.View {
	t.Helper()
	var view dashboard.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	return view
}

func decodeErrorBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]map[string]string {
	t.Helper()
	var payload map[string]map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}
