package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaner/gobarber-server/config"
	"github.com/campaner/gobarber-server/middleware/bodyparser"
	"github.com/campaner/gobarber-server/middleware/monitoring"
	"github.com/campaner/gobarber-server/middleware/ratelimit/infra"
	"github.com/campaner/gobarber-server/pipeline"
)

const origin = "http://gobarber.campaner.me"

var errDatabase = errors.New("database is down")

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) Report(_ context.Context, ev monitoring.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, ev.Err)
	return nil
}

func (r *recordingReporter) Flush(time.Duration) bool { return true }

func (r *recordingReporter) Errs() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

type testRoutes struct {
	mu   sync.Mutex
	hits int
}

func (tr *testRoutes) Hits() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.hits
}

func (tr *testRoutes) Mount(r chi.Router) {
	count := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			tr.mu.Lock()
			tr.hits++
			tr.mu.Unlock()
			next(w, r)
		}
	}

	r.Get("/ok", count(func(w http.ResponseWriter, r *http.Request) {
		_, _ = pipeline.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
	}))
	r.Method(http.MethodGet, "/fail", pipeline.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return pipeline.Errorf("list appointments: %w", errDatabase)
	}))
	r.Method(http.MethodGet, "/fail-plain", pipeline.Handle(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("appointment not found")
	}))
	r.Get("/fail-std", func(w http.ResponseWriter, r *http.Request) {
		pipeline.Fail(w, r, errors.New("boom"))
	})
	r.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("nil provider")
	})
	r.Method(http.MethodPost, "/echo", pipeline.Handle(func(w http.ResponseWriter, r *http.Request) error {
		var in map[string]any
		if err := bodyparser.Decode(r, &in); err != nil {
			return err
		}
		_, err := pipeline.WriteJSON(w, in, http.StatusOK)
		return err
	}))
}

type harness struct {
	app      *App
	routes   *testRoutes
	reporter *recordingReporter
}

func newHarness(t *testing.T, environ map[string]string, opts ...Option) *harness {
	t.Helper()
	if _, ok := environ["STATIC_ROOT"]; !ok {
		environ["STATIC_ROOT"] = t.TempDir()
	}
	cfg, err := config.FromMap(environ)
	require.NoError(t, err)

	h := &harness{routes: &testRoutes{}, reporter: &recordingReporter{}}
	opts = append([]Option{WithReporter(h.reporter)}, opts...)
	h.app, err = New(cfg, h.routes, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.app.Close(context.Background()) })
	return h
}

func (h *harness) do(method, target string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, target, nil)
	for _, m := range mutate {
		m(r)
	}
	return h.serve(r)
}

func (h *harness) serve(r *http.Request) *httptest.ResponseRecorder {
	r.RemoteAddr = "10.1.1.1:5000"
	rr := httptest.NewRecorder()
	h.app.Handler().ServeHTTP(rr, r)
	return rr
}

func devEnv() map[string]string { return map[string]string{"APP_ENV": "development"} }

func prodEnv(mr *miniredis.Miniredis) map[string]string {
	return map[string]string{
		"APP_ENV":    "production",
		"REDIS_HOST": mr.Host(),
		"REDIS_PORT": mr.Port(),
	}
}

func TestProduction_ErrorBodyIsFixed(t *testing.T) {
	h := newHarness(t, prodEnv(miniredis.RunT(t)))

	for _, target := range []string{"/fail", "/panic"} {
		rr := h.do(http.MethodGet, target)

		assert.Equal(t, http.StatusInternalServerError, rr.Code, target)
		assert.Equal(t, `{"error":"Internal server error"}`, rr.Body.String(), target)
		assert.Equal(t, "SAMEORIGIN", rr.Header().Get("X-Frame-Options"), target)
	}

	require.NoError(t, h.app.Close(context.Background()))
	// os relatórios rodam em paralelo: a ordem não é garantida
	errs := h.reporter.Errs()
	require.Len(t, errs, 2)
	var (
		sawDatabase, sawPanic bool
		pe                    *pipeline.PanicError
	)
	for _, err := range errs {
		sawDatabase = sawDatabase || errors.Is(err, errDatabase)
		sawPanic = sawPanic || errors.As(err, &pe)
	}
	assert.True(t, sawDatabase)
	assert.True(t, sawPanic)
}

func TestDevelopment_ErrorBodyIsDiagnostic(t *testing.T) {
	h := newHarness(t, devEnv())

	rr := h.do(http.MethodGet, "/fail")

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `"message":"list appointments: database is down"`)
	assert.Contains(t, body, `"frames":[{`)
	assert.Contains(t, body, "app_test.go")
	assert.Contains(t, body, `"status":500`)
}

func TestDevelopment_PlainRouteErrorsHaveFrames(t *testing.T) {
	h := newHarness(t, devEnv())

	tests := []struct {
		target  string
		message string
	}{
		{target: "/fail-plain", message: "appointment not found"},
		{target: "/fail-std", message: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rr := h.do(http.MethodGet, tt.target)

			require.Equal(t, http.StatusInternalServerError, rr.Code)
			body := rr.Body.String()
			assert.Contains(t, body, fmt.Sprintf(`"message":%q`, tt.message))
			assert.Contains(t, body, `"name":"errors.errorString"`)
			assert.Contains(t, body, `"frames":[{`)
			assert.Contains(t, body, `"isApp":true`)
		})
	}
}

func TestProduction_RateLimitBlocksAfterMax(t *testing.T) {
	mr := miniredis.RunT(t)
	h := newHarness(t, prodEnv(mr))

	for i := 1; i <= 100; i++ {
		rr := h.do(http.MethodGet, "/ok")
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i)
	}
	rr := h.do(http.MethodGet, "/ok")

	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.JSONEq(t, `{"error":"Too many requests, please try again later."}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, 100, h.routes.Hits(), "blocked request must not reach the routes")
	assert.True(t, mr.Exists("rl:10.1.1.1"))
}

func TestDevelopment_NeverThrottles(t *testing.T) {
	h := newHarness(t, devEnv())
	require.Nil(t, h.app.rdb)

	for i := 0; i < 150; i++ {
		rr := h.do(http.MethodGet, "/ok")
		require.Equal(t, http.StatusOK, rr.Code, "request %d", i)
		require.Empty(t, rr.Header().Get("X-RateLimit-Limit"))
	}
	assert.Equal(t, 150, h.routes.Hits())
}

func TestProduction_MemoryStore(t *testing.T) {
	h := newHarness(t, map[string]string{
		"APP_ENV":              "production",
		"RATE_LIMIT_STORE":     "memory",
		"RATE_LIMIT_MAX":       "2",
		"RATE_LIMIT_WINDOW_MS": "60000",
		"REDIS_HOST":           " ",
	})
	require.Nil(t, h.app.rdb, "memory store must not open a Redis client")
	require.NotNil(t, h.app.stopJanitor)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/ok").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/ok").Code)
	rr := h.do(http.MethodGet, "/ok")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "0", rr.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, 2, h.routes.Hits())

	require.NoError(t, h.app.Close(context.Background()))
}

func TestProduction_NewWindowResetsCount(t *testing.T) {
	mr := miniredis.RunT(t)
	env := prodEnv(mr)
	env["RATE_LIMIT_MAX"] = "2"
	env["RATE_LIMIT_WINDOW_MS"] = "60000"
	h := newHarness(t, env)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/ok").Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/ok").Code)
	assert.Equal(t, http.StatusTooManyRequests, h.do(http.MethodGet, "/ok").Code)

	mr.FastForward(time.Minute)

	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/ok").Code)
}

func TestProduction_StoreDown(t *testing.T) {
	tests := []struct {
		name     string
		failOpen string
		want     int
	}{
		{name: "fails closed", failOpen: "false", want: http.StatusInternalServerError},
		{name: "fails open", failOpen: "true", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr := miniredis.RunT(t)
			env := prodEnv(mr)
			env["RATE_LIMIT_FAIL_OPEN"] = tt.failOpen
			h := newHarness(t, env)
			mr.Close()

			rr := h.do(http.MethodGet, "/ok")

			assert.Equal(t, tt.want, rr.Code)
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, `{"error":"Internal server error"}`, rr.Body.String())
				require.NoError(t, h.app.Close(context.Background()))
				errs := h.reporter.Errs()
				require.Len(t, errs, 1)
				assert.ErrorIs(t, errs[0], infra.ErrStoreUnavailable)
			}
		})
	}
}

func TestStaticFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "avatar.jpg"), []byte("jpeg-bytes"), 0o644))
	env := devEnv()
	env["STATIC_ROOT"] = root
	h := newHarness(t, env)

	rr := h.do(http.MethodGet, "/files/avatar.jpg")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "jpeg-bytes", rr.Body.String())

	rr = h.do(http.MethodGet, "/files/missing.jpg")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rr.Body.String())

	require.NoError(t, h.app.Close(context.Background()))
	assert.Empty(t, h.reporter.Errs(), "a missing file is not an error")
}

func TestCORS_OnlyConfiguredOrigin(t *testing.T) {
	h := newHarness(t, devEnv())

	rr := h.do(http.MethodGet, "/ok", func(r *http.Request) { r.Header.Set("Origin", origin) })
	assert.Equal(t, origin, rr.Header().Get("Access-Control-Allow-Origin"))

	rr = h.do(http.MethodGet, "/ok", func(r *http.Request) { r.Header.Set("Origin", "http://other.example") })
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestJSONBody(t *testing.T) {
	h := newHarness(t, devEnv())

	post := func(body string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		return h.serve(r)
	}

	rr := post(`{"provider_id":"p1"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"provider_id":"p1"}`, rr.Body.String())

	rr = post(`{"provider_id":`)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), bodyparser.ErrMalformedJSON.Error())

	rr = post(fmt.Sprintf(`{"blob":%q}`, strings.Repeat("x", int(bodyparser.DefaultLimit))))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "request body too large")
}

func TestUnknownRouteAndMethod(t *testing.T) {
	h := newHarness(t, devEnv())

	rr := h.do(http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))

	rr = h.do(http.MethodDelete, "/ok")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(config.Config{}, nil)
	assert.Error(t, err)
}

func TestNew_BadDSNFallsBackToNop(t *testing.T) {
	env := devEnv()
	env["SENTRY_DSN"] = "not a dsn"
	env["STATIC_ROOT"] = t.TempDir()
	cfg, err := config.FromMap(env)
	require.NoError(t, err)

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close(context.Background())

	rr := httptest.NewRecorder()
	a.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
