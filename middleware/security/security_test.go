package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campaner/gobarber-server/pipeline"
)

const allowed = "http://gobarber.campaner.me"

func newPipeline(stage pipeline.Stage, calls *int) *pipeline.Pipeline {
	p := pipeline.New(nil)
	p.Use(stage)
	p.Handle(func(w http.ResponseWriter, r *http.Request) error {
		*calls++
		w.WriteHeader(http.StatusOK)
		return nil
	})
	return p
}

func TestHeaders_SetOnEveryResponse(t *testing.T) {
	calls := 0
	p := newPipeline(Headers(false), &calls)

	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	h := rr.Header()
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "SAMEORIGIN", h.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, h.Get("X-XSS-Protection"))
	assert.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
	assert.Equal(t, "off", h.Get("X-DNS-Prefetch-Control"))
	assert.Equal(t, "noopen", h.Get("X-Download-Options"))
	assert.Equal(t, "none", h.Get("X-Permitted-Cross-Domain-Policies"))
	assert.Empty(t, h.Get("Strict-Transport-Security"), "no HSTS over plain http")
	assert.Equal(t, 1, calls)
}

func TestHeaders_HSTSOnlyOnTLSOutsideDevelopment(t *testing.T) {
	tests := []struct {
		name        string
		development bool
		want        bool
	}{
		{name: "production", development: false, want: true},
		{name: "development", development: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			p := newPipeline(Headers(tt.development), &calls)

			r := httptest.NewRequest(http.MethodGet, "https://api.example/", nil)
			r.TLS = &tls.ConnectionState{}
			rr := httptest.NewRecorder()
			p.ServeHTTP(rr, r)

			got := rr.Header().Get("Strict-Transport-Security")
			if tt.want {
				assert.Contains(t, got, "max-age=15552000")
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestCORS_OnlyMatchingOriginIsAllowed(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		want   string
	}{
		{name: "configured origin", origin: allowed, want: allowed},
		// host e esquema não distinguem maiúsculas: o valor volta como veio
		{name: "configured origin upper case", origin: "HTTP://GOBARBER.CAMPANER.ME", want: "HTTP://GOBARBER.CAMPANER.ME"},
		{name: "other scheme", origin: "https://gobarber.campaner.me", want: ""},
		{name: "other port", origin: allowed + ":8080", want: ""},
		{name: "other origin", origin: "http://evil.example", want: ""},
		{name: "no origin", origin: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			p := newPipeline(CORS(allowed+"/"), &calls)

			r := httptest.NewRequest(http.MethodGet, "/appointments", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			p.ServeHTTP(rr, r)

			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, 1, calls, "simple requests always reach the routes")
		})
	}
}

func TestCORS_PreflightIsAnsweredDirectly(t *testing.T) {
	calls := 0
	p := newPipeline(CORS(allowed), &calls)

	r := httptest.NewRequest(http.MethodOptions, "/appointments", nil)
	r.Header.Set("Origin", allowed)
	r.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	p.ServeHTTP(rr, r)

	require.Less(t, rr.Code, 300)
	assert.Equal(t, allowed, rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Equal(t, 0, calls)
}
