// Package security aplica os headers de segurança e o CORS de origem única
// em todas as respostas do servidor.
package security

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
	"github.com/unrolled/secure"

	"github.com/campaner/gobarber-server/pipeline"
)

// 180 dias, mesmo max-age do helmet
const hstsSeconds = 15552000

// extras do helmet que o secure não cobre
var extraHeaders = map[string]string{
	"X-DNS-Prefetch-Control":            "off",
	"X-Download-Options":                "noopen",
	"X-Permitted-Cross-Domain-Policies": "none",
}

// Headers devolve o estágio de headers de segurança. Em desenvolvimento o
// HSTS fica desligado; nos demais ambientes ele só é enviado em conexões
// TLS.
func Headers(development bool) pipeline.Stage {
	s := secure.New(secure.Options{
		CustomFrameOptionsValue: "SAMEORIGIN",
		ContentTypeNosniff:      true,
		BrowserXssFilter:        true,
		ReferrerPolicy:          "no-referrer",
		ContentSecurityPolicy:   "default-src 'self'",
		STSSeconds:              hstsSeconds,
		STSIncludeSubdomains:    true,
		IsDevelopment:           development,
	})

	return pipeline.Wrap(func(next http.Handler) http.Handler {
		return s.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range extraHeaders {
				h.Set(k, v)
			}
			next.ServeHTTP(w, r)
		}))
	})
}

// CORS libera exatamente uma origem, comparada sem distinguir maiúsculas
// (esquema e host não distinguem). Requisições de outras origens seguem
// sem Access-Control-Allow-Origin; preflights são respondidos aqui e não
// chegam às rotas.
func CORS(origin string) pipeline.Stage {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")

	return pipeline.Wrap(cors.Handler(cors.Options{
		AllowedOrigins: []string{origin},
		AllowedMethods: []string{
			http.MethodGet, http.MethodHead, http.MethodPost,
			http.MethodPut, http.MethodPatch, http.MethodDelete,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		MaxAge:         300,
	}))
}
