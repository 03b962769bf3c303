// Package accesslog registra uma linha por requisição e garante um id de
// requisição em X-Request-Id.
package accesslog

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/campaner/gobarber-server/logger"
	"github.com/campaner/gobarber-server/pipeline"
)

const HeaderRequestID = "X-Request-Id"

// Middleware envolve o pipeline inteiro, para ver o status final escrito
// pelos estágios de erro. O logger filho (com request_id) fica no contexto:
// logger.FromRequest o recupera nas rotas.
func Middleware(log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get(HeaderRequestID)
			if id == "" || len(id) > 128 {
				id = uuid.New().String()
			}
			r.Header.Set(HeaderRequestID, id)
			w.Header().Set(HeaderRequestID, id)

			reqLog := log.With().Str("request_id", id).Logger()
			r = r.WithContext(reqLog.WithContext(r.Context()))

			rw := pipeline.NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			status := rw.Status()
			var ev *zerolog.Event
			switch {
			case status >= 500:
				ev = reqLog.Error()
			case status >= 400:
				ev = reqLog.Warn()
			default:
				ev = reqLog.Info()
			}
			ev.Str("method", r.Method).
				Str("uri", r.URL.RequestURI()).
				Int("status", status).
				Int("size", rw.Size()).
				Dur("duration", time.Since(start)).
				Str("remote", r.RemoteAddr).
				Msg("request completed")
		})
	}
}
