package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryReporter envia os erros para o Sentry. Cada requisição usa o hub
// clonado por Enter; fora do pipeline usa um clone do hub base.
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter cria o client do Sentry. DSN inválido é erro; DSN
// vazio cria um client que não envia nada.
func NewSentryReporter(opts sentry.ClientOptions) (*SentryReporter, error) {
	client, err := sentry.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("sentry client: %w", err)
	}
	return &SentryReporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Hub devolve o hub base, clonado por requisição.
func (s *SentryReporter) Hub() *sentry.Hub { return s.hub }

func (s *SentryReporter) Report(ctx context.Context, ev Event) error {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = s.hub.Clone()
	}
	if hub.Client() == nil {
		return ErrNoClient
	}

	hub.WithScope(func(scope *sentry.Scope) {
		if ev.Method != "" {
			scope.SetTag("http.method", ev.Method)
		}
		if ev.RequestID != "" {
			scope.SetTag("request_id", ev.RequestID)
		}
		if ev.TraceID != "" {
			scope.SetContext("otel", sentry.Context{
				"trace_id": ev.TraceID,
				"span_id":  ev.SpanID,
			})
		}
		hub.CaptureException(ev.Err)
	})
	return nil
}

func (s *SentryReporter) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}
