package monitoring

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/campaner/gobarber-server/logger"
	"github.com/campaner/gobarber-server/pipeline"
)

const (
	tracerName = "github.com/campaner/gobarber-server/middleware/monitoring"

	// SpanHTTPRequest é o nome do span aberto por Enter.
	SpanHTTPRequest = "http.request"

	DefaultMaxInFlight   = 32
	DefaultReportTimeout = 5 * time.Second
)

// Monitor liga o Reporter e o tracer ao pipeline.
type Monitor struct {
	reporter Reporter
	hub      *sentry.Hub
	tracer   trace.Tracer
	log      *logger.Logger

	maxInFlight int
	timeout     time.Duration
	dispatcher  *dispatcher
}

type Option func(*Monitor)

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Monitor) {
		if tp != nil {
			m.tracer = tp.Tracer(tracerName)
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(m *Monitor) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMaxInFlight limita quantos relatórios podem estar em envio ao mesmo
// tempo.
func WithMaxInFlight(n int) Option {
	return func(m *Monitor) {
		if n > 0 {
			m.maxInFlight = n
		}
	}
}

func WithReportTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func New(reporter Reporter, opts ...Option) *Monitor {
	if reporter == nil {
		reporter = Nop{}
	}
	m := &Monitor{
		reporter:    reporter,
		tracer:      noop.NewTracerProvider().Tracer(tracerName),
		log:         logger.Nop(),
		maxInFlight: DefaultMaxInFlight,
		timeout:     DefaultReportTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}

	// o hub da requisição vem do reporter quando ele é do Sentry
	if hr, ok := reporter.(interface{ Hub() *sentry.Hub }); ok && hr.Hub() != nil {
		m.hub = hr.Hub()
	} else {
		m.hub = sentry.NewHub(nil, sentry.NewScope())
	}

	m.dispatcher = newDispatcher(reporter, m.maxInFlight, m.timeout, m.log)
	return m
}

// scopedError leva o escopo da requisição de Enter até Exit.
type scopedError struct {
	err  error
	hub  *sentry.Hub
	span trace.Span
}

func (e *scopedError) Error() string { return e.err.Error() }
func (e *scopedError) Unwrap() error { return e.err }

// Enter abre o escopo da requisição. Deve ser o primeiro estágio.
func (m *Monitor) Enter() pipeline.Stage {
	return func(next pipeline.HandlerFunc) pipeline.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) error {
			hub := m.hub.Clone()
			hub.Scope().SetRequest(r)

			ctx := sentry.SetHubOnContext(r.Context(), hub)
			ctx, span := m.tracer.Start(ctx, SpanHTTPRequest,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
				),
			)
			r = r.WithContext(ctx)

			err := pipeline.Call(next, w, r)
			if err != nil {
				return &scopedError{err: err, hub: hub, span: span}
			}

			span.SetAttributes(attribute.Int("http.response.status_code", pipeline.Status(w)))
			span.End()
			return nil
		}
	}
}

// Exit fecha o escopo de uma requisição que falhou e dispara o relatório.
// Nunca escreve a resposta e sempre devolve o erro original.
func (m *Monitor) Exit() pipeline.ErrorStage {
	return func(w http.ResponseWriter, r *http.Request, err error) error {
		var scoped *scopedError
		if !errors.As(err, &scoped) {
			m.dispatcher.dispatch(r.Context(), m.event(r, err, nil))
			return err
		}
		original := scoped.err

		span := scoped.span
		span.RecordError(original)
		span.SetStatus(codes.Error, original.Error())
		span.SetAttributes(attribute.Int("http.response.status_code", http.StatusInternalServerError))
		span.End()

		// r é a requisição de fora de Enter: hub e span voltam pelo erro
		ctx := sentry.SetHubOnContext(r.Context(), scoped.hub)
		ctx = trace.ContextWithSpan(ctx, span)
		m.dispatcher.dispatch(ctx, m.event(r, original, span))
		return original
	}
}

func (m *Monitor) event(r *http.Request, err error, span trace.Span) Event {
	ev := Event{
		Err:       err,
		Method:    r.Method,
		Path:      r.URL.Path,
		RequestID: r.Header.Get("X-Request-Id"),
		At:        time.Now(),
	}
	if span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			ev.TraceID = sc.TraceID().String()
			ev.SpanID = sc.SpanID().String()
		}
	}
	return ev
}

// Close espera os relatórios em andamento e faz o flush do Reporter.
func (m *Monitor) Close(ctx context.Context) error {
	err := m.dispatcher.wait(ctx)

	timeout := m.timeout
	if dl, ok := ctx.Deadline(); ok {
		timeout = time.Until(dl)
	}
	if timeout > 0 {
		m.reporter.Flush(timeout)
	}
	return err
}
