package monitoring

import (
	"context"
	"errors"
	"time"
)

var ErrNoClient = errors.New("error reporter has no client")

// Event é o que sobra da requisição depois que ela terminou. O hub do
// Sentry e o span viajam no contexto entregue ao Reporter.
type Event struct {
	Err error

	Method    string
	Path      string
	RequestID string

	TraceID string
	SpanID  string

	At time.Time
}

// Reporter envia erros para fora do processo. Report roda numa goroutine
// própria, com timeout no ctx.
type Reporter interface {
	Report(ctx context.Context, ev Event) error
	Flush(timeout time.Duration) bool
}

// Nop descarta os relatórios.
type Nop struct{}

func (Nop) Report(context.Context, Event) error { return nil }
func (Nop) Flush(time.Duration) bool            { return true }
