package monitoring

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/campaner/gobarber-server/logger"
)

// slotPool é um semáforo baseado em channel com capacidade max.
type slotPool struct {
	sem chan struct{}
}

func newSlotPool(max int) *slotPool {
	return &slotPool{sem: make(chan struct{}, max)}
}

// TryAcquire não espera: sem vaga livre devolve ok=false.
func (p *slotPool) TryAcquire() (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	default:
		return nil, false
	}
}

// dispatcher envia relatórios em goroutines destacadas da requisição.
type dispatcher struct {
	reporter Reporter
	pool     *slotPool
	timeout  time.Duration
	log      *logger.Logger

	wg      sync.WaitGroup
	dropped atomic.Int64
	failed  atomic.Int64

	// no máximo 3 linhas seguidas e depois uma por minuto
	logEvery rate.Sometimes
}

func newDispatcher(reporter Reporter, max int, timeout time.Duration, log *logger.Logger) *dispatcher {
	return &dispatcher{
		reporter: reporter,
		pool:     newSlotPool(max),
		timeout:  timeout,
		log:      log,
		logEvery: rate.Sometimes{First: 3, Interval: time.Minute},
	}
}

// dispatch retorna imediatamente. ctx só empresta os valores (hub, span);
// o cancelamento da requisição não interrompe o envio.
func (d *dispatcher) dispatch(ctx context.Context, ev Event) {
	release, ok := d.pool.TryAcquire()
	if !ok {
		n := d.dropped.Add(1)
		d.logEvery.Do(func() {
			d.log.Warn().Int64("dropped", n).Msg("error report dropped, no free slot")
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer release()
		defer cancel()

		if err := d.report(ctx, ev); err != nil {
			n := d.failed.Add(1)
			d.logEvery.Do(func() {
				d.log.Warn().Err(err).Int64("failed", n).Msg("error report failed")
			})
		}
	}()
}

func (d *dispatcher) report(ctx context.Context, ev Event) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("reporter panic: %v", v)
		}
	}()
	return d.reporter.Report(ctx, ev)
}

// wait espera os envios em andamento até ctx acabar.
func (d *dispatcher) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
