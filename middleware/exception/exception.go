// Package exception é o último estágio de erro do pipeline: transforma
// qualquer erro que chegou até aqui numa resposta 500.
//
// O modo é fixado na construção. Em desenvolvimento o corpo traz o
// diagnóstico do erro (mensagem, frames com trecho do código-fonte, causas
// e a requisição). Nos demais ambientes o corpo é sempre
// {"error":"Internal server error"}.
package exception

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/campaner/gobarber-server/logger"
	"github.com/campaner/gobarber-server/pipeline"
)

// DefaultContextLines é quantas linhas de código aparecem antes e depois da
// linha de cada frame.
const DefaultContextLines = 5

// SourceReader lê um arquivo-fonte para o trecho de contexto dos frames.
type SourceReader func(file string) ([]byte, error)

type Handler struct {
	development  bool
	log          *logger.Logger
	readSource   SourceReader
	contextLines int
}

type Option func(*Handler)

func WithLogger(log *logger.Logger) Option {
	return func(h *Handler) {
		if log != nil {
			h.log = log
		}
	}
}

func WithSourceReader(fn SourceReader) Option {
	return func(h *Handler) {
		if fn != nil {
			h.readSource = fn
		}
	}
}

func WithContextLines(n int) Option {
	return func(h *Handler) {
		if n >= 0 {
			h.contextLines = n
		}
	}
}

func New(development bool, opts ...Option) *Handler {
	h := &Handler{
		development:  development,
		log:          logger.Nop(),
		readSource:   os.ReadFile,
		contextLines: DefaultContextLines,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Stage devolve o ErrorStage. Ele sempre trata o erro (devolve nil).
func (h *Handler) Stage() pipeline.ErrorStage {
	return h.serve
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, err error) error {
	log := h.log.With().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("request_id", r.Header.Get("X-Request-Id")).
		Logger()

	if pipeline.Written(w) {
		// a resposta já começou: não há como trocar status nem corpo
		log.Error().Err(err).Msg("request failed after response started")
		return nil
	}
	log.Error().Err(err).Msg("request failed")

	if !h.development {
		pipeline.InternalServerError(w)
		return nil
	}

	body, rerr := h.render(r, err)
	if rerr != nil {
		log.Error().Err(rerr).Msg("diagnostic render failed")
		pipeline.InternalServerError(w)
		return nil
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write(body)
	return nil
}

// render nunca deixa um panic escapar: qualquer falha volta como erro e a
// resposta cai para o corpo mínimo.
func (h *Handler) render(r *http.Request, err error) (body []byte, rerr error) {
	defer func() {
		if v := recover(); v != nil {
			body, rerr = nil, fmt.Errorf("panic while rendering diagnostic: %v", v)
		}
	}()

	src := newSourceCache(h.readSource)
	d := Diagnostic{
		Error:   describe(err, src, h.contextLines),
		Request: describeRequest(r),
	}
	return json.Marshal(d)
}

// sourceCache evita ler o mesmo arquivo uma vez por frame.
type sourceCache struct {
	read  SourceReader
	files map[string][]string
}

func newSourceCache(read SourceReader) *sourceCache {
	return &sourceCache{read: read, files: make(map[string][]string)}
}
