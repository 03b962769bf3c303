package pipeline

import (
	"net/http"

	"github.com/campaner/gobarber-server/logger"
)

// HandlerFunc é um handler que pode falhar. O erro sobe pela cadeia até os
// estágios de erro.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Stage é uma unidade da cadeia de requisição.
type Stage func(next HandlerFunc) HandlerFunc

// ErrorStage observa ou trata um erro que escapou dos estágios.
// Devolver nil encerra a cadeia de erro; devolver um erro (o mesmo ou outro)
// passa adiante.
type ErrorStage func(w http.ResponseWriter, r *http.Request, err error) error

// Chain compõe estágios. O primeiro da lista é o mais externo.
func Chain(stages ...Stage) Stage {
	return func(final HandlerFunc) HandlerFunc {
		for i := len(stages) - 1; i >= 0; i-- {
			if stages[i] == nil {
				continue
			}
			final = stages[i](final)
		}
		return final
	}
}

// Pipeline guarda os estágios na ordem de registro e implementa http.Handler.
// Use/UseError/Handle não são seguros para uso concorrente com ServeHTTP:
// monte tudo antes de servir.
type Pipeline struct {
	stages      []Stage
	errorStages []ErrorStage
	final       HandlerFunc
	log         *logger.Logger

	handler HandlerFunc
}

func New(log *logger.Logger) *Pipeline {
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{log: log}
}

// Use adiciona um estágio de requisição ao fim da lista.
func (p *Pipeline) Use(s Stage) {
	p.stages = append(p.stages, s)
	p.rebuild()
}

// UseError adiciona um estágio de erro ao fim da lista.
func (p *Pipeline) UseError(s ErrorStage) {
	p.errorStages = append(p.errorStages, s)
}

// Handle define o handler terminal (normalmente o Dispatch das rotas).
// Sem handler terminal, requisições que atravessam todos os estágios
// recebem 404.
func (p *Pipeline) Handle(h HandlerFunc) {
	p.final = h
	p.rebuild()
}

func (p *Pipeline) rebuild() {
	final := p.final
	if final == nil {
		final = notFound
	}
	p.handler = Chain(p.stages...)(final)
}

func (p *Pipeline) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w)
	h := p.handler
	if h == nil {
		h = notFound
	}

	err := call(h, rw, r)
	for _, es := range p.errorStages {
		if err == nil {
			return
		}
		err = callError(es, rw, r, err)
	}
	if err == nil {
		return
	}

	// nenhum estágio tratou: resposta mínima
	p.log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled pipeline error")
	if !rw.Written() {
		_, _ = WriteJSON(rw, ErrorBody{Error: internalServerError}, http.StatusInternalServerError)
	}
}

// Call executa h convertendo panic em *PanicError. Estágios que precisam
// agir depois do próximo, mesmo em panic, chamam o próximo por aqui.
func Call(h HandlerFunc, w http.ResponseWriter, r *http.Request) error {
	return call(h, w, r)
}

func call(h HandlerFunc, w http.ResponseWriter, r *http.Request) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			err = newPanicError(v)
		}
	}()
	return h(w, r)
}

func callError(es ErrorStage, w http.ResponseWriter, r *http.Request, in error) (err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			// estágio de erro quebrou: segue com o erro original
			err = in
		}
	}()
	return es(w, r, in)
}

func notFound(w http.ResponseWriter, r *http.Request) error {
	_, _ = WriteJSON(w, ErrorBody{Error: "Not found"}, http.StatusNotFound)
	return nil
}
