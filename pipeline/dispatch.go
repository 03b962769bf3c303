package pipeline

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes é o contrato da tabela de rotas externa: registra seus handlers
// no roteador recebido.
type Routes interface {
	Mount(r chi.Router)
}

// RoutesFunc adapta uma função comum em Routes.
type RoutesFunc func(r chi.Router)

func (f RoutesFunc) Mount(r chi.Router) { f(r) }

// Dispatch monta o roteador chi e devolve o handler terminal do pipeline.
// Rotas não encontradas recebem 404 JSON e método errado 405 JSON; nenhum
// dos dois é tratado como erro.
func Dispatch(routes Routes) HandlerFunc {
	router := chi.NewRouter()
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_, _ = WriteJSON(w, ErrorBody{Error: "Not found"}, http.StatusNotFound)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_, _ = WriteJSON(w, ErrorBody{Error: "Method not allowed"}, http.StatusMethodNotAllowed)
	})
	if routes != nil {
		routes.Mount(router)
	}

	serve := func(w http.ResponseWriter, r *http.Request) error {
		router.ServeHTTP(w, r)
		return nil
	}

	return func(w http.ResponseWriter, r *http.Request) error {
		r, slot := withSlot(r)
		if err := call(serve, w, r); err != nil {
			return err
		}
		return slot.err
	}
}
