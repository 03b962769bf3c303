// Package routes é a tabela de rotas do servidor. As rotas de negócio são
// registradas por outros pacotes; aqui ficam só as rotas de infraestrutura.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/campaner/gobarber-server/pipeline"
)

type health struct {
	Status string `json:"status"`
}

// Table devolve a tabela de rotas montada pelo app.
func Table() pipeline.Routes {
	return pipeline.RoutesFunc(func(r chi.Router) {
		r.Method(http.MethodGet, "/health", pipeline.Handle(Health))
	})
}

func Health(w http.ResponseWriter, r *http.Request) error {
	_, err := pipeline.WriteJSON(w, health{Status: "ok"}, http.StatusOK)
	return err
}
