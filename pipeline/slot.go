package pipeline

import (
	"context"
	"net/http"
)

type slotKey struct{}

// errSlot carrega o erro de um handler net/http de volta ao estágio que o
// chamou, atravessando middlewares que só conhecem http.Handler.
type errSlot struct {
	err error
}

func withSlot(r *http.Request) (*http.Request, *errSlot) {
	slot := &errSlot{}
	return r.WithContext(context.WithValue(r.Context(), slotKey{}, slot)), slot
}

func slotFrom(ctx context.Context) *errSlot {
	slot, _ := ctx.Value(slotKey{}).(*errSlot)
	return slot
}

// Fail entrega err ao pipeline a partir de um http.Handler comum. O handler
// deve retornar logo em seguida sem escrever a resposta.
// Erros sem pilha ganham a pilha de quem chamou Fail.
// Fora de um pipeline (sem slot no contexto) a chamada responde 500.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	slot := slotFrom(r.Context())
	if slot == nil {
		InternalServerError(w)
		return
	}
	if slot.err == nil {
		slot.err = withStack(err, 2)
	}
}

// Handle converte um HandlerFunc em http.Handler para registro no
// roteador. Erros e panics seguem para o pipeline via Fail, com pilha.
func Handle(h HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Fail(w, r, withStack(call(h, w, r), 1))
	})
}

// Wrap adapta um middleware net/http em Stage. O erro devolvido pelo
// próximo estágio volta pelo slot, mesmo que o middleware troque o
// *http.Request (WithContext preserva o slot).
//
// Se o middleware responder sozinho sem chamar next (ex: preflight CORS),
// o estágio devolve nil.
func Wrap(mw func(http.Handler) http.Handler) Stage {
	return func(next HandlerFunc) HandlerFunc {
		h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Fail(w, r, call(next, w, r))
		}))
		return func(w http.ResponseWriter, r *http.Request) error {
			r, slot := withSlot(r)
			h.ServeHTTP(w, r)
			return slot.err
		}
	}
}
