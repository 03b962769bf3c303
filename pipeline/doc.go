// Package pipeline modela a cadeia de requisição como uma lista ordenada de
// estágios.
//
// Visão geral:
//
//   - Stage: recebe o próximo HandlerFunc e devolve outro; pode responder,
//     encaminhar (chamando next) ou devolver um error.
//   - ErrorStage: roda depois que um erro escapou dos estágios, na ordem em
//     que foi registrado; devolve nil quando tratou o erro.
//   - Wrap: adapta middlewares net/http (func(http.Handler) http.Handler)
//     sem perder a propagação de erro.
//   - Dispatch: monta o roteador chi com a tabela de rotas externa.
//
// Erros devolvidos por handlers e panics recuperados seguem sempre o mesmo
// caminho: estágios de erro, na ordem, até o handler de exceção final.
package pipeline
