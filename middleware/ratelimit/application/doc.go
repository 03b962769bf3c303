// Package application contém o caso de uso do rate limit de janela fixa.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.Decide(ctx, key) incrementa o contador e devolve uma
// Decision (allow/deny + limite, restante, reset e retry-after).
package application
