package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"time"
)

// Key identifica o cliente (normalmente o IP).
type Key string

// Entry é o estado do contador de uma chave depois do incremento.
type Entry struct {
	// Count já inclui a requisição atual.
	Count int64
	// ResetAt é quando a janela atual expira e a contagem recomeça.
	ResetAt time.Time
}

// Counter incrementa de forma atômica o contador de key dentro de uma janela
// fixa. O primeiro incremento de uma janela cria a entrada com expiração
// igual a window; a expiração é responsabilidade do store.
//
// Implementações devem ser seguras para uso concorrente, inclusive entre
// instâncias diferentes do servidor quando o store é compartilhado.
type Counter interface {
	Increment(ctx context.Context, key Key, window time.Duration) (Entry, error)
}

type Decision struct {
	Allowed bool

	Limit     int
	Remaining int
	ResetAt   time.Time

	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
