// Package ratelimit fornece o estágio de rate limit de janela fixa do
// pipeline HTTP.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: decisão allow/deny a partir da contagem da janela
//   - infra: contadores concretos (Redis, memória) e stores de estatística
//   - ratelimit (este pacote): estágio HTTP, extração de chave e tradução
//     para status/headers
//
// Fluxo:
//
//  1. Extrai a chave do cliente (IP/header/XFF)
//  2. Incrementa a janela no Counter e obtém a decisão
//  3. Se bloqueado, responde 429 com Retry-After e não chama o próximo estágio
//  4. Se o store falhar, devolve erro ao pipeline (ou segue, com FailOpen)
//  5. Se permitido, chama o próximo estágio
//
// Variáveis de ambiente do binário (cmd/server) controlam o comportamento,
// como RATE_LIMIT_MAX, RATE_LIMIT_WINDOW_MS e RATE_LIMIT_FAIL_OPEN.
package ratelimit
