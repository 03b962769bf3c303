// Package domain define contratos e tipos de domínio do rate limit.
//
// Este pacote não depende de net/http nem de implementações concretas.
// A intenção é permitir testes de unidade puros e desacoplar a regra de
// janela fixa dos detalhes do store (Redis, memória).
package domain
