// Package infra contém implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - RedisCounter: janela fixa compartilhada entre instâncias (script Lua atômico)
//   - MemoryCounter: janela fixa em memória, para instância única e testes
//   - RedisStatsStore / MemoryStatsStore: estatísticas das decisões
package infra
