// Package monitoring integra o pipeline ao serviço de relatório de erros
// (Sentry) e ao tracing (OpenTelemetry).
//
// Enter abre o escopo da requisição: um hub do Sentry clonado e um span
// de servidor, ambos no contexto. Exit fecha o escopo quando a requisição
// falha e envia o relatório em segundo plano, sem atrasar a resposta.
//
// O envio passa por um pool limitado de vagas. Sem vaga livre o relatório é
// descartado; falhas do Reporter só aparecem no log local.
package monitoring
