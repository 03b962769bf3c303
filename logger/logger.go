// Package logger embrulha o zerolog.Logger com construtores e helpers de
// contexto usados por todo o servidor.
//
// O tipo Logger embute zerolog.Logger, então todos os métodos do zerolog
// (Debug, Info, Warn, Error, ...) ficam disponíveis direto em *Logger.
// Loggers por requisição são obtidos com FromContext ou FromRequest.
package logger

import (
	"context"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Logger struct {
	zerolog.Logger
}

// Options controla o formato e o nível do logger raiz.
type Options struct {
	// Level aceita os nomes do zerolog ("debug", "info", "warn", ...).
	// Valor vazio ou inválido cai para info.
	Level string
	// Pretty troca o JSON pelo ConsoleWriter (útil em desenvolvimento).
	Pretty bool
	// Output padrão: os.Stdout.
	Output io.Writer
}

// NewLogger cria o logger raiz para o papel informado (ex: "server").
//
// Todo evento carrega os campos "role", timestamp e "func" (nome da função
// chamadora em vez de arquivo:linha).
func NewLogger(role string, opts Options) *Logger {
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return runtime.FuncForPC(pc).Name()
	}
	zerolog.CallerFieldName = "func"

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	l := zerolog.New(out).Level(level).With().
		Str("role", role).
		Timestamp().
		Caller().
		Logger()

	return &Logger{l}
}

// Nop descarta tudo. Usado em testes.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// GetChildLogger devolve um logger que herda os campos do receptor e pode
// ser enriquecido sem afetar o pai.
func (l *Logger) GetChildLogger() *Logger {
	return &Logger{l.With().Logger()}
}

// FromRequest extrai o logger guardado no contexto da requisição
// (zerolog log.Ctx).
func FromRequest(r *http.Request) *Logger {
	return FromContext(r.Context())
}

// FromContext extrai o logger guardado em ctx. Sem logger no contexto o
// zerolog devolve o logger padrão (ou um desabilitado), nunca nil.
func FromContext(ctx context.Context) *Logger {
	return &Logger{*log.Ctx(ctx)}
}
