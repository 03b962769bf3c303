package pipeline

import (
	"errors"
	"fmt"
	"runtime"
)

const internalServerError = "Internal server error"

const maxStackDepth = 64

// StackTracer é implementado por erros que carregam a pilha do ponto onde
// foram criados.
type StackTracer interface {
	StackTrace() []uintptr
}

// PanicError é o erro produzido quando um estágio entra em panic.
type PanicError struct {
	Value any
	stack []uintptr
}

// newPanicError deve ser chamado direto do defer que recuperou o panic:
// pula o próprio defer e runtime.gopanic.
func newPanicError(v any) *PanicError {
	return &PanicError{Value: v, stack: callers(3)}
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap expõe o valor do panic quando ele é um error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func (e *PanicError) StackTrace() []uintptr { return e.stack }

// StackError anexa a pilha atual a um erro.
type StackError struct {
	err   error
	stack []uintptr
}

// WithStack captura a pilha de quem chamou. Erros que já carregam pilha
// voltam inalterados.
func WithStack(err error) error {
	return withStack(err, 2)
}

// withStack(err, 1) captura a pilha a partir de quem chamou withStack.
func withStack(err error, skip int) error {
	if err == nil {
		return nil
	}
	var st StackTracer
	if errors.As(err, &st) {
		return err
	}
	return &StackError{err: err, stack: callers(skip)}
}

// Errorf é fmt.Errorf com a pilha de quem chamou.
func Errorf(format string, args ...any) error {
	return &StackError{err: fmt.Errorf(format, args...), stack: callers(1)}
}

func (e *StackError) Error() string         { return e.err.Error() }
func (e *StackError) Unwrap() error         { return e.err }
func (e *StackError) StackTrace() []uintptr { return e.stack }

// StackOf devolve a primeira pilha encontrada na cadeia de err.
func StackOf(err error) []uintptr {
	var st StackTracer
	if errors.As(err, &st) {
		return st.StackTrace()
	}
	return nil
}

// callers(0) começa na função que chamou callers.
func callers(skip int) []uintptr {
	pcs := make([]uintptr, maxStackDepth)
	n := runtime.Callers(skip+2, pcs)
	return pcs[:n]
}
