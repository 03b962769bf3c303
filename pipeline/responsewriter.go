package pipeline

import "net/http"

// ResponseWriter decora http.ResponseWriter para registrar status, tamanho
// e se a resposta já começou. Estágios de erro consultam Written antes de
// escrever.
//
// WriteHeader chega ao writer original no máximo uma vez.
type ResponseWriter struct {
	http.ResponseWriter

	status      int
	size        int
	wroteHeader bool
}

// NewResponseWriter reaproveita w quando ele já é um *ResponseWriter.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	return &ResponseWriter{ResponseWriter: w}
}

func (w *ResponseWriter) WriteHeader(statusCode int) {
	if w.wroteHeader {
		return
	}
	w.status = statusCode
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *ResponseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}

// Status devolve o status escrito, ou 200 se nada foi escrito ainda.
func (w *ResponseWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func (w *ResponseWriter) Size() int { return w.size }

// Written informa se o cabeçalho já foi enviado.
func (w *ResponseWriter) Written() bool { return w.wroteHeader }

// Unwrap permite que http.ResponseController alcance o writer original
// (Flush, Hijack, deadlines).
func (w *ResponseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Written informa se a resposta em w já começou. Writers que não expõem a
// informação são tratados como não iniciados.
func Written(w http.ResponseWriter) bool {
	if ww, ok := w.(interface{ Written() bool }); ok {
		return ww.Written()
	}
	return false
}

// Status devolve o status registrado em w, ou 200 quando w não é um
// *ResponseWriter ou nada foi escrito.
func Status(w http.ResponseWriter) int {
	if ww, ok := w.(interface{ Status() int }); ok {
		return ww.Status()
	}
	return http.StatusOK
}
