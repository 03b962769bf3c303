package pipeline

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorBody é o corpo JSON padrão de erro: {"error": "..."}.
type ErrorBody struct {
	Error string `json:"error"`
}

// WriteJSON serializa data, define Content-Type e escreve o status.
// Falha de serialização vira 500 em texto e é devolvida ao chamador.
func WriteJSON(w http.ResponseWriter, data any, statusCode int) (int, error) {
	body, err := json.Marshal(data)
	if err != nil {
		http.Error(w, "error writing data to JSON", http.StatusInternalServerError)
		return 0, fmt.Errorf("error writing data to JSON: %w", err)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusCode)

	return w.Write(body)
}

// InternalServerError escreve o corpo mínimo de erro com status 500.
func InternalServerError(w http.ResponseWriter) {
	_, _ = WriteJSON(w, ErrorBody{Error: internalServerError}, http.StatusInternalServerError)
}
