// Package bodyparser lê e valida corpos JSON antes das rotas.
//
// O documento bruto fica no contexto (Raw) e o r.Body é rearmado com os
// mesmos bytes, então handlers podem usar Decode ou ler o corpo de novo.
package bodyparser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/campaner/gobarber-server/pipeline"
)

// DefaultLimit é o tamanho máximo de corpo aceito (100 KiB).
const DefaultLimit int64 = 100 << 10

var (
	ErrBodyTooLarge  = errors.New("request body too large")
	ErrMalformedJSON = errors.New("malformed JSON body")
	ErrNoBody        = errors.New("no JSON body in request")
)

type bodyKey struct{}

// JSON devolve o estágio de parsing. Requisições sem Content-Type JSON
// passam intactas; corpo grande demais ou inválido vira erro do pipeline.
func JSON(limit int64) pipeline.Stage {
	if limit <= 0 {
		limit = DefaultLimit
	}

	return func(next pipeline.HandlerFunc) pipeline.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) error {
			if !isJSON(r) || r.Body == nil || r.Body == http.NoBody {
				return next(w, r)
			}

			// um byte a mais para distinguir "exatamente limit" de "excedeu"
			body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
			_ = r.Body.Close()
			if err != nil {
				return pipeline.WithStack(fmt.Errorf("read body: %w", err))
			}
			if int64(len(body)) > limit {
				return pipeline.WithStack(fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, limit))
			}

			// corpo vazio é aceito, como no express.json
			if len(bytes.TrimSpace(body)) > 0 && !json.Valid(body) {
				return pipeline.WithStack(ErrMalformedJSON)
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			r = r.WithContext(context.WithValue(r.Context(), bodyKey{}, json.RawMessage(body)))
			return next(w, r)
		}
	}
}

// Raw devolve o corpo JSON lido pelo estágio, ou nil.
func Raw(ctx context.Context) json.RawMessage {
	raw, _ := ctx.Value(bodyKey{}).(json.RawMessage)
	return raw
}

// Decode decodifica o corpo já validado em v.
func Decode(r *http.Request, v any) error {
	raw := Raw(r.Context())
	if len(bytes.TrimSpace(raw)) == 0 {
		return ErrNoBody
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedJSON, err)
	}
	return nil
}

func isJSON(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(ct)
	return err == nil && mt == "application/json"
}
