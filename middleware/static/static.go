// Package static monta um diretório do disco como área pública somente
// leitura sob um prefixo de URL.
package static

import (
	"errors"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/campaner/gobarber-server/logger"
	"github.com/campaner/gobarber-server/pipeline"
)

// Prefix é o prefixo público dos arquivos enviados.
const Prefix = "/files"

// Mount serve arquivos regulares de root sob prefix.
//
// Só GET e HEAD são atendidos. Diretórios (sem listagem), arquivos
// inexistentes e outros métodos seguem para o próximo estágio, que
// normalmente termina no 404 das rotas. http.Dir não deixa o caminho sair
// de root.
func Mount(prefix, root string, log *logger.Logger) pipeline.Stage {
	prefix = "/" + strings.Trim(prefix, "/")
	dir := http.Dir(root)
	if log == nil {
		log = logger.Nop()
	}

	return func(next pipeline.HandlerFunc) pipeline.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) error {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				return next(w, r)
			}

			name, ok := strings.CutPrefix(r.URL.Path, prefix+"/")
			if !ok || name == "" {
				return next(w, r)
			}

			f, err := dir.Open(path.Clean("/" + name))
			if err != nil {
				if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, fs.ErrPermission) {
					log.Debug().Err(err).Str("path", r.URL.Path).Msg("static open")
				}
				return next(w, r)
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil || !info.Mode().IsRegular() {
				return next(w, r)
			}

			http.ServeContent(w, r, info.Name(), info.ModTime(), f)
			return nil
		}
	}
}
