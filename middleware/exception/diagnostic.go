package exception

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"runtime"
	"strings"

	"github.com/campaner/gobarber-server/pipeline"
)

// Diagnostic é o corpo de erro do modo desenvolvimento.
type Diagnostic struct {
	Error   ErrorReport `json:"error"`
	Request RequestInfo `json:"request"`
}

type ErrorReport struct {
	Message string  `json:"message"`
	Name    string  `json:"name"`
	Status  int     `json:"status"`
	Frames  []Frame `json:"frames"`
	Causes  []Cause `json:"causes,omitempty"`
}

type Frame struct {
	Function string         `json:"function"`
	File     string         `json:"file"`
	Line     int            `json:"line"`
	Package  string         `json:"package"`
	Context  *SourceContext `json:"context,omitempty"`
	IsApp    bool           `json:"isApp"`
}

// SourceContext é o trecho do arquivo em volta da linha do frame. Start é
// o número da primeira linha de Pre.
type SourceContext struct {
	Start int      `json:"start"`
	Pre   []string `json:"pre"`
	Line  string   `json:"line"`
	Post  []string `json:"post"`
}

type Cause struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

type RequestInfo struct {
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers"`
	RemoteAddr string            `json:"remoteAddr"`
}

var redactedHeaders = map[string]bool{
	"Authorization": true,
	"Cookie":        true,
	"Set-Cookie":    true,
}

func describe(err error, src *sourceCache, lines int) ErrorReport {
	named := unstacked(err)
	rep := ErrorReport{
		Message: err.Error(),
		Name:    errorName(named),
		Status:  http.StatusInternalServerError,
		Frames:  []Frame{},
	}

	for _, pc := range framesOf(pipeline.StackOf(err)) {
		f := Frame{
			Function: pc.Function,
			File:     pc.File,
			Line:     pc.Line,
			Package:  packageOf(pc.Function),
			IsApp:    isApp(pc.Function),
		}
		if lines > 0 {
			f.Context = src.context(pc.File, pc.Line, lines)
		}
		rep.Frames = append(rep.Frames, f)
	}

	for cause := unstacked(errors.Unwrap(named)); cause != nil; cause = unstacked(errors.Unwrap(cause)) {
		rep.Causes = append(rep.Causes, Cause{Message: cause.Error(), Name: errorName(cause)})
	}
	return rep
}

// unstacked pula os *pipeline.StackError, que só carregam a pilha: o nome
// exibido é o do erro que a rota devolveu.
func unstacked(err error) error {
	for {
		se, ok := err.(*pipeline.StackError)
		if !ok {
			return err
		}
		err = se.Unwrap()
	}
}

func framesOf(pcs []uintptr) []runtime.Frame {
	if len(pcs) == 0 {
		return nil
	}
	var out []runtime.Frame
	frames := runtime.CallersFrames(pcs)
	for {
		f, more := frames.Next()
		if f.Function != "" {
			out = append(out, f)
		}
		if !more {
			break
		}
	}
	return out
}

// errorName usa o tipo concreto sem o ponteiro: "pipeline.PanicError".
func errorName(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return fmt.Sprintf("%T", err)
	}
	pkg := t.PkgPath()
	if i := strings.LastIndex(pkg, "/"); i >= 0 {
		pkg = pkg[i+1:]
	}
	if pkg == "" {
		return t.Name()
	}
	return pkg + "." + t.Name()
}

// packageOf extrai o import path de um nome de função do runtime
// ("github.com/x/y/pkg.(*T).Method" -> "github.com/x/y/pkg").
func packageOf(function string) string {
	slash := strings.LastIndex(function, "/")
	rest := function[slash+1:]
	dot := strings.Index(rest, ".")
	if dot < 0 {
		return function
	}
	return function[:slash+1+dot]
}

// appModule é o prefixo dos pacotes do servidor.
const appModule = "github.com/campaner/gobarber-server"

// isApp separa o código do servidor de dependências, runtime e stdlib.
func isApp(function string) bool {
	pkg := packageOf(function)
	return pkg == "main" || pkg == appModule || strings.HasPrefix(pkg, appModule+"/")
}

func describeRequest(r *http.Request) RequestInfo {
	info := RequestInfo{
		Method:     r.Method,
		URL:        r.URL.RequestURI(),
		Headers:    make(map[string]string, len(r.Header)),
		RemoteAddr: r.RemoteAddr,
	}
	for k, v := range r.Header {
		if redactedHeaders[k] {
			info.Headers[k] = "[redacted]"
			continue
		}
		info.Headers[k] = strings.Join(v, ", ")
	}
	return info
}

func (c *sourceCache) context(file string, line, n int) *SourceContext {
	lines, ok := c.load(file)
	if !ok || line < 1 || line > len(lines) {
		return nil
	}

	idx := line - 1
	start := max(idx-n, 0)
	end := min(idx+n+1, len(lines))

	return &SourceContext{
		Start: start + 1,
		Pre:   append([]string{}, lines[start:idx]...),
		Line:  lines[idx],
		Post:  append([]string{}, lines[idx+1:end]...),
	}
}

func (c *sourceCache) load(file string) ([]string, bool) {
	if lines, ok := c.files[file]; ok {
		return lines, lines != nil
	}
	data, err := c.read(file)
	if err != nil {
		c.files[file] = nil
		return nil, false
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	c.files[file] = lines
	return lines, true
}
