package engine

import (
	"context"
	"errors"
	"fmt"
	"go/format"
	"go/scanner"
	"io"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"gopad/internal/logging"
)

// YaegiOptions configures the Go interpreter engine.
type YaegiOptions struct {
	// Import paths submitted code may use. Empty means DefaultAllowedPackages.
	AllowedPackages []string
}

// DefaultAllowedPackages are the stdlib packages available to submitted code.
// os, os/exec, net, syscall and unsafe are never allowed.
var DefaultAllowedPackages = []string{
	"strings", "strconv", "fmt", "math", "regexp", "encoding/json",
	"encoding/base64", "time", "sort", "bytes", "errors", "unicode",
	"unicode/utf8", "slices", "maps", "math/rand",
}

// YaegiEngine interprets Go with yaegi. Bindings persist across Execute
// calls until Reset.
type YaegiEngine struct {
	mu      sync.Mutex
	interp  *interp.Interpreter
	out     *switchWriter
	allowed map[string]bool
	parser  *TreeParser
}

// NewYaegiEngine creates an engine with a fresh interpreter.
func NewYaegiEngine(opts YaegiOptions) (*YaegiEngine, error) {
	pkgs := opts.AllowedPackages
	if len(pkgs) == 0 {
		pkgs = DefaultAllowedPackages
	}
	allowed := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		allowed[p] = true
	}

	e := &YaegiEngine{
		out:     &switchWriter{},
		allowed: allowed,
		parser:  NewTreeParser(),
	}
	i, err := e.newInterpreter()
	if err != nil {
		return nil, err
	}
	e.interp = i
	return e, nil
}

// YaegiLoader returns a Loader that builds a YaegiEngine.
func YaegiLoader(opts YaegiOptions) Loader {
	return func(ctx context.Context) (Engine, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return NewYaegiEngine(opts)
	}
}

func (e *YaegiEngine) newInterpreter() (*interp.Interpreter, error) {
	i := interp.New(interp.Options{
		Stdout: e.out,
		Stderr: e.out,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}
	return i, nil
}

// Execute evaluates text against the persistent interpreter. Declarations
// and statements may be mixed; the value is that of the last statement.
// Evaluation stops at the first failing chunk.
func (e *YaegiEngine) Execute(ctx context.Context, text string, stdout io.Writer) Result {
	if err := e.validateImports(text); err != nil {
		return Errorf("%v", err)
	}

	chunks, ok := e.parser.split(ctx, text)
	if !ok {
		chunks = []chunk{{text: text}}
	}
	logging.EngineDebug("yaegi: evaluating %d chunk(s)", len(chunks))

	e.mu.Lock()
	defer e.mu.Unlock()

	e.out.Set(stdout)
	defer e.out.Set(nil)

	res := Empty()
	for _, c := range chunks {
		v, err := e.interp.EvalWithContext(ctx, c.text)
		if err != nil {
			return fromEvalError(ctx, err)
		}
		if c.decl || c.quiet {
			res = Empty()
			continue
		}
		res = fromValue(v)
	}
	return res
}

// Format runs gofmt over text. Statement lists and declaration lists are
// accepted as well as whole files.
func (e *YaegiEngine) Format(ctx context.Context, text string) Result {
	if err := ctx.Err(); err != nil {
		return Errorf("format cancelled: %v", err)
	}
	out, err := format.Source([]byte(text))
	if err != nil {
		return Result{Kind: KindParseError, Text: err.Error()}
	}
	return Result{Kind: KindFormattedText, Text: string(out)}
}

// Parse returns the tree-sitter structure of text as JSON.
func (e *YaegiEngine) Parse(ctx context.Context, text string) Result {
	return e.parser.ParseJSON(ctx, text)
}

// Reset discards all bindings by replacing the interpreter.
func (e *YaegiEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	i, err := e.newInterpreter()
	if err != nil {
		logging.Get(logging.CategoryEngine).Error("reset: %v", err)
		return
	}
	e.interp = i
}

func fromEvalError(ctx context.Context, err error) Result {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Errorf("execution interrupted: %v", ctxErr)
	}
	var list scanner.ErrorList
	if errors.As(err, &list) {
		return Result{Kind: KindParseError, Text: list.Error()}
	}
	var p interp.Panic
	if errors.As(err, &p) {
		return Errorf("panic: %v", p.Value)
	}
	return Errorf("%v", err)
}

// fromValue maps an interpreter value onto a result kind.
func fromValue(v reflect.Value) Result {
	if !v.IsValid() {
		return Empty()
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return Empty()
		}
		v = v.Elem()
	}
	// Declarations and calls without results come back as *interface{}.
	if v.Kind() == reflect.Ptr && v.Type().Elem().Kind() == reflect.Interface {
		return Empty()
	}
	if v.Kind() == reflect.Ptr && v.IsNil() {
		return Result{Kind: KindText, Text: "nil"}
	}

	switch v.Kind() {
	case reflect.Bool:
		return Result{Kind: KindBoolean, Text: strconv.FormatBool(v.Bool())}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Result{Kind: KindInteger, Text: strconv.FormatInt(v.Int(), 10)}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Result{Kind: KindInteger, Text: strconv.FormatUint(v.Uint(), 10)}
	case reflect.Float32, reflect.Float64:
		return Result{Kind: KindFloat, Text: strconv.FormatFloat(v.Float(), 'g', -1, 64)}
	case reflect.String:
		return Result{Kind: KindText, Text: v.String()}
	case reflect.Slice, reflect.Array:
		return Result{Kind: KindSequence, Text: fmt.Sprintf("%v", v.Interface())}
	case reflect.Map, reflect.Struct:
		return Result{Kind: KindMapping, Text: fmt.Sprintf("%+v", v.Interface())}
	case reflect.Func:
		return Result{Kind: KindCallable, Text: v.Type().String()}
	default:
		if v.CanInterface() {
			return Result{Kind: KindText, Text: fmt.Sprintf("%v", v.Interface())}
		}
		return Result{Kind: KindText, Text: v.String()}
	}
}

// validateImports checks that text only imports allowed packages.
func (e *YaegiEngine) validateImports(text string) error {
	var forbidden []string
	for _, pkg := range importPaths(text) {
		if !e.allowed[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %v (allowed: %v)", forbidden, e.allowedPackages())
	}
	return nil
}

// importPaths extracts import paths from single-line and block imports.
func importPaths(text string) []string {
	var imports []string
	inBlock := false
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if i := strings.Index(trimmed, "//"); i >= 0 {
			trimmed = strings.TrimSpace(trimmed[:i])
		}

		switch {
		case strings.HasPrefix(trimmed, "import ("):
			inBlock = true
			if rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "import (")); rest != "" {
				imports = appendImport(imports, strings.TrimSuffix(rest, ")"))
				inBlock = !strings.HasSuffix(rest, ")")
			}
		case inBlock && strings.HasPrefix(trimmed, ")"):
			inBlock = false
		case inBlock:
			imports = appendImport(imports, trimmed)
		case strings.HasPrefix(trimmed, "import "):
			imports = appendImport(imports, strings.TrimPrefix(trimmed, "import "))
		}
	}
	return imports
}

// appendImport handles an import spec, with or without an alias.
func appendImport(imports []string, spec string) []string {
	fields := strings.Fields(spec)
	if len(fields) == 0 {
		return imports
	}
	path := strings.Trim(fields[len(fields)-1], "\"`;")
	if path == "" {
		return imports
	}
	return append(imports, path)
}

func (e *YaegiEngine) allowedPackages() []string {
	pkgs := make([]string, 0, len(e.allowed))
	for pkg := range e.allowed {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}

// switchWriter forwards to whichever writer the running call installed.
// Writes with nothing installed are discarded.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	w := s.w
	s.mu.Unlock()
	if w == nil {
		return len(p), nil
	}
	return w.Write(p)
}
