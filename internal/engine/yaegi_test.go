package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *YaegiEngine {
	t.Helper()
	e, err := NewYaegiEngine(YaegiOptions{})
	require.NoError(t, err)
	return e
}

func TestYaegi_ExpressionValue(t *testing.T) {
	e := newTestEngine(t)
	var out strings.Builder

	res := e.Execute(context.Background(), "1+1", &out)
	assert.Equal(t, Result{Kind: KindInteger, Text: "2"}, res)
}

func TestYaegi_BindingsPersistUntilReset(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var out strings.Builder

	e.Execute(ctx, "x := 40", &out)
	assert.Equal(t, Result{Kind: KindInteger, Text: "42"}, e.Execute(ctx, "x + 2", &out))

	e.Reset()
	assert.True(t, e.Execute(ctx, "x + 2", &out).IsError())
}

func TestYaegi_StdoutCaptured(t *testing.T) {
	b := NewBridge()
	var lines []string
	b.SetStdout(func(l string) { lines = append(lines, l) })
	b.Attach(newTestEngine(t))

	ctx := context.Background()
	b.Execute(ctx, `import "fmt"`)
	b.Execute(ctx, `fmt.Println("hello")`)

	assert.Equal(t, []string{"hello"}, lines)
}

func TestYaegi_DeclarationsAreEmpty(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var out strings.Builder

	for _, src := range []string{
		"var x = 1",
		`import "fmt"`,
		"func f() {}",
		"type T struct{}",
		"const c = 2",
		"y := 3",
	} {
		assert.Equal(t, Empty(), e.Execute(ctx, src, &out), src)
	}
	assert.Equal(t, Result{Kind: KindInteger, Text: "1"}, e.Execute(ctx, "x", &out))
	assert.Equal(t, Result{Kind: KindInteger, Text: "5"}, e.Execute(ctx, "c + y", &out))
}

func TestYaegi_CallsWithoutValue(t *testing.T) {
	b := NewBridge()
	var lines []string
	b.SetStdout(func(l string) { lines = append(lines, l) })
	b.Attach(newTestEngine(t))
	ctx := context.Background()

	assert.Equal(t, Empty(), b.Execute(ctx, "import \"fmt\"\nfmt.Println(\"hi\")"))
	assert.Equal(t, []string{"hi"}, lines)

	assert.Equal(t, Empty(), b.Execute(ctx, "nil"))
	assert.Equal(t, Empty(), b.Execute(ctx, "func noop() {}\nnoop()"))
	assert.Equal(t, Empty(), b.Execute(ctx, "noop()"))
}

func TestYaegi_MixedDeclarationsAndStatements(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	var out strings.Builder

	src := `// doubles n
func double(n int) int {
	return n * 2
}

n := 20
n++

double(n)
`
	assert.Equal(t, Result{Kind: KindInteger, Text: "42"}, e.Execute(ctx, src, &out))

	res := e.Execute(ctx, "bad := undefinedName\nfunc later() {}", &out)
	assert.True(t, res.IsError())
	res = e.Execute(ctx, "later", &out)
	assert.True(t, res.IsError(), "chunks after a failure are not evaluated")
}

func TestYaegi_ForbiddenImport(t *testing.T) {
	e := newTestEngine(t)
	var out strings.Builder

	res := e.Execute(context.Background(), `import "os/exec"`, &out)
	assert.Equal(t, KindError, res.Kind)
	assert.Contains(t, res.Text, "os/exec")
}

func TestYaegi_Format(t *testing.T) {
	e := newTestEngine(t)

	res := e.Format(context.Background(), "x:=1")
	assert.Equal(t, KindFormattedText, res.Kind)
	assert.Equal(t, "x := 1", strings.TrimSpace(res.Text))

	res = e.Format(context.Background(), "func (")
	assert.Equal(t, KindParseError, res.Kind)
}

func TestImportPaths(t *testing.T) {
	src := `import "fmt"
import str "strings"
import (
	"math" // trig
	j "encoding/json"
)`
	assert.Equal(t, []string{"fmt", "strings", "math", "encoding/json"}, importPaths(src))
	assert.Empty(t, importPaths("x := 1"))
}
