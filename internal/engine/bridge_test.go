package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptEngine answers from a table and records calls.
type scriptEngine struct {
	mu      sync.Mutex
	calls   []string
	results map[string]Result
	output  map[string][]string
	tree    string
	resets  int
}

func newScriptEngine() *scriptEngine {
	return &scriptEngine{results: map[string]Result{}, output: map[string][]string{}}
}

func (s *scriptEngine) Execute(ctx context.Context, text string, stdout io.Writer) Result {
	s.mu.Lock()
	s.calls = append(s.calls, "exec:"+text)
	lines := s.output[text]
	res, ok := s.results[text]
	s.mu.Unlock()

	for _, l := range lines {
		fmt.Fprint(stdout, l)
	}
	if text == "boom" {
		panic("engine exploded")
	}
	if !ok {
		return Empty()
	}
	return res
}

func (s *scriptEngine) Format(ctx context.Context, text string) Result {
	return Result{Kind: KindFormattedText, Text: text + "\n"}
}

func (s *scriptEngine) Parse(ctx context.Context, text string) Result {
	return Result{Kind: KindParsedTreeJSON, Text: s.tree}
}

func (s *scriptEngine) Reset() {
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
}

func TestBridge_UnavailableBeforeReady(t *testing.T) {
	b := NewBridge()
	ctx := context.Background()

	assert.False(t, b.IsReady())
	assert.Equal(t, KindEngineUnavailable, b.Execute(ctx, "1+1").Kind)
	assert.Equal(t, KindEngineUnavailable, b.Format(ctx, "x").Kind)
	assert.Equal(t, KindEngineUnavailable, b.Parse(ctx, "x").Kind)
	b.Reset()
}

func TestBridge_StartReachesReadyOnce(t *testing.T) {
	eng := newScriptEngine()
	eng.results["1+1"] = Result{Kind: KindInteger, Text: "2"}

	b := NewBridge()
	loads := 0
	loader := func(ctx context.Context) (Engine, error) {
		loads++
		return eng, nil
	}
	b.Start(context.Background(), loader)
	b.Start(context.Background(), loader)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, b.WaitReady(ctx))
	assert.Equal(t, 1, loads)

	res := b.Execute(context.Background(), "1+1")
	assert.Equal(t, Result{Kind: KindInteger, Text: "2"}, res)
}

func TestBridge_LoadFailure(t *testing.T) {
	b := NewBridge()
	b.Start(context.Background(), func(ctx context.Context) (Engine, error) {
		return nil, errors.New("no wasm here")
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := b.WaitReady(ctx)
	require.ErrorIs(t, err, ErrNotReady)
	assert.False(t, b.IsReady())
	assert.Equal(t, KindEngineUnavailable, b.Execute(context.Background(), "1").Kind)
}

func TestBridge_StdoutLinesDeliveredBeforeReturn(t *testing.T) {
	eng := newScriptEngine()
	eng.output["print"] = []string{"hello\nwor", "ld\n", "tail"}
	eng.results["print"] = Empty()

	var lines []string
	b := NewBridge(WithStdout(func(line string) { lines = append(lines, line) }))
	b.Attach(eng)

	res := b.Execute(context.Background(), "print")
	assert.Equal(t, KindEmpty, res.Kind)
	assert.Equal(t, []string{"hello", "world", "tail"}, lines)
}

func TestBridge_PanicBecomesError(t *testing.T) {
	b := NewBridge()
	b.Attach(newScriptEngine())

	res := b.Execute(context.Background(), "boom")
	assert.Equal(t, KindError, res.Kind)
	assert.Contains(t, res.Text, "engine exploded")

	// Still usable afterwards.
	assert.Equal(t, KindEmpty, b.Execute(context.Background(), "ok").Kind)
}

func TestBridge_ParseDecodesTree(t *testing.T) {
	eng := newScriptEngine()
	eng.tree = `{"type":"source_file","start":{"row":0,"column":0},"end":{"row":0,"column":5},"children":[{"type":"identifier","start":{"row":0,"column":0},"end":{"row":0,"column":1},"text":"x"}]}`

	b := NewBridge()
	b.Attach(eng)

	res := b.Parse(context.Background(), "x")
	require.Equal(t, KindParsedTreeJSON, res.Kind)
	require.NotNil(t, res.Tree)
	assert.Equal(t, "source_file", res.Tree.Type)
	assert.Equal(t, 2, res.Tree.Count())
}

func TestBridge_ParseMalformedTree(t *testing.T) {
	eng := newScriptEngine()
	eng.tree = `{"type": `

	b := NewBridge()
	b.Attach(eng)

	res := b.Parse(context.Background(), "x")
	assert.Equal(t, KindParsedTreeError, res.Kind)
	assert.Nil(t, res.Tree)
}

func TestBridge_ResetReachesEngine(t *testing.T) {
	eng := newScriptEngine()
	b := NewBridge()
	b.Attach(eng)

	b.Reset()
	assert.Equal(t, 1, eng.resets)
}

func TestBridge_ExecuteSerialized(t *testing.T) {
	eng := &slowEngine{scriptEngine: newScriptEngine()}
	b := NewBridge()
	b.Attach(eng)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Execute(context.Background(), "x")
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), eng.maxActive)
}

type slowEngine struct {
	*scriptEngine
	mu        sync.Mutex
	active    int32
	maxActive int32
}

func (s *slowEngine) Execute(ctx context.Context, text string, stdout io.Writer) Result {
	s.mu.Lock()
	s.active++
	if s.active > s.maxActive {
		s.maxActive = s.active
	}
	s.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	return Empty()
}

func TestLineWriter_DropsAfterClose(t *testing.T) {
	var got []string
	w := newLineWriter(func(l string) { got = append(got, l) })

	_, _ = w.Write([]byte("a\r\nb"))
	require.NoError(t, w.Close())
	_, _ = w.Write([]byte("late\n"))

	assert.Equal(t, []string{"a", "b"}, got)
}
