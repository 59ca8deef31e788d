package repl

import (
	"context"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopad/internal/engine"
	"gopad/internal/ledger"
	"gopad/internal/session"
)

type echoEngine struct{}

func (echoEngine) Execute(_ context.Context, text string, _ io.Writer) engine.Result {
	return engine.Result{Kind: engine.KindText, Text: strings.TrimSpace(text)}
}

func (echoEngine) Format(_ context.Context, text string) engine.Result {
	return engine.Result{Kind: engine.KindFormattedText, Text: strings.TrimSpace(text)}
}

func (echoEngine) Parse(context.Context, string) engine.Result {
	return engine.Result{Kind: engine.KindParsedTreeJSON, Text: `{"type":"source_file"}`}
}

func (echoEngine) Reset() {}

func newModel(t *testing.T) *Model {
	t.Helper()
	b := engine.NewBridge()
	b.Attach(echoEngine{})
	sess, err := session.New(context.Background(), session.Options{Bridge: b, Default: "a\nb\nc"})
	require.NoError(t, err)
	m := New(sess, Options{})
	t.Cleanup(func() {
		m.Shutdown()
		sess.Close()
	})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
		ok   bool
	}{
		{"/run", Command{Name: "run"}, true},
		{"  /Select 2-4 ", Command{Name: "select", Arg: "2-4"}, true},
		{"/example tower of hanoi", Command{Name: "example", Arg: "tower of hanoi"}, true},
		{"1+1", Command{}, false},
		{"/", Command{}, false},
		{"", Command{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseCommand(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestParseLineRange(t *testing.T) {
	start, end, err := ParseLineRange("2-5")
	require.NoError(t, err)
	assert.Equal(t, 2, start)
	assert.Equal(t, 5, end)

	start, end, err = ParseLineRange(" 3 ")
	require.NoError(t, err)
	assert.Equal(t, 3, start)
	assert.Equal(t, 3, end)

	for _, bad := range []string{"", "x", "2-y", "0-1", "5-2"} {
		_, _, err := ParseLineRange(bad)
		assert.Error(t, err, bad)
	}
}

func TestCommandLineRunsCode(t *testing.T) {
	m := newModel(t)
	m.cmdline.SetValue("hello")

	cmd := m.submitLine()
	require.NotNil(t, cmd)
	assert.True(t, m.running)
	assert.Empty(t, m.cmdline.Value())

	msg := cmd()
	done, ok := msg.(runDoneMsg)
	require.True(t, ok)
	assert.Equal(t, "hello", done.res.Text)

	m.Update(msg)
	assert.False(t, m.running)

	entries := m.sess.Ledger().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, ledger.CommandLineSubmission, entries[0].Kind)
}

func TestRunRejectedWhileRunning(t *testing.T) {
	m := newModel(t)
	m.running = true
	assert.Nil(t, m.run(ledger.CommandLineSubmission, "x"))
	assert.Equal(t, "Still running…", m.status)
}

func TestSelectAndRunSelection(t *testing.T) {
	m := newModel(t)

	assert.Nil(t, m.execCommand(Command{Name: "runsel"}))
	assert.Contains(t, m.status, "Nothing selected")

	m.execCommand(Command{Name: "select", Arg: "2"})
	sel, ok := m.sess.Code().Selection()
	require.True(t, ok)
	assert.Equal(t, "b", sel)

	cmd := m.execCommand(Command{Name: "runsel"})
	require.NotNil(t, cmd)
	done := cmd().(runDoneMsg)
	assert.Equal(t, "b", done.res.Text)
	assert.Equal(t, ledger.EditorSubmission, m.sess.Ledger().Entries()[0].Kind)
}

func TestBufferMessagesSyncEditor(t *testing.T) {
	m := newModel(t)
	m.Update(bufferMsg{text: "x := 1"})
	assert.Equal(t, "x := 1", m.editor.Value())
}

func TestLateEchoDoesNotRevertTyping(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := newModel(t)
	t.Cleanup(cancel)
	m.dispatcher.Bind(tea.NewProgram(m, tea.WithContext(ctx), tea.WithInput(nil), tea.WithOutput(io.Discard)))

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	first := m.editor.Value()
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})
	second := m.editor.Value()
	require.NotEqual(t, first, second)

	m.Update(bufferMsg{text: first})
	assert.Equal(t, second, m.editor.Value())
	m.Update(bufferMsg{text: second})
	assert.Equal(t, second, m.editor.Value())
	assert.Empty(t, m.echoes)

	m.Update(bufferMsg{text: "loaded elsewhere"})
	assert.Equal(t, "loaded elsewhere", m.editor.Value())
}

func TestExampleAndUnknownCommand(t *testing.T) {
	m := newModel(t)

	m.execCommand(Command{Name: "example", Arg: "factorial"})
	assert.Contains(t, m.sess.Code().Text(), "fact")

	m.execCommand(Command{Name: "example", Arg: "nope"})
	assert.Contains(t, m.status, "Examples:")

	m.execCommand(Command{Name: "bogus"})
	assert.Contains(t, m.status, "Unknown command /bogus")
}

func TestTreeToggleResizesPanes(t *testing.T) {
	m := newModel(t)
	assert.Zero(t, m.treeHeight)

	m.execCommand(Command{Name: "tree"})
	assert.Equal(t, "Tree shown", m.status)
	assert.Positive(t, m.treeHeight)
	assert.Contains(t, m.View(), "source_file")

	m.execCommand(Command{Name: "tree"})
	assert.Equal(t, "Tree hidden", m.status)
	assert.Zero(t, m.treeHeight)
}

func TestHelpOverlayClosesOnKey(t *testing.T) {
	m := newModel(t)
	m.execCommand(Command{Name: "help"})
	require.NotEmpty(t, m.overlay)

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	assert.Empty(t, m.overlay)
}

func TestDispatcherRunsInlineWhenUnbound(t *testing.T) {
	var d Dispatcher
	ran := false
	d.Dispatch(func() { ran = true })
	assert.True(t, ran)
	d.Send(ledgerMsg{})
}

func TestEngineReadyMessage(t *testing.T) {
	m := newModel(t)
	msg := m.waitReady()()
	m.Update(msg)
	assert.Equal(t, "ready", m.engineState)
}
