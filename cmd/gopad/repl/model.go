// Package repl provides the interactive terminal front end for gopad.
package repl

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"gopad/cmd/gopad/ui"
	"gopad/internal/engine"
	"gopad/internal/examples"
	"gopad/internal/ledger"
	"gopad/internal/logging"
	"gopad/internal/session"
)

type focus int

const (
	focusEditor focus = iota
	focusCommand
)

// Messages delivered to Update.
type (
	runDoneMsg     struct{ res engine.Result }
	ledgerMsg      struct{}
	bufferMsg      struct{ text string }
	dispatchMsg    struct{ fn func() }
	engineReadyMsg struct{ err error }
	statusMsg      string
)

// Status returns a message that sets the footer status line.
func Status(text string) tea.Msg { return statusMsg(text) }

// Dispatcher hops work onto the bubbletea event loop. It is created before
// the program exists, so the program is bound late.
type Dispatcher struct {
	mu sync.Mutex
	p  *tea.Program
}

// Bind attaches the running program.
func (d *Dispatcher) Bind(p *tea.Program) {
	d.mu.Lock()
	d.p = p
	d.mu.Unlock()
}

// Dispatch runs fn inside Update, or inline before a program is bound.
func (d *Dispatcher) Dispatch(fn func()) {
	d.mu.Lock()
	p := d.p
	d.mu.Unlock()
	if p == nil {
		fn()
		return
	}
	p.Send(dispatchMsg{fn: fn})
}

// Bound reports whether a program is attached.
func (d *Dispatcher) Bound() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.p != nil
}

// Send forwards msg to the program if one is bound. It never blocks, since
// it is also reached from inside Update.
func (d *Dispatcher) Send(msg tea.Msg) {
	d.mu.Lock()
	p := d.p
	d.mu.Unlock()
	if p != nil {
		go p.Send(msg)
	}
}

// Options configures the front end.
type Options struct {
	LoadTimeout time.Duration
	Dispatcher  *Dispatcher
}

// Model is the bubbletea model for the session screen.
type Model struct {
	sess       *session.Session
	dispatcher *Dispatcher
	styles     ui.Styles
	renderer   *glamour.TermRenderer

	editor     textarea.Model
	cmdline    textinput.Model
	transcript viewport.Model
	scroll     *ledger.AutoScroll

	focus       focus
	width       int
	height      int
	ready       bool
	running     bool
	engineState string
	status      string
	overlay     string
	treeHeight  int
	loadTimeout time.Duration

	// echoes counts buffer notifications still in flight for text typed in
	// the editor. Those are skipped so a late echo never reverts the editor.
	echoes map[string]int

	ctx    context.Context
	cancel context.CancelFunc

	stopListen func()
}

// New creates the model. Ledger and buffer changes made outside Update are
// forwarded through the dispatcher.
func New(sess *session.Session, opts Options) *Model {
	styles := ui.DefaultStyles()

	editor := textarea.New()
	editor.ShowLineNumbers = true
	editor.Placeholder = "Write Go here. ctrl+r runs it."
	editor.CharLimit = 0
	editor.SetValue(sess.Code().Text())
	editor.Focus()

	cmdline := textinput.New()
	cmdline.Prompt = "» "
	cmdline.Placeholder = "1+1, or /help"

	vp := viewport.New(80, 10)

	d := opts.Dispatcher
	if d == nil {
		d = &Dispatcher{}
	}
	lt := opts.LoadTimeout
	if lt <= 0 {
		lt = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		sess:        sess,
		dispatcher:  d,
		styles:      styles,
		renderer:    ui.NewMarkdownRenderer(styles.Theme, 76),
		editor:      editor,
		cmdline:     cmdline,
		transcript:  vp,
		scroll:      ledger.NewAutoScroll(ledger.DefaultScrollThreshold),
		engineState: "loading",
		loadTimeout: lt,
		echoes:      make(map[string]int),
		ctx:         ctx,
		cancel:      cancel,
	}

	m.stopListen = sess.Ledger().Listen(func(ledger.Entry) { d.Send(ledgerMsg{}) })
	sess.Code().OnChange(func(text string) { d.Send(bufferMsg{text: text}) })

	switch sess.Origin().String() {
	case "shared":
		m.status = "Loaded buffer from share link"
	case "persisted":
		m.status = "Restored previous buffer"
	}
	return m
}

// Init starts waiting for the engine.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitReady())
}

func (m *Model) waitReady() tea.Cmd {
	bridge := m.sess.Bridge()
	timeout := m.loadTimeout
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return engineReadyMsg{err: bridge.WaitReady(ctx)}
	}
}

// Shutdown releases background resources. Safe to call more than once.
func (m *Model) Shutdown() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.stopListen != nil {
		m.stopListen()
		m.stopListen = nil
	}
}

func (m *Model) run(kind ledger.EntryKind, text string) tea.Cmd {
	if m.running {
		m.status = "Still running…"
		return nil
	}
	m.running = true
	m.scroll.Resume()
	sess, ctx := m.sess, m.ctx
	return func() tea.Msg {
		return runDoneMsg{res: sess.Run(ctx, text, kind)}
	}
}

func (m *Model) refreshTranscript() {
	lines := ledger.Render(m.sess.Ledger().Entries())
	m.transcript.SetContent(ui.RenderTranscript(m.styles, lines))
	if m.scroll.Following() {
		m.transcript.GotoBottom()
	}
}

// execCommand handles a command-line directive.
func (m *Model) execCommand(c Command) tea.Cmd {
	logging.UIDebug("command /%s %q", c.Name, c.Arg)
	switch c.Name {
	case "run":
		return m.run(ledger.EditorSubmission, m.sess.Code().Text())

	case "runsel":
		sel, ok := m.sess.Code().Selection()
		if !ok {
			m.status = "Nothing selected; use /select a-b"
			return nil
		}
		return m.run(ledger.EditorSubmission, sel)

	case "select":
		start, end, err := ParseLineRange(c.Arg)
		if err != nil {
			m.status = err.Error()
			return nil
		}
		if m.sess.Code().SelectLines(start, end) {
			m.status = fmt.Sprintf("Selected lines %d-%d", start, end)
		} else {
			m.status = "Selection is empty"
		}

	case "format":
		res := m.sess.Format(m.ctx)
		if res.IsError() {
			m.status = "Format failed"
		} else {
			m.status = "Formatted"
		}

	case "tree":
		visible, res := m.sess.ToggleTree(m.ctx)
		m.layout()
		switch {
		case !visible:
			m.status = "Tree hidden"
		case res.IsError():
			m.status = "Tree unavailable: " + res.Kind.String()
		default:
			m.status = "Tree shown"
		}

	case "reset":
		m.sess.ResetEngine()
		m.status = "Interpreter reset"

	case "clear":
		m.sess.ClearHistory()
		m.refreshTranscript()
		m.status = "Transcript cleared"

	case "share":
		link, err := m.sess.ShareLink(m.ctx)
		if err != nil {
			m.status = "Share failed: " + err.Error()
			return nil
		}
		m.status = link

	case "open":
		if err := m.sess.LoadShared(m.ctx, c.Arg); err != nil {
			m.status = "Could not open link"
			return nil
		}
		m.status = "Loaded shared buffer"

	case "example":
		if err := m.sess.LoadExample(c.Arg); err != nil {
			m.status = fmt.Sprintf("Examples: %s", strings.Join(examples.Names(), ", "))
			return nil
		}
		m.status = "Loaded " + c.Arg

	case "help":
		m.overlay = ui.RenderMarkdown(m.renderer, fmt.Sprintf(helpText, strings.Join(examples.Names(), ", ")))

	case "quit", "exit":
		m.Shutdown()
		return tea.Quit

	default:
		m.status = fmt.Sprintf("Unknown command /%s (try /help)", c.Name)
	}
	return nil
}
