package repl

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"gopad/cmd/gopad/ui"
	"gopad/internal/ledger"
	"gopad/internal/logging"
)

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.ready = true
		m.refreshTranscript()
		return m, nil

	case engineReadyMsg:
		if msg.err != nil {
			m.engineState = "unavailable"
			m.status = "Interpreter failed to load"
			logging.Get(logging.CategoryUI).Warn("engine not ready: %v", msg.err)
		} else {
			m.engineState = "ready"
		}
		return m, nil

	case runDoneMsg:
		m.running = false
		if msg.res.IsError() {
			m.status = "Run failed: " + msg.res.Kind.String()
		} else {
			m.status = ""
		}
		m.refreshTranscript()
		return m, nil

	case ledgerMsg:
		m.refreshTranscript()
		return m, nil

	case bufferMsg:
		if n := m.echoes[msg.text]; n > 0 {
			// Our own keystroke coming back; a newer value may already be typed.
			if n == 1 {
				delete(m.echoes, msg.text)
			} else {
				m.echoes[msg.text] = n - 1
			}
			return m, nil
		}
		if msg.text != m.editor.Value() {
			m.editor.SetValue(msg.text)
		}
		return m, nil

	case dispatchMsg:
		if msg.fn != nil {
			msg.fn()
		}
		return m, nil

	case statusMsg:
		m.status = string(msg)
		return m, nil

	case tea.KeyMsg:
		if m.overlay != "" {
			if msg.String() == "ctrl+c" {
				m.Shutdown()
				return m, tea.Quit
			}
			m.overlay = ""
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c":
			m.Shutdown()
			return m, tea.Quit

		case "tab":
			m.toggleFocus()
			return m, nil

		case "ctrl+r":
			return m, m.run(ledger.EditorSubmission, m.sess.Code().Text())

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			m.observeScroll()
			return m, cmd

		case "enter":
			if m.focus == focusCommand {
				return m, m.submitLine()
			}
		}
	}

	switch m.focus {
	case focusEditor:
		before := m.editor.Value()
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		cmds = append(cmds, cmd)
		if after := m.editor.Value(); after != before {
			if m.dispatcher.Bound() {
				m.echoes[after]++
			}
			m.sess.Edit(after)
		}
	case focusCommand:
		var cmd tea.Cmd
		m.cmdline, cmd = m.cmdline.Update(msg)
		cmds = append(cmds, cmd)
	}

	if _, ok := msg.(tea.MouseMsg); ok {
		var cmd tea.Cmd
		m.transcript, cmd = m.transcript.Update(msg)
		m.observeScroll()
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) submitLine() tea.Cmd {
	line := m.cmdline.Value()
	if strings.TrimSpace(line) == "" {
		return nil
	}
	m.cmdline.Reset()
	if c, ok := ParseCommand(line); ok {
		return m.execCommand(c)
	}
	return m.run(ledger.CommandLineSubmission, line)
}

func (m *Model) toggleFocus() {
	if m.focus == focusEditor {
		m.focus = focusCommand
		m.editor.Blur()
		m.cmdline.Focus()
		return
	}
	m.focus = focusEditor
	m.cmdline.Blur()
	m.editor.Focus()
}

func (m *Model) observeScroll() {
	m.scroll.Observe(m.transcript.YOffset, m.transcript.Height, m.transcript.TotalLineCount())
}

// layout sizes the panes: editor on the left, transcript on the right,
// command line across the bottom.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	bodyHeight := m.height - 6 // header, footer, command line, borders
	if bodyHeight < 3 {
		bodyHeight = 3
	}
	half := m.width / 2
	m.editor.SetWidth(max(half-4, 10))
	m.editor.SetHeight(bodyHeight)
	m.transcript.Width = max(m.width-half-4, 10)
	m.transcript.Height = bodyHeight
	m.treeHeight = 0
	if m.sess.PreviewVisible() {
		m.treeHeight = bodyHeight / 2
		m.transcript.Height = max(bodyHeight-m.treeHeight-2, 3)
	}
	m.cmdline.Width = max(m.width-6, 10)
	m.renderer = ui.NewMarkdownRenderer(m.styles.Theme, m.width-8)
}
