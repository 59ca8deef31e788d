package repl

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"gopad/cmd/gopad/ui"
)

// View renders the screen.
func (m *Model) View() string {
	if !m.ready {
		return "Initializing…"
	}
	if m.overlay != "" {
		return m.overlay + "\n" + m.styles.Muted.Render("press any key to close")
	}

	editorPane := m.styles.Pane
	cmdPane := m.styles.Pane
	if m.focus == focusEditor {
		editorPane = m.styles.Focused
	} else {
		cmdPane = m.styles.Focused
	}

	right := m.styles.Pane.Render(m.transcript.View())
	if m.treeHeight > 0 {
		tree := ui.RenderTree(m.styles, m.sess.Tree(), m.treeHeight)
		right = lipgloss.JoinVertical(lipgloss.Left,
			right,
			m.styles.Pane.Width(m.transcript.Width).Height(m.treeHeight).Render(tree),
		)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		editorPane.Render(m.editor.View()),
		right,
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		body,
		cmdPane.Render(m.cmdline.View()),
		m.footer(),
	)
}

func (m *Model) header() string {
	state := m.styles.Warning.Render(m.engineState)
	if m.engineState == "ready" {
		state = m.styles.Success.Render(m.engineState)
	}
	title := m.styles.Header.Render("gopad")
	return lipgloss.JoinHorizontal(lipgloss.Center, title, " ", state)
}

func (m *Model) footer() string {
	if m.status != "" {
		return m.styles.Footer.Render(m.status)
	}
	hint := "ctrl+r run • tab focus • /help"
	if m.running {
		hint = "running…"
	}
	return m.styles.Footer.Render(fmt.Sprintf("%s • next In [%d]", hint, m.sess.Ledger().NextOrder()))
}
