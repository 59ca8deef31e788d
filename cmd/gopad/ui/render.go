package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"gopad/internal/engine"
	"gopad/internal/ledger"
)

// NewMarkdownRenderer builds a glamour renderer matching the theme.
func NewMarkdownRenderer(theme Theme, width int) *glamour.TermRenderer {
	if width < 20 {
		width = 20
	}
	var r *glamour.TermRenderer
	if theme.IsDark {
		r, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("dark"),
			glamour.WithWordWrap(width),
		)
	} else {
		r, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("light"),
			glamour.WithWordWrap(width),
		)
	}
	return r
}

// RenderMarkdown renders content with panic recovery, falling back to the
// plain text.
func RenderMarkdown(r *glamour.TermRenderer, content string) (result string) {
	defer func() {
		if rec := recover(); rec != nil {
			result = content
		}
	}()
	if r == nil || content == "" {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return out
}

// RenderTranscript styles rendered transcript lines.
func RenderTranscript(s Styles, lines []ledger.Line) string {
	var sb strings.Builder
	for _, l := range lines {
		switch l.Role {
		case ledger.RoleInput:
			sb.WriteString(s.InLabel.Render(l.Label))
			sb.WriteString(" ")
			sb.WriteString(l.Text)
		case ledger.RoleOutput:
			sb.WriteString(s.OutLabel.Render(l.Label))
			if l.Text != "" {
				sb.WriteString(" ")
				sb.WriteString(l.Text)
			}
		case ledger.RoleError:
			if l.Label != "" {
				sb.WriteString(s.OutLabel.Render(l.Label))
				sb.WriteString(" ")
			}
			sb.WriteString(s.Error.Render(l.Text))
		case ledger.RoleStdout:
			sb.WriteString(s.Stdout.Render(l.Text))
		case ledger.RoleNotice:
			sb.WriteString(s.Notice.Render(l.Text))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// TreeLines renders a structure tree as indented lines, at most limit lines
// (zero means no limit).
func TreeLines(root *engine.Node, limit int) []string {
	if root == nil {
		return nil
	}
	var lines []string
	truncated := false
	root.Walk(func(n *engine.Node, depth int) bool {
		if limit > 0 && len(lines) >= limit {
			truncated = true
			return false
		}
		var sb strings.Builder
		sb.WriteString(strings.Repeat("  ", depth))
		if n.Field != "" {
			sb.WriteString(n.Field)
			sb.WriteString(": ")
		}
		sb.WriteString(n.Type)
		fmt.Fprintf(&sb, " [%d:%d-%d:%d]", n.Start.Row, n.Start.Column, n.End.Row, n.End.Column)
		if n.Text != "" && len(n.Children) == 0 {
			fmt.Fprintf(&sb, " %q", n.Text)
		}
		lines = append(lines, sb.String())
		return true
	})
	if truncated {
		lines = append(lines, "…")
	}
	return lines
}

// RenderTree styles a structure tree for the preview pane.
func RenderTree(s Styles, root *engine.Node, limit int) string {
	if root == nil {
		return s.Muted.Render("(no tree)")
	}
	lines := TreeLines(root, limit)
	for i, l := range lines {
		lines[i] = s.TreeType.Render(l)
	}
	return strings.Join(lines, "\n")
}
