package ledger

import (
	"fmt"
	"strings"

	"gopad/internal/engine"
)

// EditorPlaceholder stands in for editor submissions so the buffer is not
// echoed into the transcript.
const EditorPlaceholder = "<From Editor>"

// LineRole tells a renderer how to style a transcript line.
type LineRole int

const (
	RoleInput LineRole = iota
	RoleOutput
	RoleError
	RoleStdout
	RoleNotice
)

// Line is one rendered transcript row.
type Line struct {
	EntryID int
	Role    LineRole
	Label   string
	Text    string
}

func (l Line) String() string {
	if l.Label == "" {
		return l.Text
	}
	if l.Text == "" {
		return l.Label
	}
	return l.Label + " " + l.Text
}

// InLabel and OutLabel produce the labels for order n.
func InLabel(order int) string  { return fmt.Sprintf("In [%d]:", order) }
func OutLabel(order int) string { return fmt.Sprintf("Out[%d]:", order) }

// Render turns entries into transcript lines in id order. Stdout lines and
// notices appear at their own position regardless of order numbers.
func Render(entries []Entry) []Line {
	lines := make([]Line, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case EditorSubmission:
			lines = append(lines, Line{EntryID: e.ID, Role: RoleInput, Label: InLabel(e.Order), Text: EditorPlaceholder})
		case CommandLineSubmission:
			lines = append(lines, Line{EntryID: e.ID, Role: RoleInput, Label: InLabel(e.Order), Text: e.Text})
		case ResultEcho:
			lines = append(lines, resultLine(e))
		case StdOutLine:
			lines = append(lines, Line{EntryID: e.ID, Role: RoleStdout, Text: e.Text})
		}
	}
	return lines
}

func resultLine(e Entry) Line {
	role := RoleOutput
	if e.Result.IsError() {
		role = RoleError
	}
	if !e.HasOrder {
		if role == RoleOutput {
			role = RoleNotice
		}
		return Line{EntryID: e.ID, Role: role, Text: e.Result.Display()}
	}
	return Line{EntryID: e.ID, Role: role, Label: OutLabel(e.Order), Text: e.Result.Display()}
}

// RenderText renders entries as plain text, one line per row.
func RenderText(entries []Entry) string {
	var sb strings.Builder
	for _, l := range Render(entries) {
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Pair is a submission and, once it arrived, its result.
type Pair struct {
	Order      int
	Submission Entry
	Result     *Entry
}

// Answered reports whether the pair has a result.
func (p Pair) Answered() bool { return p.Result != nil }

// Pairs reconstructs submission/result pairing by order, in submission
// order. Results whose submission is not in entries are skipped.
func Pairs(entries []Entry) []Pair {
	var pairs []Pair
	index := make(map[int]int)
	for _, e := range entries {
		if !e.HasOrder {
			continue
		}
		if e.Kind.IsSubmission() {
			index[e.Order] = len(pairs)
			pairs = append(pairs, Pair{Order: e.Order, Submission: e})
			continue
		}
		if i, ok := index[e.Order]; ok && pairs[i].Result == nil {
			r := e
			pairs[i].Result = &r
		}
	}
	return pairs
}

// LastResult returns the most recent ordered result, if any.
func LastResult(entries []Entry) (engine.Result, bool) {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Kind == ResultEcho && entries[i].HasOrder {
			return entries[i].Result, true
		}
	}
	return engine.Result{}, false
}
