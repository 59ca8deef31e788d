package ledger

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopad/internal/engine"
)

func TestRender_Roles(t *testing.T) {
	l := New()
	o := l.AppendSubmission("nope(", CommandLineSubmission)
	require.NoError(t, l.AppendResult(o, engine.Result{Kind: engine.KindParseError, Text: "1:6: expected ')'"}))
	l.AppendNotice(engine.Result{Kind: engine.KindParseError, Text: "cannot format"})

	want := []Line{
		{EntryID: 0, Role: RoleInput, Label: "In [0]:", Text: "nope("},
		{EntryID: 1, Role: RoleError, Label: "Out[0]:", Text: "1:6: expected ')'"},
		{EntryID: 2, Role: RoleError, Text: "cannot format"},
	}
	if diff := cmp.Diff(want, Render(l.Entries())); diff != "" {
		t.Errorf("render mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderText(t *testing.T) {
	l := New()
	o := l.AppendSubmission("1+1", CommandLineSubmission)
	require.NoError(t, l.AppendResult(o, engine.Result{Kind: engine.KindInteger, Text: "2"}))

	assert.Equal(t, "In [0]: 1+1\nOut[0]: 2\n", RenderText(l.Entries()))
}

func TestPairs(t *testing.T) {
	l := New()
	a := l.AppendSubmission("a", EditorSubmission)
	b := l.AppendSubmission("b", CommandLineSubmission)
	l.AppendStdout("noise")
	require.NoError(t, l.AppendResult(b, engine.Empty()))

	pairs := Pairs(l.Entries())
	require.Len(t, pairs, 2)
	assert.Equal(t, a, pairs[0].Order)
	assert.False(t, pairs[0].Answered())
	assert.Equal(t, b, pairs[1].Order)
	require.True(t, pairs[1].Answered())
	assert.Equal(t, 3, pairs[1].Result.ID)

	last, ok := LastResult(l.Entries())
	require.True(t, ok)
	assert.Equal(t, engine.KindEmpty, last.Kind)
}

func TestAutoScroll(t *testing.T) {
	a := NewAutoScroll(DefaultScrollThreshold)
	assert.True(t, a.Following())

	// 100 rows, 20 visible, scrolled to the top.
	a.Observe(0, 20, 100)
	assert.False(t, a.Following())

	// Within one row of the bottom.
	a.Observe(79, 20, 100)
	assert.True(t, a.Following())

	a.Observe(50, 20, 100)
	a.Resume()
	assert.True(t, a.Following())
}
