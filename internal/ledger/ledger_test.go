package ledger

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopad/internal/engine"
)

func TestLedger_SubmissionThenResult(t *testing.T) {
	l := New()

	order := l.AppendSubmission("1+1", CommandLineSubmission)
	require.Equal(t, 0, order)
	require.NoError(t, l.AppendResult(order, engine.Result{Kind: engine.KindInteger, Text: "2"}))

	order = l.AppendSubmission("x := 1", EditorSubmission)
	require.Equal(t, 1, order)
	require.NoError(t, l.AppendResult(order, engine.Empty()))

	want := []Entry{
		{ID: 0, Kind: CommandLineSubmission, Order: 0, HasOrder: true, Text: "1+1"},
		{ID: 1, Kind: ResultEcho, Order: 0, HasOrder: true, Result: engine.Result{Kind: engine.KindInteger, Text: "2"}},
		{ID: 2, Kind: EditorSubmission, Order: 1, HasOrder: true, Text: "x := 1"},
		{ID: 3, Kind: ResultEcho, Order: 1, HasOrder: true, Result: engine.Empty()},
	}
	if diff := cmp.Diff(want, l.Entries()); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestLedger_ResultErrors(t *testing.T) {
	l := New()

	err := l.AppendResult(7, engine.Empty())
	assert.ErrorIs(t, err, ErrUnknownOrder)

	order := l.AppendSubmission("a", CommandLineSubmission)
	require.NoError(t, l.AppendResult(order, engine.Empty()))
	assert.ErrorIs(t, l.AppendResult(order, engine.Empty()), ErrDuplicateResult)
	assert.Equal(t, 2, l.Len())
}

func TestLedger_ResetKeepsCounters(t *testing.T) {
	l := New()
	l.AppendSubmission("a", CommandLineSubmission)
	l.AppendStdout("out")
	l.Reset()

	assert.Zero(t, l.Len())
	order := l.AppendSubmission("b", CommandLineSubmission)
	assert.Equal(t, 1, order)

	e := l.Entries()
	require.Len(t, e, 1)
	assert.Equal(t, 2, e[0].ID)
}

func TestLedger_StdoutInterleaved(t *testing.T) {
	l := New()
	order := l.AppendSubmission("print", EditorSubmission)
	l.AppendStdout("one")
	l.AppendStdout("two")
	require.NoError(t, l.AppendResult(order, engine.Empty()))

	lines := Render(l.Entries())
	got := make([]string, len(lines))
	for i, ln := range lines {
		got[i] = ln.String()
	}
	assert.Equal(t, []string{"In [0]: <From Editor>", "one", "two", "Out[0]:"}, got)
}

func TestLedger_IndependentInstances(t *testing.T) {
	a, b := New(), New()
	a.AppendSubmission("x", CommandLineSubmission)
	a.AppendSubmission("y", CommandLineSubmission)
	assert.Equal(t, 0, b.AppendSubmission("z", CommandLineSubmission))
}

func TestLedger_Listen(t *testing.T) {
	l := New()
	var seen []EntryKind
	cancel := l.Listen(func(e Entry) { seen = append(seen, e.Kind) })

	o := l.AppendSubmission("a", CommandLineSubmission)
	l.AppendStdout("s")
	require.NoError(t, l.AppendResult(o, engine.Empty()))
	cancel()
	l.AppendStdout("after")

	assert.Equal(t, []EntryKind{CommandLineSubmission, StdOutLine, ResultEcho}, seen)
}

// Every result pairs with exactly one earlier submission, for random
// interleavings of editor and command-line runs.
func TestLedger_PairingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	l := New()

	var pending []int
	for i := 0; i < 500; i++ {
		switch rng.Intn(4) {
		case 0:
			pending = append(pending, l.AppendSubmission("e", EditorSubmission))
		case 1:
			pending = append(pending, l.AppendSubmission("c", CommandLineSubmission))
		case 2:
			l.AppendStdout("s")
		case 3:
			if len(pending) > 0 {
				j := rng.Intn(len(pending))
				require.NoError(t, l.AppendResult(pending[j], engine.Empty()))
				pending = append(pending[:j], pending[j+1:]...)
			}
		}
	}

	entries := l.Entries()
	submittedAt := map[int]int{}
	resultCount := map[int]int{}
	for pos, e := range entries {
		switch {
		case e.Kind.IsSubmission():
			_, dup := submittedAt[e.Order]
			require.False(t, dup, "order %d submitted twice", e.Order)
			submittedAt[e.Order] = pos
		case e.Kind == ResultEcho:
			subPos, ok := submittedAt[e.Order]
			require.True(t, ok, "result %d without earlier submission", e.Order)
			require.Less(t, subPos, pos)
			resultCount[e.Order]++
		}
	}
	for order, n := range resultCount {
		assert.Equal(t, 1, n, "order %d", order)
	}
}

func TestLedger_ConcurrentAppends(t *testing.T) {
	l := New()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o := l.AppendSubmission("x", CommandLineSubmission)
			l.AppendStdout("y")
			_ = l.AppendResult(o, engine.Empty())
		}()
	}
	wg.Wait()

	assert.Equal(t, 48, l.Len())
	assert.Equal(t, 16, l.NextOrder())
	for i, e := range l.Entries() {
		assert.Equal(t, i, e.ID)
	}
}

func TestLedger_ListenersSeeIDOrder(t *testing.T) {
	l := New()
	var seen []int
	l.Listen(func(e Entry) { seen = append(seen, e.ID) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				l.AppendStdout("out")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				l.AppendNotice(engine.Errorf("format failed"))
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, 320)
	for i, id := range seen {
		assert.Equal(t, i, id)
	}
}

func TestLedger_Lookup(t *testing.T) {
	l := New()
	o := l.AppendSubmission("1+1", CommandLineSubmission)
	_, ok := l.ResultFor(o)
	assert.False(t, ok)

	require.NoError(t, l.AppendResult(o, engine.Result{Kind: engine.KindInteger, Text: "2"}))
	sub, ok := l.SubmissionFor(o)
	require.True(t, ok)
	assert.Equal(t, "1+1", sub.Text)
	res, ok := l.ResultFor(o)
	require.True(t, ok)
	assert.Equal(t, "2", res.Result.Text)
}

func TestEntryKindNames(t *testing.T) {
	for k := EditorSubmission; k <= StdOutLine; k++ {
		back, ok := ParseEntryKind(k.String())
		require.True(t, ok)
		assert.Equal(t, k, back)
	}
}
