package examples

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopad/internal/engine"
)

func TestLookup(t *testing.T) {
	assert.Equal(t, []string{"Fibonacci", "Tower of Hanoi", "Factorial", "Slices"}, Names())

	code, ok := Get("  tower of hanoi ")
	require.True(t, ok)
	assert.Contains(t, code, "hanoi(")

	_, ok = Get("Quicksort")
	assert.False(t, ok)

	assert.Equal(t, fibonacci, Default())
}

func TestSamplesAreValidGo(t *testing.T) {
	parser := engine.NewTreeParser()
	for _, e := range All() {
		t.Run(e.Name, func(t *testing.T) {
			_, err := parser.Parse(context.Background(), e.Code)
			assert.NoError(t, err)
		})
	}
}

func TestSamplesRun(t *testing.T) {
	cases := []struct {
		name   string
		want   engine.Result
		stdout []string
	}{
		{name: "Fibonacci", want: engine.Result{Kind: engine.KindInteger, Text: "55"}},
		{name: "Factorial", want: engine.Result{Kind: engine.KindInteger, Text: "120"}},
		{
			name: "Tower of Hanoi",
			want: engine.Empty(),
			stdout: []string{
				"A -> C", "A -> B", "C -> B", "A -> C", "B -> A", "B -> C", "A -> C",
			},
		},
		{
			name: "Slices",
			want: engine.Result{Kind: engine.KindSequence, Text: "[5 4 3 2 1]"},
			stdout: []string{
				"arr == [1 2 3 4 5]",
				"arr[0] == 1",
				"arr[1:] == [2 3 4 5]",
				"arr[:len(arr)-1] == [1 2 3 4]",
				"append(arr, 6) == [1 2 3 4 5 6]",
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			eng, err := engine.NewYaegiEngine(engine.YaegiOptions{})
			require.NoError(t, err)

			code, ok := Get(tc.name)
			require.True(t, ok)
			var out strings.Builder
			res := eng.Execute(context.Background(), code, &out)
			assert.Equal(t, tc.want, res, res.Text)

			var lines []string
			if s := strings.TrimSpace(out.String()); s != "" {
				lines = strings.Split(s, "\n")
			}
			assert.Equal(t, tc.stdout, lines)
		})
	}
}
