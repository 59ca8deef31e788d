package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindWireNames(t *testing.T) {
	for k := KindEmpty; k <= KindFormattedText; k++ {
		back, ok := ParseKind(k.String())
		assert.True(t, ok, k.String())
		assert.Equal(t, k, back)
	}
	_, ok := ParseKind("NOPE")
	assert.False(t, ok)
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestKindIsError(t *testing.T) {
	errs := map[Kind]bool{
		KindError:             true,
		KindParseError:        true,
		KindEngineUnavailable: true,
		KindParsedTreeError:   true,
	}
	for k := KindEmpty; k <= KindFormattedText; k++ {
		assert.Equal(t, errs[k], k.IsError(), k.String())
	}
}

func TestResultDisplay(t *testing.T) {
	assert.Equal(t, "", Empty().Display())
	assert.Equal(t, "Interpreter not ready", Unavailable().Display())
	assert.Equal(t, "bad 3", Errorf("bad %d", 3).Display())

	tree := &Node{Type: "source_file", Children: []*Node{{Type: "identifier"}, {Type: "int_literal"}}}
	res := Result{Kind: KindParsedTreeJSON, Tree: tree}
	assert.Equal(t, "<tree: source_file, 3 nodes>", res.Display())
}

func TestNodeWalkSkipsChildren(t *testing.T) {
	tree := &Node{Type: "a", Children: []*Node{
		{Type: "b", Children: []*Node{{Type: "c"}}},
		{Type: "d"},
	}}

	var seen []string
	tree.Walk(func(n *Node, depth int) bool {
		seen = append(seen, n.Type)
		return n.Type != "b"
	})
	assert.Equal(t, []string{"a", "b", "d"}, seen)
}
