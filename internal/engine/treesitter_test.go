package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTreeParser_TopLevelStatement(t *testing.T) {
	p := NewTreeParser()

	root, err := p.Parse(context.Background(), "x := 1\n")
	require.NoError(t, err)
	assert.Equal(t, "source_file", root.Type)

	var types []string
	root.Walk(func(n *Node, depth int) bool {
		types = append(types, n.Type)
		return true
	})
	assert.Contains(t, types, "short_var_declaration")
	assert.Contains(t, types, "identifier")
}

func TestTreeParser_SyntaxError(t *testing.T) {
	p := NewTreeParser()

	_, err := p.Parse(context.Background(), "func (\n")
	require.Error(t, err)
	var se *SyntaxError
	assert.ErrorAs(t, err, &se)
}

func TestTreeParser_JSONWireForm(t *testing.T) {
	p := NewTreeParser()

	res := p.ParseJSON(context.Background(), "func add(a, b int) int { return a + b }\n")
	require.Equal(t, KindParsedTreeJSON, res.Kind)

	var root Node
	require.NoError(t, json.Unmarshal([]byte(res.Text), &root))
	require.NotEmpty(t, root.Children)
	fn := root.Children[0]
	assert.Equal(t, "function_declaration", fn.Type)

	var name *Node
	for _, c := range fn.Children {
		if c.Field == "name" {
			name = c
		}
	}
	require.NotNil(t, name)
	assert.Equal(t, "add", name.Text)
}

func TestTreeParser_BadInputIsParseError(t *testing.T) {
	res := NewTreeParser().ParseJSON(context.Background(), "x := (")
	assert.Equal(t, KindParseError, res.Kind)
}
