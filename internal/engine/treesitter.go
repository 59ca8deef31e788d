package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"gopad/internal/logging"
)

// TreeParser builds structure trees for Go source with tree-sitter.
// The grammar accepts top-level statements, so REPL snippets parse as-is.
type TreeParser struct {
	lang *sitter.Language
}

// NewTreeParser creates a parser for Go.
func NewTreeParser() *TreeParser {
	return &TreeParser{lang: golang.GetLanguage()}
}

// Parse returns the named-node tree for text. Syntax errors are reported
// with the position of the first error node.
func (p *TreeParser) Parse(ctx context.Context, text string) (*Node, error) {
	start := time.Now()

	// sitter.Parser is not safe for concurrent use; parse calls are cheap
	// enough to allocate one each time.
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.lang)

	src := []byte(text)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if bad := firstError(root); bad != nil {
			pos := bad.StartPoint()
			if bad.IsMissing() {
				return nil, &SyntaxError{Row: pos.Row, Column: pos.Column, Msg: "missing " + bad.Type()}
			}
			return nil, &SyntaxError{Row: pos.Row, Column: pos.Column, Msg: "unexpected input"}
		}
		return nil, &SyntaxError{Msg: "syntax error"}
	}

	node := convert(root, "", src)
	logging.EngineDebug("tree-sitter: parsed %d bytes into %d nodes in %v", len(src), node.Count(), time.Since(start))
	return node, nil
}

// ParseJSON parses text and returns the tree in its JSON wire form.
func (p *TreeParser) ParseJSON(ctx context.Context, text string) Result {
	node, err := p.Parse(ctx, text)
	if err != nil {
		return Result{Kind: KindParseError, Text: err.Error()}
	}
	data, err := json.Marshal(node)
	if err != nil {
		return Result{Kind: KindParsedTreeError, Text: err.Error()}
	}
	return Result{Kind: KindParsedTreeJSON, Text: string(data)}
}

// SyntaxError locates a parse failure. Row and Column are zero-based.
type SyntaxError struct {
	Row    uint32
	Column uint32
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Row+1, e.Column+1, e.Msg)
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !(c.HasError() || c.IsMissing()) {
			continue
		}
		if bad := firstError(c); bad != nil {
			return bad
		}
	}
	return nil
}

// convert keeps named nodes only. Leaves carry their source text.
func convert(n *sitter.Node, field string, src []byte) *Node {
	sp, ep := n.StartPoint(), n.EndPoint()
	out := &Node{
		Type:  n.Type(),
		Field: field,
		Start: Point{Row: sp.Row, Column: sp.Column},
		End:   Point{Row: ep.Row, Column: ep.Column},
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || !c.IsNamed() {
			continue
		}
		out.Children = append(out.Children, convert(c, n.FieldNameForChild(i), src))
	}
	if len(out.Children) == 0 {
		out.Text = n.Content(src)
	}
	return out
}
