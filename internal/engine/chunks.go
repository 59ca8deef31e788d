package engine

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
)

// chunk is a run of consecutive top-level declarations or statements.
// The interpreter decides between file scope and statement scope from the
// first token, so a snippet mixing both is evaluated one chunk at a time.
type chunk struct {
	text string
	decl bool
	// quiet chunks end in something whose value is not shown, such as an
	// assignment or a print call.
	quiet bool
}

var declNodes = map[string]bool{
	"function_declaration": true,
	"method_declaration":   true,
	"import_declaration":   true,
	"type_declaration":     true,
	"var_declaration":      true,
	"const_declaration":    true,
}

// Calls that return a byte count nobody asked to see.
var printFuncs = map[string]bool{
	"print":        true,
	"println":      true,
	"fmt.Print":    true,
	"fmt.Printf":   true,
	"fmt.Println":  true,
	"fmt.Fprint":   true,
	"fmt.Fprintf":  true,
	"fmt.Fprintln": true,
}

// split breaks text into chunks. ok is false when text does not parse or is
// a whole file with a package clause; callers then evaluate it unsplit.
func (p *TreeParser) split(ctx context.Context, text string) (chunks []chunk, ok bool) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(p.lang)

	src := []byte(text)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, false
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, false
	}

	var group []*sitter.Node
	groupDecl := false
	flush := func() {
		if len(group) == 0 {
			return
		}
		first, last := group[0], group[len(group)-1]
		c := chunk{text: string(src[first.StartByte():last.EndByte()]), decl: groupDecl}
		if !groupDecl {
			c.quiet = quietStatement(last, src)
		}
		chunks = append(chunks, c)
		group = nil
	}

	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch n.Type() {
		case "comment":
			continue
		case "package_clause":
			return nil, false
		}
		decl := declNodes[n.Type()]
		if len(group) > 0 && decl != groupDecl {
			flush()
		}
		group = append(group, n)
		groupDecl = decl
	}
	flush()
	return chunks, true
}

// quietStatement reports whether a statement yields no displayable value.
func quietStatement(n *sitter.Node, src []byte) bool {
	if n.Type() != "expression_statement" {
		return true
	}
	expr := n.NamedChild(0)
	if expr == nil {
		return true
	}
	switch expr.Type() {
	case "nil":
		return true
	case "call_expression":
		if fn := expr.ChildByFieldName("function"); fn != nil {
			return printFuncs[fn.Content(src)]
		}
	}
	return false
}
