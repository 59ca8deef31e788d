// Package engine defines the execution result model and the bridge to the
// external interpreter. The interpreter is reached only through the Engine
// interface; Bridge adds readiness gating, stdout capture and tree decoding.
package engine

import (
	"fmt"
	"strings"
)

// Kind tags an execution result. Exactly one kind per result; the kind
// decides whether Text is displayable text, a JSON tree, or nothing.
type Kind int

const (
	KindEmpty Kind = iota
	KindError
	KindParseError
	KindEngineUnavailable
	KindBoolean
	KindInteger
	KindFloat
	KindText
	KindSequence
	KindMapping
	KindCallable
	KindStdOutLine
	KindParsedTreeJSON
	KindParsedTreeError
	KindFormattedText
)

// Wire names, shared with transcripts stored by earlier versions.
var kindNames = [...]string{
	KindEmpty:             "EMPTY",
	KindError:             "ERROR",
	KindParseError:        "PARSER_ERROR",
	KindEngineUnavailable: "WASM_ERROR",
	KindBoolean:           "BOOLEAN",
	KindInteger:           "INTEGER",
	KindFloat:             "FLOAT",
	KindText:              "STRING",
	KindSequence:          "ARRAY",
	KindMapping:           "HASH",
	KindCallable:          "FUNCTION",
	KindStdOutLine:        "STDOUT",
	KindParsedTreeJSON:    "JSON_AST",
	KindParsedTreeError:   "JSON_ERROR",
	KindFormattedText:     "FORMATTED",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// ParseKind maps a wire name back to its Kind.
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return Kind(k), true
		}
	}
	return KindEmpty, false
}

// IsError reports whether the kind is one of the failure variants.
func (k Kind) IsError() bool {
	switch k {
	case KindError, KindParseError, KindEngineUnavailable, KindParsedTreeError:
		return true
	}
	return false
}

// Result is the tagged union returned by every bridge call.
type Result struct {
	Kind Kind
	Text string

	// Tree is set only for KindParsedTreeJSON, after the wire form was decoded.
	Tree *Node
}

// Empty is the result of a statement that produces no value.
func Empty() Result { return Result{Kind: KindEmpty} }

// Errorf builds a KindError result.
func Errorf(format string, args ...interface{}) Result {
	return Result{Kind: KindError, Text: fmt.Sprintf(format, args...)}
}

// Unavailable is synthesized locally when the engine has not reached Ready.
func Unavailable() Result {
	return Result{Kind: KindEngineUnavailable, Text: "Interpreter not ready"}
}

// IsError reports whether the result is a failure variant.
func (r Result) IsError() bool { return r.Kind.IsError() }

// Display returns the text a transcript should show for the result.
func (r Result) Display() string {
	switch r.Kind {
	case KindEmpty:
		return ""
	case KindParsedTreeJSON:
		if r.Tree != nil {
			return fmt.Sprintf("<tree: %s, %d nodes>", r.Tree.Type, r.Tree.Count())
		}
		return "<tree>"
	default:
		return r.Text
	}
}

func (r Result) String() string {
	return fmt.Sprintf("%s(%q)", r.Kind, r.Display())
}

// Point is a zero-based row/column position in the source.
type Point struct {
	Row    uint32 `json:"row"`
	Column uint32 `json:"column"`
}

// Node is one node of a parsed structure tree. This is also the JSON wire
// form engines return from Parse.
type Node struct {
	Type     string  `json:"type"`
	Field    string  `json:"field,omitempty"`
	Start    Point   `json:"start"`
	End      Point   `json:"end"`
	Text     string  `json:"text,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Walk visits n and its descendants depth first. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if n == nil || !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Count returns the number of nodes in the tree rooted at n.
func (n *Node) Count() int {
	count := 0
	n.Walk(func(*Node, int) bool {
		count++
		return true
	})
	return count
}
