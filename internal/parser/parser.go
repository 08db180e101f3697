// Package parser wraps tree-sitter for lossless Python parsing.
//
// tree-sitter produces a concrete syntax tree whose nodes carry byte spans
// over the unmodified source, which is what lets the rewriter edit imports
// while leaving every untouched byte exactly as it was.
package parser

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Parser wraps a tree-sitter parser configured for Python.
type Parser struct {
	parser *sitter.Parser
}

// NewParser creates a new Python parser.
func NewParser() *Parser {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())
	return &Parser{parser: p}
}

// Parse parses Python source and returns the module root node.
func (p *Parser) Parse(ctx context.Context, source []byte) (*sitter.Node, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}

	return tree.RootNode(), nil
}

// ParseFragment parses an expression fragment, such as the content of a
// quoted type annotation, and returns its root node. A fresh parser is used
// because fragments are parsed while a traversal of the enclosing tree is
// still in flight.
func ParseFragment(ctx context.Context, fragment []byte) (*sitter.Node, error) {
	p := sitter.NewParser()
	p.SetLanguage(python.GetLanguage())

	tree, err := p.ParseCtx(ctx, nil, fragment)
	if err != nil {
		return nil, fmt.Errorf("fragment parse error: %w", err)
	}

	root := tree.RootNode()
	if root.HasError() {
		return nil, fmt.Errorf("fragment is not a valid expression")
	}

	return root, nil
}

// Visit walks node and all descendants in pre-order.
func Visit(node *sitter.Node, fn func(n *sitter.Node) bool) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		Visit(node.NamedChild(i), fn)
	}
}

// VisitAll walks node and all descendants in pre-order, including anonymous
// nodes such as punctuation and keywords.
func VisitAll(node *sitter.Node, fn func(n *sitter.Node) bool) {
	if node == nil {
		return
	}
	if !fn(node) {
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		VisitAll(node.Child(i), fn)
	}
}
