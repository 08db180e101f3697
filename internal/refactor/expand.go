package refactor

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	pyerrors "pyclean/internal/errors"
	"pyclean/internal/parser"
	"pyclean/internal/pypath"
	"pyclean/internal/pyscan"
)

// Importables computes the public names a star import of module would bind:
// the module's own resolvable export list when it declares one, otherwise
// every public top-level name.
func Importables(ctx context.Context, resolver *pypath.Resolver, sourcePath, module string, level int) ([]string, error) {
	res := resolver.ResolveFrom(sourcePath, module, level)
	if res.Path == "" || res.Binary {
		return nil, pyerrors.New(pyerrors.UnexpandableStar,
			fmt.Sprintf("cannot expand `from %s import *`: module source is not inspectable", displayModule(module, level)), nil)
	}

	source, err := os.ReadFile(res.Path)
	if err != nil {
		return nil, pyerrors.New(pyerrors.UnexpandableStar,
			fmt.Sprintf("cannot expand `from %s import *`: %v", displayModule(module, level), err), err)
	}

	root, err := parser.NewParser().Parse(ctx, source)
	if err != nil || root.HasError() {
		return nil, pyerrors.New(pyerrors.UnexpandableStar,
			fmt.Sprintf("cannot expand `from %s import *`: module source does not parse", displayModule(module, level)), err)
	}

	exports := pyscan.CollectExports(root, source)
	if exports.Declared() && exports.Resolvable() {
		return sortedNames(exports.Resolve()), nil
	}

	return topLevelPublicNames(root, source), nil
}

func displayModule(module string, level int) string {
	return strings.Repeat(".", level) + module
}

func sortedNames(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// topLevelPublicNames gathers every public name the module's top level
// binds: definitions, assignment targets, and imported names. Nested star
// imports are not chased.
func topLevelPublicNames(root *sitter.Node, source []byte) []string {
	set := make(map[string]struct{})

	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case parser.TypeFunctionDef, parser.TypeClassDef:
			addPublic(set, parser.Text(child.ChildByFieldName("name"), source))
		case parser.TypeDecoratedDef:
			if def := child.ChildByFieldName("definition"); def != nil {
				addPublic(set, parser.Text(def.ChildByFieldName("name"), source))
			}
		case parser.TypeExpressionStatement:
			collectAssignedNames(set, child, source)
		case parser.TypeImport, parser.TypeImportFrom:
			collectImportedNames(set, child, source)
		case parser.TypeTry:
			// Guarded fallback imports still bind at the top level.
			parser.Visit(child, func(n *sitter.Node) bool {
				switch n.Type() {
				case parser.TypeImport, parser.TypeImportFrom:
					collectImportedNames(set, n, source)
					return false
				case parser.TypeFunctionDef, parser.TypeClassDef:
					return false
				}
				return true
			})
		}
	}

	return sortedNames(set)
}

func addPublic(set map[string]struct{}, name string) {
	if name != "" && !strings.HasPrefix(name, "_") {
		set[name] = struct{}{}
	}
}

func collectAssignedNames(set map[string]struct{}, stmt *sitter.Node, source []byte) {
	for i := 0; i < int(stmt.NamedChildCount()); i++ {
		assign := stmt.NamedChild(i)
		if assign.Type() != parser.TypeAssignment {
			continue
		}
		collectTargetNames(set, assign.ChildByFieldName("left"), source)
	}
}

func collectTargetNames(set map[string]struct{}, target *sitter.Node, source []byte) {
	if target == nil {
		return
	}
	switch target.Type() {
	case parser.TypeIdentifier:
		addPublic(set, parser.Text(target, source))
	case parser.TypeTuple, parser.TypeList, "pattern_list":
		for i := 0; i < int(target.NamedChildCount()); i++ {
			collectTargetNames(set, target.NamedChild(i), source)
		}
	}
}

func collectImportedNames(set map[string]struct{}, n *sitter.Node, source []byte) {
	moduleNode := n.ChildByFieldName("module_name")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if moduleNode != nil && child.StartByte() == moduleNode.StartByte() && child.EndByte() == moduleNode.EndByte() {
			continue
		}
		switch child.Type() {
		case parser.TypeDottedName:
			name := parser.Text(child, source)
			if n.Type() == parser.TypeImport {
				if i := strings.IndexByte(name, '.'); i >= 0 {
					name = name[:i]
				}
			}
			addPublic(set, name)
		case parser.TypeIdentifier:
			addPublic(set, parser.Text(child, source))
		case parser.TypeAliasedImport:
			addPublic(set, parser.Text(child.ChildByFieldName("alias"), source))
		}
	}
}
