// Package sideeffects judges whether importing a module does more than bind
// a name. The judgment is static and conservative: only a module whose top
// level is provably inert gets a NO.
package sideeffects

import (
	"context"
	"os"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"pyclean/internal/parser"
	"pyclean/internal/pypath"
)

// Verdict is the side-effect classification of one module. The order
// matters: a module inherits the worst verdict of anything it imports.
type Verdict int

const (
	// No means the module's top level only binds names.
	No Verdict = iota
	// Maybe means the top level runs statements whose effects are unknown.
	Maybe
	// Yes means importing the module observably does something.
	Yes
)

func (v Verdict) String() string {
	switch v {
	case No:
		return "no"
	case Maybe:
		return "maybe"
	default:
		return "yes"
	}
}

// BlocksRemoval reports whether the verdict forbids dropping an unused
// import under default policy.
func (v Verdict) BlocksRemoval() bool {
	return v != No
}

// Cache memoizes verdicts per resolved module path for the whole run. It is
// shared across files and passed by reference into each file task. The
// in-progress set doubles as the cycle guard: re-entering a path that is
// still being classified yields Maybe instead of recursing forever.
type Cache struct {
	mu         sync.Mutex
	verdicts   map[string]Verdict
	inProgress map[string]struct{}
}

// NewCache creates an empty verdict cache.
func NewCache() *Cache {
	return &Cache{
		verdicts:   make(map[string]Verdict),
		inProgress: make(map[string]struct{}),
	}
}

func (c *Cache) lookup(path string) (Verdict, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.verdicts[path]
	return v, ok
}

func (c *Cache) store(path string, v Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdicts[path] = v
}

// begin marks path as being classified. It returns false when the path is
// already in flight, which means classification has cycled.
func (c *Cache) begin(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inProgress[path]; busy {
		return false
	}
	c.inProgress[path] = struct{}{}
	return true
}

func (c *Cache) end(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inProgress, path)
}

// Classifier resolves module references and classifies their side effects.
type Classifier struct {
	cache    *Cache
	resolver *pypath.Resolver
}

// NewClassifier creates a classifier over the shared cache and resolver.
func NewClassifier(cache *Cache, resolver *pypath.Resolver) *Classifier {
	return &Classifier{cache: cache, resolver: resolver}
}

// ClassifyImport judges `import module` as written in sourcePath.
func (c *Classifier) ClassifyImport(ctx context.Context, sourcePath, module string) Verdict {
	return c.classify(ctx, c.resolver.ResolveImport(sourcePath, module), module)
}

// ClassifyFrom judges `from module import ...` with the given relative
// level.
func (c *Classifier) ClassifyFrom(ctx context.Context, sourcePath, module string, level int) Verdict {
	return c.classify(ctx, c.resolver.ResolveFrom(sourcePath, module, level), module)
}

// ClassifyFromMember judges one name of a `from module import member`
// statement. When the member is itself a submodule its own source decides;
// otherwise importing it means executing the parent module.
func (c *Classifier) ClassifyFromMember(ctx context.Context, sourcePath, module, member string, level int) Verdict {
	full := member
	if module != "" {
		full = module + "." + member
	}
	if res := c.resolver.ResolveFrom(sourcePath, full, level); res.Kind != pypath.KindUnknown {
		return c.classify(ctx, res, full)
	}
	return c.ClassifyFrom(ctx, sourcePath, module, level)
}

func (c *Classifier) classify(ctx context.Context, res pypath.Resolution, module string) Verdict {
	switch {
	case res.Kind == pypath.KindStdlib:
		root := pypath.RootModule(module)
		if _, deny := pypath.SideEffectModules[root]; deny {
			return Yes
		}
		return No
	case res.Kind == pypath.KindUnknown, res.Binary, res.Path == "":
		// Nothing inspectable; assume the worst.
		return Yes
	}

	return c.classifyPath(ctx, res.Path)
}

func (c *Classifier) classifyPath(ctx context.Context, path string) Verdict {
	if v, ok := c.cache.lookup(path); ok {
		return v
	}
	if !c.cache.begin(path) {
		return Maybe
	}
	defer c.cache.end(path)

	v := c.inspectFile(ctx, path)
	c.cache.store(path, v)
	return v
}

// inspectFile parses path and walks its top level. Unreadable modules are
// treated like unresolvable ones; unparsable ones can at least be presumed
// to exist, so they degrade to Maybe.
func (c *Classifier) inspectFile(ctx context.Context, path string) Verdict {
	source, err := os.ReadFile(path)
	if err != nil {
		return Yes
	}

	root, err := parser.NewParser().Parse(ctx, source)
	if err != nil || root.HasError() {
		return Maybe
	}

	return c.inspectTopLevel(ctx, path, root, source)
}

// inspectTopLevel applies the policy: a top level made only of definitions,
// imports, docstrings and __future__ declarations is inert; imported
// modules contribute their own verdicts; any other statement is Maybe.
func (c *Classifier) inspectTopLevel(ctx context.Context, path string, root *sitter.Node, source []byte) Verdict {
	verdict := No
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case parser.TypeComment, parser.TypeFutureImport:
		case parser.TypeFunctionDef, parser.TypeClassDef, parser.TypeDecoratedDef:
		case parser.TypeExpressionStatement:
			if !isDocstring(child) {
				verdict = max(verdict, Maybe)
			}
		case parser.TypeImport, parser.TypeImportFrom:
			verdict = max(verdict, c.classifyNestedImports(ctx, path, child, source))
		default:
			verdict = max(verdict, Maybe)
		}
		if verdict == Yes {
			return Yes
		}
	}
	return verdict
}

// classifyNestedImports judges one import statement found at the top level
// of an inspected module, recursing through the resolver.
func (c *Classifier) classifyNestedImports(ctx context.Context, path string, n *sitter.Node, source []byte) Verdict {
	verdict := No

	switch n.Type() {
	case parser.TypeImport:
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			var module string
			switch child.Type() {
			case parser.TypeDottedName:
				module = parser.Text(child, source)
			case parser.TypeAliasedImport:
				module = parser.Text(child.ChildByFieldName("name"), source)
			default:
				continue
			}
			verdict = max(verdict, c.ClassifyImport(ctx, path, module))
			if verdict == Yes {
				return Yes
			}
		}
	case parser.TypeImportFrom:
		moduleNode := n.ChildByFieldName("module_name")
		if moduleNode == nil {
			return Maybe
		}
		module := parser.Text(moduleNode, source)
		level := 0
		for level < len(module) && module[level] == '.' {
			level++
		}
		verdict = c.ClassifyFrom(ctx, path, module[level:], level)
	}

	return verdict
}

// isDocstring reports whether an expression statement is a bare string
// literal.
func isDocstring(n *sitter.Node) bool {
	if n.NamedChildCount() != 1 {
		return false
	}
	switch n.NamedChild(0).Type() {
	case parser.TypeString, parser.TypeConcatenatedString:
		return true
	}
	return false
}
