// Package pyscan inventories the import statements of a Python file and
// every syntactic use of a name in it.
package pyscan

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// BindingKind distinguishes the import forms a name can come from.
type BindingKind int

const (
	// PlainImport is `import a` or `import a.b.c [as x]`.
	PlainImport BindingKind = iota
	// FromImport is `from m import a [as x]`.
	FromImport
	// StarImport is `from m import *`.
	StarImport
)

// Binding is one name introduced by an import statement.
type Binding struct {
	// Name is the bound name: the alias when present, the first dotted
	// segment for `import a.b.c`, the imported name otherwise.
	Name string

	// Imported is the full dotted name as written: "a.b.c" for plain
	// imports, the member name for from-imports, "*" for stars.
	Imported string

	// Alias is the `as` name, empty when none.
	Alias string

	Kind   BindingKind
	Dotted bool // plain import of a dotted path, bound by its root

	// StartByte/EndByte span the alias element inside the statement, so a
	// partial rewrite can reuse the exact original text (`a.b as c`).
	StartByte uint32
	EndByte   uint32

	// FallbackGroup links alternative implementations of one logical
	// import across try/except branches; zero means no group.
	FallbackGroup int

	// LogicalKey identifies the imported object independent of aliasing,
	// used to reconcile fallback-group siblings.
	LogicalKey string
}

// Statement is one import clause, possibly binding multiple names.
type Statement struct {
	ID   int
	Node *sitter.Node

	StartByte uint32
	EndByte   uint32
	StartRow  int
	EndRow    int

	// Module is the from-clause module as written, including leading
	// relative dots; empty for plain imports.
	Module string
	// Level counts leading relative-import dots.
	Level int

	IsFrom bool
	Star   bool
	Future bool

	Bindings []*Binding

	// Formatting metadata for faithful partial rewrites.
	Multiline     bool
	Parenthesized bool
	Backslash     bool
	TrailingComma bool
	Indent        string

	// ExplicitSkip is terminal: the statement carries a skip marker on its
	// last physical line and is never altered.
	ExplicitSkip bool
}

// UsageForm classifies how a name was found used.
type UsageForm string

const (
	// FormDirect is a plain name or attribute-root reference.
	FormDirect UsageForm = "direct-reference"
	// FormQuotedAnnotation is an identifier inside a string annotation.
	FormQuotedAnnotation UsageForm = "quoted-annotation"
	// FormTypeComment is an identifier inside a `# type:` comment.
	FormTypeComment UsageForm = "type-comment"
	// FormCastLiteral is the string argument of a cast-style call.
	FormCastLiteral UsageForm = "cast-literal"
	// FormTypeVarLiteral is a string constraint/bound of a TypeVar call.
	FormTypeVarLiteral UsageForm = "typevar-literal"
	// FormGenericBase is a string element of a generic base subscript.
	FormGenericBase UsageForm = "generic-base-literal"
	// FormExportEntry is a name contributed to __all__.
	FormExportEntry UsageForm = "export-entry"
)

// UsageRecord is one observed use of a name.
type UsageRecord struct {
	Name      string
	Form      UsageForm
	StartByte uint32
	EndByte   uint32
}

// Usage aggregates every use found in a file. Lookup is flat and
// file-granular: a use anywhere counts everywhere.
type Usage struct {
	Names   map[string]struct{} // plain name references and equivalents
	Attrs   map[string]struct{} // attribute member names
	Records []UsageRecord

	// ExportsDeclared is set when the file mutates __all__ at all.
	ExportsDeclared bool
	// ExportsUnresolvable is set when some __all__ contribution was not a
	// literal string collection; the whole file must then be handled
	// conservatively.
	ExportsUnresolvable bool
}

// NewUsage returns an empty usage set.
func NewUsage() *Usage {
	return &Usage{
		Names: make(map[string]struct{}),
		Attrs: make(map[string]struct{}),
	}
}

func (u *Usage) addName(name string, form UsageForm, start, end uint32) {
	if name == "" {
		return
	}
	u.Names[name] = struct{}{}
	u.Records = append(u.Records, UsageRecord{Name: name, Form: form, StartByte: start, EndByte: end})
}

func (u *Usage) addAttr(name string, start, end uint32) {
	if name == "" {
		return
	}
	u.Attrs[name] = struct{}{}
	u.Records = append(u.Records, UsageRecord{Name: name, Form: FormDirect, StartByte: start, EndByte: end})
}

// UsedName reports whether name was referenced in plain-name position.
func (u *Usage) UsedName(name string) bool {
	_, ok := u.Names[name]
	return ok
}

// UsedAnywhere reports whether name was referenced as a plain name or an
// attribute member, the looser check star expansion needs.
func (u *Usage) UsedAnywhere(name string) bool {
	if u.UsedName(name) {
		return true
	}
	_, ok := u.Attrs[name]
	return ok
}
