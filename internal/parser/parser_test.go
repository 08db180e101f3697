//go:build cgo

package parser

import (
	"context"
	"testing"
)

func TestParseProducesModuleRoot(t *testing.T) {
	root, err := NewParser().Parse(context.Background(), []byte("import os\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if root.Type() != TypeModule {
		t.Errorf("expected module root, got %s", root.Type())
	}
	if root.NamedChildCount() != 1 {
		t.Errorf("expected one statement, got %d", root.NamedChildCount())
	}
	if root.NamedChild(0).Type() != TypeImport {
		t.Errorf("expected import_statement, got %s", root.NamedChild(0).Type())
	}
}

func TestParseFragment(t *testing.T) {
	tests := []struct {
		name     string
		fragment string
		wantErr  bool
	}{
		{"plain name", "List", false},
		{"dotted name", "models.User", false},
		{"subscript", "Dict[str, int]", false},
		{"nested string", `List["Foo"]`, false},
		{"garbage", "def :", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFragment(context.Background(), []byte(tt.fragment))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseFragment(%q) error = %v, wantErr %v", tt.fragment, err, tt.wantErr)
			}
		})
	}
}

func TestStringLiteralValue(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
		ok     bool
	}{
		{"double quoted", `x = "List[int]"`, "List[int]", true},
		{"single quoted", `x = 'Foo'`, "Foo", true},
		{"raw prefix", `x = r'Foo'`, "Foo", true},
		{"unicode prefix", `x = u"Foo"`, "Foo", true},
		{"triple quoted", `x = """Foo"""`, "Foo", true},
		{"concatenated", `x = "Fo" "o"`, "Foo", true},
		{"bytes rejected", `x = b"Foo"`, "", false},
		{"fstring rejected", `x = f"Foo"`, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, err := NewParser().Parse(context.Background(), []byte(tt.source))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			// module -> expression_statement -> assignment -> right
			assign := root.NamedChild(0).NamedChild(0)
			value := assign.ChildByFieldName("right")

			got, ok := StringLiteralValue(value, []byte(tt.source))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("value = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAttributeRootAndCallName(t *testing.T) {
	source := []byte("typing.cast('X', v)\n")
	root, err := NewParser().Parse(context.Background(), source)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	call := root.NamedChild(0).NamedChild(0)
	if call.Type() != TypeCall {
		t.Fatalf("expected call, got %s", call.Type())
	}
	if got := CallName(call, source); got != "typing.cast" {
		t.Errorf("CallName = %q, want %q", got, "typing.cast")
	}

	fn := call.ChildByFieldName("function")
	rootIdent := AttributeRoot(fn)
	if rootIdent == nil {
		t.Fatal("AttributeRoot returned nil")
	}
	if got := Text(rootIdent, source); got != "typing" {
		t.Errorf("attribute root = %q, want %q", got, "typing")
	}
}
