// Package pysrc reads and writes Python source files without disturbing
// their encoding or line endings.
package pysrc

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	pyerrors "pyclean/internal/errors"
)

const (
	// FormFeed is the one control character pyclean refuses to handle:
	// it shifts the physical-line accounting the rewriter depends on.
	FormFeed = '\x0c'

	initFile = "__init__.py"
)

// Newline styles preserved on write.
const (
	LF   = "\n"
	CRLF = "\r\n"
)

var codingCookieRe = regexp.MustCompile(`^[ \t\f]*#.*?coding[:=][ \t]*([-_.a-zA-Z0-9]+)`)

// SourceFile is one Python file loaded into memory.
type SourceFile struct {
	Path     string
	Content  []byte
	Encoding string // declared encoding, informational only
	Newline  string // LF or CRLF, reapplied on write
	hasBOM   bool
}

// utf8BOM is stripped on read and restored on write.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Read loads path, validating permissions and rejecting sources pyclean
// cannot rewrite losslessly.
func Read(path string) (*SourceFile, error) {
	if strings.HasSuffix(path, initFile) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, pyerrors.New(pyerrors.InitFileMissing, "__init__.py file does not exist", err).WithPath(path)
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, pyerrors.New(pyerrors.ReadPermission, "permission denied [READ]", err).WithPath(path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	src, err := fromBytes(path, content)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// ReadStdin loads Python source from the given reader, used for the "-"
// path notation.
func ReadStdin(r io.Reader) (*SourceFile, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return fromBytes("STDIN", content)
}

func fromBytes(path string, content []byte) (*SourceFile, error) {
	hasBOM := bytes.HasPrefix(content, utf8BOM)
	content = bytes.TrimPrefix(content, utf8BOM)

	if bytes.IndexByte(content, FormFeed) >= 0 {
		return nil, pyerrors.New(pyerrors.UnsupportedSyntax,
			"cannot handle a file containing a form feed character (\\f)", nil).WithPath(path)
	}

	return &SourceFile{
		Path:     path,
		Content:  content,
		Encoding: detectEncoding(content),
		Newline:  detectNewline(content),
		hasBOM:   hasBOM,
	}, nil
}

// detectEncoding reads the PEP 263 coding cookie from the first two lines.
// The content itself is processed as raw bytes either way; the cookie is
// reported so callers can refuse files they cannot re-emit.
func detectEncoding(content []byte) string {
	lines := bytes.SplitN(content, []byte("\n"), 3)
	for i := 0; i < len(lines) && i < 2; i++ {
		if m := codingCookieRe.FindSubmatch(lines[i]); m != nil {
			return strings.ToLower(string(m[1]))
		}
	}
	return "utf-8"
}

func detectNewline(content []byte) string {
	if i := bytes.IndexByte(content, '\n'); i > 0 && content[i-1] == '\r' {
		return CRLF
	}
	return LF
}

// Write commits the new content for src atomically: the bytes are staged in
// a temporary file in the same directory and renamed over the original, so
// a cancelled run never leaves a partially rewritten file.
func Write(src *SourceFile, content []byte) error {
	info, err := os.Stat(src.Path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src.Path, err)
	}

	if src.hasBOM {
		content = append(append([]byte{}, utf8BOM...), content...)
	}

	f, err := os.CreateTemp(filepath.Dir(src.Path), ".pyclean-*.tmp")
	if err != nil {
		if os.IsPermission(err) {
			return pyerrors.New(pyerrors.WritePermission, "permission denied [WRITE]", err).WithPath(src.Path)
		}
		return fmt.Errorf("staging %s: %w", src.Path, err)
	}
	tmp := f.Name()

	_, werr := f.Write(content)
	cerr := f.Close()
	if werr != nil || cerr != nil {
		_ = os.Remove(tmp)
		if werr != nil {
			return fmt.Errorf("writing %s: %w", src.Path, werr)
		}
		return fmt.Errorf("writing %s: %w", src.Path, cerr)
	}

	if err := os.Chmod(tmp, info.Mode().Perm()); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing %s: %w", src.Path, err)
	}

	if err := os.Rename(tmp, src.Path); err != nil {
		_ = os.Remove(tmp)
		if os.IsPermission(err) {
			return pyerrors.New(pyerrors.WritePermission, "permission denied [WRITE]", err).WithPath(src.Path)
		}
		return fmt.Errorf("replacing %s: %w", src.Path, err)
	}

	return nil
}

// IsInitFile reports whether path names a package initializer.
func IsInitFile(path string) bool {
	return filepath.Base(path) == initFile
}

// IsStubFile reports whether path names a .pyi stub, where wildcard imports
// are a re-export convention and must not be rewritten.
func IsStubFile(path string) bool {
	return strings.HasSuffix(path, ".pyi")
}
