// Package pypath resolves Python module references to source files and
// discovers the .py files a run should process.
package pypath

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ModuleKind classifies where a resolved module lives.
type ModuleKind int

const (
	// KindUnknown means the module could not be resolved at all.
	KindUnknown ModuleKind = iota
	// KindLocal is a module next to the importing file.
	KindLocal
	// KindStdlib is a standard library module.
	KindStdlib
	// KindThirdParty is a site-packages / dist-packages module.
	KindThirdParty
)

// binary source extensions: modules pyclean cannot statically inspect.
var binaryExtensions = map[string]struct{}{
	".so":    {},
	".pyd":   {},
	".dylib": {},
	".pyc":   {},
}

// Resolution is the outcome of resolving one module reference.
type Resolution struct {
	Path   string // absolute path to module source, empty when none
	Kind   ModuleKind
	Binary bool // resolved to a compiled extension, not inspectable source
}

// Resolver resolves module references, memoizing per (source dir, module,
// level). The memo is shared across files and safe for concurrent use; it is
// passed by reference into each file-processing task rather than living in a
// package-level singleton.
type Resolver struct {
	mu           sync.RWMutex
	memo         map[string]Resolution
	sitePackages []string
	stdlibDirs   []string
}

// NewResolver creates a resolver. sitePackages lists extra directories to
// probe for third-party modules; SitePackagesDirs() provides defaults.
// Standard library source directories are probed from the host Python
// installation so stdlib star imports stay expandable.
func NewResolver(sitePackages []string) *Resolver {
	return &Resolver{
		memo:         make(map[string]Resolution),
		sitePackages: sitePackages,
		stdlibDirs:   StdlibDirs(),
	}
}

// SitePackagesDirs guesses third-party package directories from the active
// virtual environment. Without a virtualenv the slice is empty and
// third-party imports resolve as unknown, which the classifier treats
// conservatively.
func SitePackagesDirs() []string {
	venv := os.Getenv("VIRTUAL_ENV")
	if venv == "" {
		return nil
	}

	var dirs []string
	libDir := filepath.Join(venv, "lib")
	entries, err := os.ReadDir(libDir)
	if err != nil {
		return nil
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "python") {
			continue
		}
		for _, pkgs := range []string{"site-packages", "dist-packages"} {
			dir := filepath.Join(libDir, e.Name(), pkgs)
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

// StdlibDirs probes the usual installation prefixes for the standard
// library source directory of the host Python.
func StdlibDirs() []string {
	var roots []string
	if home := os.Getenv("PYTHONHOME"); home != "" {
		roots = append(roots, filepath.Join(home, "lib"))
	}
	roots = append(roots, "/usr/lib", "/usr/local/lib")

	var dirs []string
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() || !strings.HasPrefix(e.Name(), "python3") {
				continue
			}
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs
}

// ResolveImport resolves `import module` relative to the importing file.
func (r *Resolver) ResolveImport(source, module string) Resolution {
	return r.resolve(source, module, 0)
}

// ResolveFrom resolves `from module import ...` with the given relative
// level (number of leading dots).
func (r *Resolver) ResolveFrom(source, module string, level int) Resolution {
	return r.resolve(source, module, level)
}

func (r *Resolver) resolve(source, module string, level int) Resolution {
	key := filepath.Dir(source) + "\x00" + module + "\x00" + strings.Repeat(".", level)

	r.mu.RLock()
	res, ok := r.memo[key]
	r.mu.RUnlock()
	if ok {
		return res
	}

	res = r.resolveUncached(source, module, level)

	r.mu.Lock()
	r.memo[key] = res
	r.mu.Unlock()
	return res
}

func (r *Resolver) resolveUncached(source, module string, level int) Resolution {
	if level > 0 {
		if path := localPath(relativeBase(source, level), module); path != "" {
			return Resolution{Path: path, Kind: KindLocal, Binary: isBinaryPath(path)}
		}
		return Resolution{Kind: KindUnknown}
	}

	if path := localPath(filepath.Dir(source), module); path != "" {
		return Resolution{Path: path, Kind: KindLocal, Binary: isBinaryPath(path)}
	}

	root := rootModule(module)
	if IsStdlib(root) {
		for _, dir := range r.stdlibDirs {
			if path := localPath(dir, module); path != "" {
				return Resolution{Path: path, Kind: KindStdlib, Binary: isBinaryPath(path)}
			}
		}
		// No inspectable source found; the classifier decides from the
		// deny list alone, and star expansion gives up.
		return Resolution{Kind: KindStdlib}
	}

	for _, dir := range r.sitePackages {
		if path := localPath(dir, module); path != "" {
			return Resolution{Path: path, Kind: KindThirdParty, Binary: isBinaryPath(path)}
		}
		if path := binaryModulePath(dir, root); path != "" {
			return Resolution{Path: path, Kind: KindThirdParty, Binary: true}
		}
	}

	return Resolution{Kind: KindUnknown}
}

// relativeBase climbs level-1 directories up from the importing file's
// directory: one dot means the file's own package.
func relativeBase(source string, level int) string {
	dir := filepath.Dir(source)
	for i := 1; i < level; i++ {
		dir = filepath.Dir(dir)
	}
	return dir
}

// localPath probes dir for module as either a package __init__.py or a
// plain .py/.pyi file.
func localPath(dir, module string) string {
	parts := []string{}
	if module != "" {
		parts = strings.Split(module, ".")
	}

	candidates := []string{
		filepath.Join(append([]string{dir}, append(parts, "__init__.py")...)...),
	}
	if len(parts) > 0 {
		base := filepath.Join(append([]string{dir}, parts[:len(parts)-1]...)...)
		candidates = append(candidates,
			filepath.Join(base, parts[len(parts)-1]+".py"),
			filepath.Join(base, parts[len(parts)-1]+".pyi"),
		)
	} else {
		candidates = append(candidates, filepath.Join(dir, "__init__.py"))
	}

	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			abs, err := filepath.Abs(path)
			if err != nil {
				return path
			}
			return abs
		}
	}
	return ""
}

// binaryModulePath probes dir for a compiled extension module.
func binaryModulePath(dir, module string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	for _, e := range entries {
		name := e.Name()
		base, ext, ok := strings.Cut(name, ".")
		if !ok || base != module {
			continue
		}
		if _, bin := binaryExtensions["."+lastExt(ext)]; bin {
			return filepath.Join(dir, name)
		}
	}
	return ""
}

func lastExt(ext string) string {
	if i := strings.LastIndexByte(ext, '.'); i >= 0 {
		return ext[i+1:]
	}
	return ext
}

func isBinaryPath(path string) bool {
	_, ok := binaryExtensions[filepath.Ext(path)]
	return ok
}

// rootModule returns the first segment of a dotted module path.
func rootModule(module string) string {
	if i := strings.IndexByte(module, '.'); i >= 0 {
		return module[:i]
	}
	return module
}

// RootModule is the exported form of rootModule for callers that need the
// owning top-level package of a dotted import.
func RootModule(module string) string {
	return rootModule(module)
}
