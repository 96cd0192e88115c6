// Package codewriter writes indented Go source, collecting imports as it
// goes.
package codewriter

import (
	"bytes"
	"fmt"
	"slices"
	"strings"
)

// Writer accumulates the body of a Go source file. Imports registered while
// writing are emitted as a single block ahead of the body by [Writer.Bytes].
type Writer struct {
	pkg     string
	imports map[string]string
	body    bytes.Buffer
	indent  string
}

// New creates a Writer for a file in package pkg.
func New(pkg string) *Writer {
	return &Writer{pkg: pkg, imports: map[string]string{}}
}

// Import registers an import, either a bare import path or an aliased form
// such as `impc1 "database/sql"`.
func (w *Writer) Import(imp string) {
	alias := ""
	path := imp
	if i := strings.IndexByte(imp, '"'); i >= 0 {
		alias = strings.TrimSpace(imp[:i])
		path = strings.Trim(imp[i:], `"`)
	}
	w.imports[path] = alias
}

// L writes a formatted line at the current indentation.
func (w *Writer) L(format string, args ...any) {
	w.body.WriteString(w.indent)
	fmt.Fprintf(&w.body, format, args...)
	w.body.WriteByte('\n')
}

// W writes formatted text verbatim, without indentation or newline.
func (w *Writer) W(format string, args ...any) {
	fmt.Fprintf(&w.body, format, args...)
}

// Indent writes the current indentation, for continuing a line with
// [Writer.W].
func (w *Writer) Indent() {
	w.body.WriteString(w.indent)
}

// In calls fn with the indentation level increased by one.
func (w *Writer) In(fn func(w *Writer)) {
	w.indent += "\t"
	fn(w)
	w.indent = w.indent[:len(w.indent)-1]
}

// Bytes assembles the file: package clause, import block, body.
func (w *Writer) Bytes() []byte {
	var out bytes.Buffer
	fmt.Fprintf(&out, "package %s\n\n", w.pkg)
	if len(w.imports) > 0 {
		paths := make([]string, 0, len(w.imports))
		for path := range w.imports {
			paths = append(paths, path)
		}
		slices.Sort(paths)
		out.WriteString("import (\n")
		for _, path := range paths {
			if alias := w.imports[path]; alias != "" {
				fmt.Fprintf(&out, "\t%s %q\n", alias, path)
			} else {
				fmt.Fprintf(&out, "\t%q\n", path)
			}
		}
		out.WriteString(")\n\n")
	}
	out.Write(w.body.Bytes())
	return out.Bytes()
}
