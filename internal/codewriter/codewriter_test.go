package codewriter

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestWriter(t *testing.T) {
	w := New("main")
	w.Import("context")
	w.Import(`imp1234 "database/sql"`)
	w.L("func run(ctx context.Context, db *imp1234.DB) error {")
	w.In(func(w *Writer) {
		w.L("if db == nil {")
		w.In(func(w *Writer) {
			w.L("return nil")
		})
		w.Indent()
		w.W("} else ")
		w.W("{\n")
		w.In(func(w *Writer) {
			w.L("return ctx.Err()")
		})
		w.L("}")
	})
	w.L("}")
	assert.Equal(t, `package main

import (
	"context"
	imp1234 "database/sql"
)

func run(ctx context.Context, db *imp1234.DB) error {
	if db == nil {
		return nil
	} else {
		return ctx.Err()
	}
}
`, string(w.Bytes()))
}

func TestWriterNoImports(t *testing.T) {
	w := New("thing")
	w.L("var answer = %d", 42)
	assert.Equal(t, "package thing\n\nvar answer = 42\n", string(w.Bytes()))
}

func TestWriterImportDeduplication(t *testing.T) {
	w := New("main")
	w.Import("fmt")
	w.Import("fmt")
	w.Import(`impab "net/http"`)
	w.Import(`impab "net/http"`)
	w.L("var _ = fmt.Sprint(impab.StatusOK)")
	assert.Equal(t, `package main

import (
	"fmt"
	impab "net/http"
)

var _ = fmt.Sprint(impab.StatusOK)
`, string(w.Bytes()))
}
