package main

import (
	"bytes"
	"context"
	"go/types"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/alecthomas/errors"
	"github.com/alecthomas/kong"

	"github.com/alecthomas/rig/internal/codegen"
	"github.com/alecthomas/rig/internal/flock"
)

type GenerateCmd struct {
	Output      string        `help:"Name of the generated file." default:"rig_gen.go"`
	OutputTags  []string      `help:"Tags to add to generated code." placeholder:"TAG"`
	LockTimeout time.Duration `help:"How long to wait for the output file lock." default:"30s"`

	analyseFlags `embed:""`
}

func (g *GenerateCmd) Run(ctx context.Context, kctx *kong.Context, logger *slog.Logger) error {
	graph, err := g.analyse(ctx)
	if err != nil {
		return err
	}
	if missing := graph.MissingDependencies(); len(missing) > 0 {
		fns := slices.SortedFunc(maps.Keys(missing), func(a, b *types.Func) int {
			return strings.Compare(a.FullName(), b.FullName())
		})
		for _, fn := range fns {
			missingStr := []string{}
			for _, typ := range missing[fn] {
				missingStr = append(missingStr, typ.String())
			}
			kctx.Errorf("%s() is missing a provider for %s", fn.FullName(), strings.Join(missingStr, ", "))
		}
		kctx.Exit(1)
	}

	// The lock is taken on the output file itself, so concurrent generate
	// runs serialise rather than interleaving writes.
	path := filepath.Join(g.Dest, g.Output)
	release, err := flock.Acquire(ctx, path, g.LockTimeout)
	if err != nil {
		return errors.Wrapf(err, "failed to lock %s", path)
	}
	defer func() { _ = release() }()

	buf := &bytes.Buffer{}
	if err := codegen.Generate(buf, graph, codegen.WithTags(g.OutputTags...)); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	logger.Debug("Generated", "path", path, "roots", len(graph.Roots))
	return nil
}
