package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

type GraphCmd struct {
	analyseFlags `embed:""`
}

func (g *GraphCmd) Run(ctx context.Context) error {
	graph, err := g.analyse(ctx)
	if err != nil {
		return err
	}
	universe := graph.Graph()
	for _, node := range slices.Sorted(maps.Keys(universe)) {
		fmt.Printf("%s\n", node)
		for _, dep := range universe[node] {
			fmt.Printf("  %s\n", dep)
		}
	}
	return nil
}
