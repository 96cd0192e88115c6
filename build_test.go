package rig

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/alecthomas/errors"
)

// ctorNode records its invocation as a string, so tests can assert on the
// exact shape of what was built from what.
type ctorNode struct {
	name string
	err  error
}

func ctor(name string) ctorNode { return ctorNode{name: name} }

func (c ctorNode) NodeKey() Key   { return Key(c.name) }
func (c ctorNode) String() string { return c.name }

func (c ctorNode) Construct(args map[string]any) (any, error) {
	if c.err != nil {
		return nil, c.err
	}
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, args[key]))
	}
	return c.name + "(" + strings.Join(parts, ", ") + ")", nil
}

func TestBuild(t *testing.T) {
	steps := []Step{
		{Node: ctor("A")},
		{Node: ctor("B"), Args: []Arg{{Name: "a", Node: ctor("A")}}},
		{Node: ctor("C"), Args: []Arg{{Name: "a", Node: ctor("A")}, {Name: "b", Node: ctor("B")}}},
	}
	out, err := Build(steps, nil)
	assert.NoError(t, err)
	assert.Equal(t, "A()", out["A"])
	assert.Equal(t, "B(a=A())", out["B"])
	assert.Equal(t, "C(a=A(), b=B(a=A()))", out["C"])
}

func TestBuildSupplied(t *testing.T) {
	steps := []Step{
		{Node: ctor("A")},
		{Node: ctor("B"), Args: []Arg{{Name: "a", Node: ctor("A")}}},
	}
	// A supplied value wins even when the node could construct itself.
	out, err := Build(steps, map[Key]any{"A": "handmade"})
	assert.NoError(t, err)
	assert.Equal(t, "handmade", out["A"])
	assert.Equal(t, "B(a=handmade)", out["B"])
}

func TestBuildConstructError(t *testing.T) {
	boom := errors.New("boom")
	steps := []Step{
		{Node: ctor("A")},
		{Node: ctorNode{name: "B", err: boom}, Args: []Arg{{Name: "a", Node: ctor("A")}}},
	}
	_, err := Build(steps, nil)
	assert.EqualError(t, err, "B: boom")
	assert.IsError(t, err, boom)
}

func TestBuildRequiresConstructor(t *testing.T) {
	steps := []Step{{Node: testNode("X")}}
	_, err := Build(steps, nil)
	assert.EqualError(t, err, "no value supplied for X and it does not implement Constructor")

	// Supplying the value makes the same step buildable.
	out, err := Build(steps, map[Key]any{"X": 42})
	assert.NoError(t, err)
	assert.Equal(t, 42, out["X"])
}
