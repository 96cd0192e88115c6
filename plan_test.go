package rig

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestStepString(t *testing.T) {
	step := Step{Node: testNode("C"), Args: []Arg{
		{Name: "a", Node: testNode("A")},
		{Name: "b", Node: testNode("B")},
	}}
	assert.Equal(t, "C (a=A, b=B)", step.String())
	assert.Equal(t, "A", Step{Node: testNode("A")}.String())
}

func TestStepArg(t *testing.T) {
	step := Step{Node: testNode("B"), Args: []Arg{{Name: "a", Node: testNode("A")}}}
	node, ok := step.Arg("a")
	assert.True(t, ok)
	assert.Equal(t, Key("A"), node.NodeKey())
	_, ok = step.Arg("missing")
	assert.False(t, ok)
}

func TestPlanLookup(t *testing.T) {
	plan, err := NewPlan(testNode("E"), diamond(), injectable("A", "B", "C", "D"))
	assert.NoError(t, err)

	assert.True(t, plan.Contains("C"))
	assert.False(t, plan.Contains("Z"))

	step, ok := plan.Step("C")
	assert.True(t, ok)
	assert.Equal(t, Key("C"), step.Node.NodeKey())
	_, ok = plan.Step("Z")
	assert.False(t, ok)
}

func TestPlanFinalArgs(t *testing.T) {
	plan, err := NewPlan(testNode("E"), diamond(), injectable("A", "B", "C", "D"))
	assert.NoError(t, err)

	instances := map[Key]any{"B": "b", "C": "c", "D": "d"}
	assert.Equal(t, map[string]any{"b": "b", "c": "c", "d": "d"}, plan.FinalArgs(instances))

	// Arguments with no built instance are omitted rather than zero-filled.
	assert.Equal(t, map[string]any{"b": "b"}, plan.FinalArgs(map[Key]any{"B": "b"}))
}
