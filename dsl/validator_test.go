//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package dsl

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateUndefinedReferences(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"depends_on undefined", `
id: x
nodes:
  a:
    type: print
    depends_on: [ghost]
`},
		{"next undefined", `
id: x
nodes:
  a:
    type: print
    next: [ghost]
`},
		{"start undefined", `
id: x
start: ghost
nodes:
  a:
    type: print
`},
		{"missing type", `
id: x
nodes:
  a:
    inputs: {message: "hi"}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser().ParseString(tt.doc)
			assert.Error(t, err)
		})
	}
}

func TestValidateCycle(t *testing.T) {
	_, err := NewParser().ParseString(`
id: cyclic
nodes:
  a:
    type: print
    inputs: {message: "{{ b.printed }}"}
  b:
    type: print
    inputs: {message: "{{ a.printed }}"}
`)
	require.Error(t, err)

	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Contains(t, cycleErr.Nodes, "a")
	assert.Contains(t, cycleErr.Nodes, "b")
}

func TestValidateSelfCycle(t *testing.T) {
	_, err := NewParser().ParseString(`
id: selfloop
nodes:
  a:
    type: print
    inputs: {message: "{{ a.printed }}"}
`)
	require.Error(t, err)

	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.Contains(t, cycleErr.Nodes, "a")
}

// Compiled graphs are acyclic by construction of the validation step: a
// diamond with explicit and inferred edges passes, and findCycle agrees.
func TestFindCycleOnAcyclicGraph(t *testing.T) {
	graph, err := NewParser().ParseString(`
id: diamond
nodes:
  root:
    type: math
    inputs: {a: 10, b: 20, op: add}
  left:
    type: math
    inputs: {a: "{{ root.result }}", b: 1, op: mul}
  right:
    type: math
    inputs: {a: "{{ root.result }}", b: 2, op: mul}
  join:
    type: math
    inputs: {a: "{{ left.result }}", b: "{{ right.result }}", op: add}
`)
	require.NoError(t, err)
	assert.Nil(t, findCycle(graph.Deps))
}
