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
	"fmt"
	"sort"
	"strings"
)

// CycleError reports a dependency cycle by the participating node IDs.
type CycleError struct {
	Nodes []string
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	return fmt.Sprintf("workflow graph contains a cycle: %s", strings.Join(e.Nodes, " -> "))
}

// validate checks referential integrity, node types, and acyclicity.
// It performs multi-level validation:
// 1. Structure validation (non-empty IDs, valid references)
// 2. Component validation (node types exist in the registry)
// 3. Topology validation (no dependency cycles)
func validate(graph *WorkflowGraph, registry TypeRegistry) error {
	if len(graph.Nodes) == 0 {
		return fmt.Errorf("workflow %s has no nodes", graph.ID)
	}

	// Structure: every referenced ID must name a defined node.
	for id, spec := range graph.Nodes {
		if id == "" {
			return fmt.Errorf("workflow %s: node ID cannot be empty", graph.ID)
		}
		if spec.Type == "" {
			return fmt.Errorf("node %s: type is required", id)
		}
		for _, dep := range spec.DependsOn {
			if _, ok := graph.Nodes[dep]; !ok {
				return fmt.Errorf("node %s: depends_on references undefined node %s", id, dep)
			}
		}
		for _, next := range spec.Next {
			if _, ok := graph.Nodes[next]; !ok {
				return fmt.Errorf("node %s: next references undefined node %s", id, next)
			}
		}
	}
	if graph.Start != "" {
		if _, ok := graph.Nodes[graph.Start]; !ok {
			return fmt.Errorf("start node %s is not defined", graph.Start)
		}
	}

	// Components: all node types must be registered, when a registry is set.
	if registry != nil {
		for id, spec := range graph.Nodes {
			if !registry.Has(spec.Type) {
				return fmt.Errorf("node %s: unknown node type %q", id, spec.Type)
			}
		}
	}

	// Topology: the dependency graph must be acyclic.
	if cycle := findCycle(graph.Deps); cycle != nil {
		return &CycleError{Nodes: cycle}
	}
	return nil
}

// findCycle runs a depth-first search over the dependency edges and returns
// the node IDs of the first cycle found, or nil when the graph is acyclic.
func findCycle(deps map[string]map[string]bool) []string {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(deps))

	// Deterministic iteration keeps error messages stable.
	ids := make([]string, 0, len(deps))
	for id := range deps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var stack []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		state[id] = visiting
		stack = append(stack, id)
		next := make([]string, 0, len(deps[id]))
		for dep := range deps[id] {
			next = append(next, dep)
		}
		sort.Strings(next)
		for _, dep := range next {
			switch state[dep] {
			case visiting:
				// Found a back edge; slice the cycle out of the stack.
				for i, onStack := range stack {
					if onStack == dep {
						cycle = append(append([]string{}, stack[i:]...), dep)
						return true
					}
				}
				cycle = []string{dep, id, dep}
				return true
			case unvisited:
				if visit(dep) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return false
	}

	for _, id := range ids {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}
	return nil
}
