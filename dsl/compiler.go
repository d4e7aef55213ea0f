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
	"trpc.group/trpc-go/trpc-flow-go/memory"
	"trpc.group/trpc-go/trpc-flow-go/template"
)

// Compile builds a WorkflowGraph from a parsed document.
//
// Dependencies for a node b are the union of:
//  1. b.depends_on (explicit),
//  2. node IDs referenced as {{ <id>.<field> }} in any string leaf of
//     b.inputs, excluding the reserved "inputs" key and undefined IDs,
//  3. every node a with b in a.next.
func Compile(doc *Document) (*WorkflowGraph, error) {
	graph := &WorkflowGraph{
		ID:         doc.ID,
		Version:    doc.Version,
		Start:      doc.Start,
		Nodes:      doc.Nodes,
		Deps:       make(map[string]map[string]bool, len(doc.Nodes)),
		Successors: make(map[string][]string, len(doc.Nodes)),
	}

	addDep := func(nodeID, dep string) {
		set, ok := graph.Deps[nodeID]
		if !ok {
			set = make(map[string]bool)
			graph.Deps[nodeID] = set
		}
		set[dep] = true
	}

	for id, spec := range doc.Nodes {
		if _, ok := graph.Deps[id]; !ok {
			graph.Deps[id] = make(map[string]bool)
		}

		// Explicit dependencies.
		for _, dep := range spec.DependsOn {
			addDep(id, dep)
		}

		// Implicit dependencies from template references in inputs.
		for _, ref := range inferRefs(spec.Inputs) {
			if ref == memory.KeyInputs {
				continue
			}
			if _, defined := doc.Nodes[ref]; defined {
				addDep(id, ref)
			}
		}

		// next edges: if a.next contains b, then b depends on a.
		graph.Successors[id] = spec.Next
		for _, target := range spec.Next {
			addDep(target, id)
		}
	}

	return graph, nil
}

// inferRefs collects template references from the string leaves of an
// arbitrarily nested inputs structure.
func inferRefs(value any) []string {
	var refs []string
	walkStrings(value, func(s string) {
		refs = append(refs, template.Refs(s)...)
	})
	return refs
}

func walkStrings(value any, visit func(string)) {
	switch v := value.(type) {
	case string:
		visit(v)
	case map[string]any:
		for _, item := range v {
			walkStrings(item, visit)
		}
	case []any:
		for _, item := range v {
			walkStrings(item, visit)
		}
	}
}
