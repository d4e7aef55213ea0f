//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package dsl provides the declarative workflow document format and the
// compiler that turns it into an executable WorkflowGraph.
package dsl

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is the top-level workflow document as authored in YAML.
type Document struct {
	// ID identifies the workflow (e.g., "aws_support_bot").
	ID string `yaml:"id"`

	// Version is the workflow document version (e.g., "1.0").
	Version string `yaml:"version"`

	// Start is the advisory entry node ID. Execution order is derived from
	// dependencies, not from Start; it is kept for tooling and display.
	Start string `yaml:"start,omitempty"`

	// Nodes maps node ID to its specification.
	Nodes map[string]*NodeSpec `yaml:"nodes"`
}

// NodeSpec describes a single node in the workflow document.
type NodeSpec struct {
	// ID is the node identifier. It is the key under "nodes" and is filled
	// in by the parser rather than authored inline.
	ID string `yaml:"-"`

	// Type selects the node implementation (e.g., "print", "llm").
	Type string `yaml:"type"`

	// Inputs maps parameter names to literal values or template strings.
	Inputs map[string]any `yaml:"inputs,omitempty"`

	// Condition is an optional template string producing a boolean guard.
	// A node whose guard renders false is skipped.
	Condition string `yaml:"condition,omitempty"`

	// DependsOn lists explicit upstream node IDs.
	DependsOn []string `yaml:"depends_on,omitempty"`

	// Next lists downstream node IDs. A scalar is accepted and treated as a
	// single-element list.
	Next StringOrList `yaml:"next,omitempty"`
}

// StringOrList unmarshals either a YAML scalar or a sequence of scalars.
type StringOrList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StringOrList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var single string
		if err := value.Decode(&single); err != nil {
			return err
		}
		*s = []string{single}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := value.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	default:
		return fmt.Errorf("next must be a string or a list of strings (line %d)", value.Line)
	}
}

// WorkflowGraph is the compiled, immutable form of a workflow document.
type WorkflowGraph struct {
	// ID is the workflow identifier.
	ID string

	// Version is the workflow document version.
	Version string

	// Start is the advisory start node ID (may be empty).
	Start string

	// Nodes maps node ID to its specification.
	Nodes map[string]*NodeSpec

	// Deps maps each node ID to the set of upstream node IDs that must be
	// terminal (completed or skipped) before it may run.
	Deps map[string]map[string]bool

	// Successors maps each node ID to its ordered downstream node IDs as
	// declared via "next".
	Successors map[string][]string
}
