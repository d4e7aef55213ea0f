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
	"os"

	"gopkg.in/yaml.v3"
)

// TypeRegistry reports whether a node type tag is known. The node package's
// registry satisfies this; the parser only needs the membership test.
type TypeRegistry interface {
	Has(nodeType string) bool
}

// Parser parses YAML workflow documents into WorkflowGraph structures.
type Parser struct {
	registry TypeRegistry
}

// NewParser creates a new workflow parser.
func NewParser() *Parser {
	return &Parser{}
}

// WithRegistry attaches a node type registry. When set, Parse rejects
// documents referencing unregistered node types.
func (p *Parser) WithRegistry(reg TypeRegistry) *Parser {
	p.registry = reg
	return p
}

// Parse parses a YAML byte array into a compiled and validated WorkflowGraph.
func (p *Parser) Parse(data []byte) (*WorkflowGraph, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workflow document: %w", err)
	}

	if doc.ID == "" {
		doc.ID = "unnamed_workflow"
	}
	if doc.Version == "" {
		doc.Version = "1.0"
	}
	for id, spec := range doc.Nodes {
		if spec == nil {
			return nil, fmt.Errorf("node %s has no specification", id)
		}
		spec.ID = id
	}

	graph, err := Compile(&doc)
	if err != nil {
		return nil, err
	}
	if err := validate(graph, p.registry); err != nil {
		return nil, err
	}
	return graph, nil
}

// ParseString parses a YAML string into a WorkflowGraph.
func (p *Parser) ParseString(content string) (*WorkflowGraph, error) {
	return p.Parse([]byte(content))
}

// ParseFile parses a YAML file into a WorkflowGraph.
func (p *Parser) ParseFile(filename string) (*WorkflowGraph, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	return p.Parse(data)
}
