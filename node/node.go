//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package node defines the node contract and the registry of node types.
//
// A node consumes a resolved input map (templates already expanded by the
// engine) and returns an output map that becomes its memory entry. Nodes
// must be safe to run concurrently with other nodes and never touch the
// shared memory directly.
package node

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"trpc.group/trpc-go/trpc-flow-go/dsl"
)

// Node is a typed unit of work.
type Node interface {
	// ID returns the node identifier.
	ID() string

	// Run executes the node with the resolved inputs and returns its output.
	// An error aborts the workflow.
	Run(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// Constructor builds a node instance from its ID and specification.
type Constructor func(id string, spec *dsl.NodeSpec) Node

// Registry manages node type registration and lookup.
//
// Node types can be registered in two ways:
// 1. Framework built-in types (registered at init time)
// 2. Business custom types (registered before a workflow is parsed)
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates a new node type registry.
func NewRegistry() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
	}
}

// Register registers a constructor for the given type tag.
func (r *Registry) Register(nodeType string, ctor Constructor) error {
	if nodeType == "" {
		return fmt.Errorf("node type cannot be empty")
	}
	if ctor == nil {
		return fmt.Errorf("node type %q: constructor cannot be nil", nodeType)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[nodeType]; exists {
		return fmt.Errorf("node type %q already registered", nodeType)
	}
	r.constructors[nodeType] = ctor
	return nil
}

// MustRegister registers a constructor and panics if registration fails.
// This is useful for init-time registration of built-in types.
func (r *Registry) MustRegister(nodeType string, ctor Constructor) {
	if err := r.Register(nodeType, ctor); err != nil {
		panic(err)
	}
}

// Has checks if a node type is registered.
func (r *Registry) Has(nodeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.constructors[nodeType]
	return exists
}

// List returns all registered node type tags.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.constructors))
	for nodeType := range r.constructors {
		types = append(types, nodeType)
	}
	return types
}

// New constructs a node instance for the given specification.
// An unknown type is an error; callers check this before scheduling begins.
func (r *Registry) New(id string, spec *dsl.NodeSpec) (Node, error) {
	r.mu.RLock()
	ctor, exists := r.constructors[spec.Type]
	r.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unknown node type: %s", spec.Type)
	}
	return ctor(id, spec), nil
}

// DefaultRegistry is the global default registry.
// Built-in node types register themselves here at init time.
var DefaultRegistry = NewRegistry()

// Register registers a constructor in the default registry.
func Register(nodeType string, ctor Constructor) error {
	return DefaultRegistry.Register(nodeType, ctor)
}

// MustRegister registers a constructor in the default registry and panics on error.
func MustRegister(nodeType string, ctor Constructor) {
	DefaultRegistry.MustRegister(nodeType, ctor)
}

// Has checks if a node type exists in the default registry.
func Has(nodeType string) bool {
	return DefaultRegistry.Has(nodeType)
}

// New constructs a node from the default registry.
func New(id string, spec *dsl.NodeSpec) (Node, error) {
	return DefaultRegistry.New(id, spec)
}

// Input coercion helpers. Template expansion always yields strings, so node
// implementations parse numbers explicitly.

func asString(v any, fallback string) string {
	switch t := v.(type) {
	case nil:
		return fallback
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

func asFloat(v any, fallback float64) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f
		}
	}
	return fallback
}

func asInt(v any, fallback int) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return i
		}
	}
	return fallback
}
