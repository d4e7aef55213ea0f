//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package memory provides the shared workflow memory.
//
// Memory maps node IDs to the output each node last produced, plus the
// reserved KeyInputs bundle seeded before a run starts. The engine is the
// only writer; nodes never touch Memory directly.
package memory

import (
	"strings"
	"sync"
)

// KeyInputs is the reserved top-level key holding the initial input bundle.
const KeyInputs = "inputs"

// Memory is a process-local mapping from node ID to that node's last output.
// All externally visible operations are serialised under a single mutex.
type Memory struct {
	mu   sync.Mutex
	data map[string]any
}

// New creates a Memory seeded with the given initial data.
// The initial map is used as-is; callers must not retain it.
func New(initial map[string]any) *Memory {
	if initial == nil {
		initial = make(map[string]any)
	}
	return &Memory{data: initial}
}

// Get returns the value at the given dotted path, walking nested maps.
// It returns nil if any segment is missing or traverses a non-map value.
func (m *Memory) Get(path string) any {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current any = m.data
	for _, part := range strings.Split(path, ".") {
		container, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		value, exists := container[part]
		if !exists {
			return nil
		}
		current = value
	}
	return current
}

// Set sets a top-level key atomically.
func (m *Memory) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
}

// Snapshot returns a shallow copy of the top-level mapping. Inner structures
// are shared; callers may read them but must not mutate.
func (m *Memory) Snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]any, len(m.data))
	for k, v := range m.data {
		snapshot[k] = v
	}
	return snapshot
}
