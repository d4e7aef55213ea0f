//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDottedPath(t *testing.T) {
	m := New(map[string]any{
		"inputs": map[string]any{
			"query": "hello",
			"user": map[string]any{
				"name": "ada",
			},
		},
		"count": 3,
	})

	tests := []struct {
		path string
		want any
	}{
		{"inputs.query", "hello"},
		{"inputs.user.name", "ada"},
		{"count", 3},
		{"missing", nil},
		{"inputs.missing", nil},
		// Traversing through a non-map value yields nil, not a panic.
		{"count.nested", nil},
		{"inputs.query.deeper", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.Get(tt.path), "path %q", tt.path)
	}
}

func TestSetAndSnapshot(t *testing.T) {
	m := New(nil)
	m.Set("a", map[string]any{"printed": "hi"})

	snap := m.Snapshot()
	require.Contains(t, snap, "a")

	// Snapshot is a point-in-time copy of the top level: later writes do not
	// show up in an earlier snapshot.
	m.Set("b", 1)
	assert.NotContains(t, snap, "b")
	assert.Contains(t, m.Snapshot(), "b")
}

func TestConcurrentAccess(t *testing.T) {
	m := New(map[string]any{"inputs": map[string]any{}})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("node_%d", i)
			m.Set(key, map[string]any{"result": i})
			_ = m.Get(key + ".result")
			_ = m.Snapshot()
		}(i)
	}
	wg.Wait()

	for i := 0; i < 32; i++ {
		assert.Equal(t, i, m.Get(fmt.Sprintf("node_%d.result", i)))
	}
}
