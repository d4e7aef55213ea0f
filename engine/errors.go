//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package engine

import (
	"fmt"
	"strings"
)

// NodeError reports a failed node run. It aborts the workflow.
type NodeError struct {
	NodeID string
	Err    error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s failed: %v", e.NodeID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// DeadlockError reports that no pending node can make progress. A correctly
// compiled graph cannot reach this state; it guards the scheduler invariant.
type DeadlockError struct {
	Pending []string
}

// Error implements the error interface.
func (e *DeadlockError) Error() string {
	return fmt.Sprintf("deadlock detected: pending nodes [%s] have unsatisfiable dependencies",
		strings.Join(e.Pending, ", "))
}
