//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package engine schedules a compiled workflow graph over a bounded worker
// pool. Nodes are dispatched as soon as their dependencies settle, guard
// conditions are evaluated against a point-in-time memory snapshot, and
// skips propagate along dependency edges.
package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-flow-go/dsl"
	"trpc.group/trpc-go/trpc-flow-go/log"
	"trpc.group/trpc-go/trpc-flow-go/memory"
	"trpc.group/trpc-go/trpc-flow-go/node"
	"trpc.group/trpc-go/trpc-flow-go/template"
)

// DefaultWorkers is the worker pool size used when no override is given.
const DefaultWorkers = 10

var tracer = otel.Tracer("trpc.group/trpc-go/trpc-flow-go/engine")

// Engine executes one workflow graph against one memory instance.
// An Engine is single-use: create a fresh one per run.
type Engine struct {
	graph   *dsl.WorkflowGraph
	memory  *memory.Memory
	nodes   map[string]node.Node
	workers int
}

// Option configures the engine.
type Option func(*options)

type options struct {
	workers  int
	registry *node.Registry
}

// WithWorkers sets the worker pool size. Values below one fall back to the
// default.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithRegistry supplies the registry used to instantiate nodes. Defaults to
// the built-in registry.
func WithRegistry(reg *node.Registry) Option {
	return func(o *options) {
		if reg != nil {
			o.registry = reg
		}
	}
}

// New builds an engine for the graph, instantiating every node up front so
// that an unknown node type fails before any scheduling happens.
func New(graph *dsl.WorkflowGraph, mem *memory.Memory, opts ...Option) (*Engine, error) {
	o := options{workers: DefaultWorkers, registry: node.DefaultRegistry}
	for _, opt := range opts {
		opt(&o)
	}

	nodes := make(map[string]node.Node, len(graph.Nodes))
	for id, spec := range graph.Nodes {
		n, err := o.registry.New(id, spec)
		if err != nil {
			return nil, fmt.Errorf("instantiate node %s: %w", id, err)
		}
		nodes[id] = n
	}
	return &Engine{
		graph:   graph,
		memory:  mem,
		nodes:   nodes,
		workers: o.workers,
	}, nil
}

// Execute is a convenience wrapper: it seeds a fresh memory with the given
// workflow inputs, runs the graph, and returns the memory for inspection.
// The memory is returned even when the run fails.
func Execute(ctx context.Context, graph *dsl.WorkflowGraph,
	inputs map[string]any, opts ...Option) (*memory.Memory, error) {
	mem := memory.New(map[string]any{memory.KeyInputs: inputs})
	eng, err := New(graph, mem, opts...)
	if err != nil {
		return mem, err
	}
	return mem, eng.Run(ctx)
}

type result struct {
	id     string
	output map[string]any
	err    error
}

// Run drives the graph to completion. It returns nil when every node has
// either completed or been skipped, a *NodeError when a node run fails, and
// a *DeadlockError when pending nodes can never become ready.
func (e *Engine) Run(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("workflow.id", e.graph.ID),
			attribute.Int("workflow.nodes", len(e.graph.Nodes)),
		))
	defer span.End()

	pool, err := ants.NewPool(e.workers)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	total := len(e.graph.Nodes)
	completed := make(map[string]bool, total)
	skipped := make(map[string]bool, total)
	inflight := make(map[string]bool)
	results := make(chan result, total)

	var runErr error
	settle := func(res result) {
		delete(inflight, res.id)
		if res.err != nil {
			log.Errorf("node %s failed: %v", res.id, res.err)
			if runErr == nil {
				runErr = &NodeError{NodeID: res.id, Err: res.err}
			}
			return
		}
		e.memory.Set(res.id, res.output)
		completed[res.id] = true
		log.Infof("node %s completed", res.id)
	}

	log.Infof("workflow %s starting: %d nodes, %d workers", e.graph.ID, total, e.workers)
	for len(completed)+len(skipped) < total {
		if err := ctx.Err(); err != nil {
			for len(inflight) > 0 {
				settle(<-results)
			}
			return err
		}

		ready, toSkip := e.partition(completed, skipped, inflight)

		// Propagate skips before dispatching so that downstream guards see
		// a settled frontier.
		if len(toSkip) > 0 {
			for _, id := range toSkip {
				skipped[id] = true
				log.Infof("node %s skipped: all dependencies skipped", id)
			}
			continue
		}

		guardSkips := 0
		for _, id := range ready {
			spec := e.graph.Nodes[id]
			snapshot := e.memory.Snapshot()
			if !template.EvalGuard(spec.Condition, snapshot) {
				skipped[id] = true
				guardSkips++
				log.Infof("node %s skipped: condition %q is false", id, spec.Condition)
				continue
			}

			resolved, _ := template.Expand(spec.Inputs, snapshot).(map[string]any)
			n := e.nodes[id]
			inflight[id] = true
			if err := pool.Submit(func() {
				out, err := e.runNode(ctx, n, resolved)
				results <- result{id: n.ID(), output: out, err: err}
			}); err != nil {
				delete(inflight, id)
				for len(inflight) > 0 {
					settle(<-results)
				}
				return fmt.Errorf("submit node %s: %w", id, err)
			}
			log.Debugf("node %s dispatched", id)
		}

		if len(inflight) == 0 {
			if guardSkips > 0 {
				// Guard skips made progress; re-partition immediately.
				continue
			}
			return &DeadlockError{Pending: e.pending(completed, skipped)}
		}

		// Block for one result, then drain whatever else already finished.
		settle(<-results)
		for drained := false; !drained; {
			select {
			case res := <-results:
				settle(res)
			default:
				drained = true
			}
		}

		if runErr != nil {
			for len(inflight) > 0 {
				settle(<-results)
			}
			return runErr
		}
	}

	log.Infof("workflow %s finished: %d completed, %d skipped",
		e.graph.ID, len(completed), len(skipped))
	return nil
}

// partition splits pending nodes into those ready to dispatch and those to
// skip. A node is considered only when every dependency has settled; it is
// skipped when it has dependencies and all of them were skipped.
func (e *Engine) partition(completed, skipped, inflight map[string]bool) (ready, toSkip []string) {
	for id := range e.graph.Nodes {
		if completed[id] || skipped[id] || inflight[id] {
			continue
		}
		deps := e.graph.Deps[id]
		settled := true
		allSkipped := len(deps) > 0
		for dep := range deps {
			if !completed[dep] && !skipped[dep] {
				settled = false
				break
			}
			if completed[dep] {
				allSkipped = false
			}
		}
		if !settled {
			continue
		}
		if allSkipped {
			toSkip = append(toSkip, id)
		} else {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)
	sort.Strings(toSkip)
	return ready, toSkip
}

func (e *Engine) pending(completed, skipped map[string]bool) []string {
	var ids []string
	for id := range e.graph.Nodes {
		if !completed[id] && !skipped[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) runNode(ctx context.Context, n node.Node,
	inputs map[string]any) (out map[string]any, err error) {
	ctx, span := tracer.Start(ctx, "workflow.node",
		trace.WithAttributes(attribute.String("node.id", n.ID())))
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return n.Run(ctx, inputs)
}
