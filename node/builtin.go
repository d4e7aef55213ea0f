//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package node

import (
	"context"
	"strings"
	"time"

	"trpc.group/trpc-go/trpc-flow-go/dsl"
	"trpc.group/trpc-go/trpc-flow-go/log"
)

func init() {
	// Auto-register built-in node types at package init time.
	MustRegister("sleep", func(id string, spec *dsl.NodeSpec) Node { return &sleepNode{id: id} })
	MustRegister("print", func(id string, spec *dsl.NodeSpec) Node { return &printNode{id: id} })
	MustRegister("math", func(id string, spec *dsl.NodeSpec) Node { return &mathNode{id: id} })
	MustRegister("intent_classifier", func(id string, spec *dsl.NodeSpec) Node { return &intentClassifierNode{id: id} })
	MustRegister("router", func(id string, spec *dsl.NodeSpec) Node { return &routerNode{id: id} })
	MustRegister("mock_search", func(id string, spec *dsl.NodeSpec) Node { return &mockSearchNode{id: id} })
	MustRegister("llm", func(id string, spec *dsl.NodeSpec) Node { return &llmNode{id: id} })
	MustRegister("format", func(id string, spec *dsl.NodeSpec) Node { return &formatNode{id: id} })
}

// sleepNode blocks for the configured number of seconds.
type sleepNode struct {
	id string
}

func (n *sleepNode) ID() string { return n.id }

func (n *sleepNode) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	duration := asFloat(inputs["duration"], 1)
	log.Infof("[%s] sleeping for %gs", n.id, duration)

	timer := time.NewTimer(time.Duration(duration * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return map[string]any{"status": "slept", "duration": duration}, nil
}

// printNode emits its message and records it as output.
type printNode struct {
	id string
}

func (n *printNode) ID() string { return n.id }

func (n *printNode) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	message := asString(inputs["message"], "")
	log.Infof("[%s] OUTPUT: %s", n.id, message)
	return map[string]any{"printed": message}, nil
}

// mathNode applies a binary arithmetic operation. An unknown op yields 0.
type mathNode struct {
	id string
}

func (n *mathNode) ID() string { return n.id }

func (n *mathNode) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	a := asFloat(inputs["a"], 0)
	b := asFloat(inputs["b"], 0)
	op := asString(inputs["op"], "add")

	var result float64
	switch op {
	case "add":
		result = a + b
	case "sub":
		result = a - b
	case "mul":
		result = a * b
	default:
		result = 0
	}

	log.Infof("[%s] math: %g %s %g = %g", n.id, a, op, b, result)
	return map[string]any{"result": result}, nil
}

// intentClassifierNode buckets a query by fixed keyword rules.
type intentClassifierNode struct {
	id string
}

func (n *intentClassifierNode) ID() string { return n.id }

func (n *intentClassifierNode) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	query := strings.ToLower(asString(inputs["query"], ""))

	var category string
	switch {
	case strings.Contains(query, "ec2") || strings.Contains(query, "server") || strings.Contains(query, "down"):
		category = "technical_issue"
	case strings.Contains(query, "bill") || strings.Contains(query, "cost"):
		category = "billing"
	default:
		category = "general_inquiry"
	}

	log.Infof("[%s] classified %q as %q", n.id, query, category)
	return map[string]any{"category": category}, nil
}

// routerNode passes the intent through; branching happens via downstream
// node conditions.
type routerNode struct {
	id string
}

func (n *routerNode) ID() string { return n.id }

func (n *routerNode) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	intent := inputs["intent"]
	log.Infof("[%s] routing based on intent: %v", n.id, intent)
	return map[string]any{"intent": intent}, nil
}

// mockSearchNode simulates a search against a named source with canned
// results.
type mockSearchNode struct {
	id string
}

func (n *mockSearchNode) ID() string { return n.id }

func (n *mockSearchNode) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	query := asString(inputs["query"], asString(inputs["keywords"], ""))
	source := asString(inputs["source"], "unknown")
	duration := asFloat(inputs["duration"], 0.5)

	log.Infof("[%s] searching %s for %q (taking %gs)", n.id, source, query, duration)

	timer := time.NewTimer(time.Duration(duration * float64(time.Second)))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var results string
	switch source {
	case "official_docs":
		results = "Official Docs: EC2 instance troubleshooting guide. Check security groups."
	case "community_forum":
		results = "Community Forum: User 'cloud_guru' suggests restarting the instance."
	default:
		results = "No results found."
	}
	return map[string]any{"results": results}, nil
}

// formatNode reports the rendered template; expansion already happened in
// the engine, so this is a pass-through with length bookkeeping.
type formatNode struct {
	id string
}

func (n *formatNode) ID() string { return n.id }

func (n *formatNode) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	rendered := asString(inputs["template"], "")
	return map[string]any{"formatted": rendered, "length": len(rendered)}, nil
}
