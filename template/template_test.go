//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNamespace() map[string]any {
	return map[string]any{
		"inputs": map[string]any{
			"query": "ec2 is down",
			"a":     10,
		},
		"cls": map[string]any{
			"category": "technical_issue",
		},
		"root": map[string]any{
			"result": float64(30),
		},
	}
}

func TestRefs(t *testing.T) {
	refs := Refs("{{ a.printed }} and {{ inputs.query }} but not {{ standalone }}")
	assert.Equal(t, []string{"a", "inputs"}, refs)
}

func TestExpandString(t *testing.T) {
	ns := testNamespace()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"no markers unchanged", "plain text", "plain text"},
		{"simple path", "{{ cls.category }}", "technical_issue"},
		{"embedded", "got: {{ inputs.query }}!", "got: ec2 is down!"},
		{"numeric drops decimals", "{{ root.result }}", "30"},
		{"two markers", "{{ cls.category }}/{{ root.result }}", "technical_issue/30"},
		{"missing path renders empty", "[{{ nope.field }}]", "[]"},
		{"broken expression fail-open", "{{ cls.category == }}", "{{ cls.category == }}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandString(tt.in, ns))
		})
	}
}

func TestExpandIdempotentWithoutMarkers(t *testing.T) {
	ns := testNamespace()
	for _, s := range []string{"", "hello", "a } b { c", "100%"} {
		assert.Equal(t, s, ExpandString(s, ns))
	}
}

func TestExpandNonStrings(t *testing.T) {
	ns := testNamespace()

	assert.Equal(t, 42, Expand(42, ns))
	assert.Equal(t, true, Expand(true, ns))

	nested := map[string]any{
		"query": "{{ inputs.query }}",
		"extra": []any{"{{ cls.category }}", 7},
	}
	expanded, ok := Expand(nested, ns).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ec2 is down", expanded["query"])
	assert.Equal(t, []any{"technical_issue", 7}, expanded["extra"])
}

func TestEvalGuard(t *testing.T) {
	ns := testNamespace()

	tests := []struct {
		name string
		cond string
		want bool
	}{
		{"empty is true", "", true},
		{"whitespace is true", "   ", true},
		{"templated equality", "{{ cls.category == 'technical_issue' }}", true},
		{"templated inequality", "{{ cls.category == 'billing' }}", false},
		{"bare expression", "cls.category == 'technical_issue'", true},
		{"not equal", "cls.category != 'billing'", true},
		{"and", "cls.category == 'technical_issue' and root.result == 30", true},
		{"or", "cls.category == 'billing' or root.result == 30", true},
		{"not", "not (cls.category == 'billing')", true},
		{"numeric coercion", "root.result == '30'", true},
		{"missing path compares false", "ghost.field == 'x'", false},
		{"unparseable is false", "cls.category ===== oops", false},
		{"garbage is false", "{{{{", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EvalGuard(tt.cond, ns))
		})
	}
}

func TestEval(t *testing.T) {
	ns := testNamespace()

	v, err := Eval("root.result", ns)
	require.NoError(t, err)
	assert.Equal(t, float64(30), v)

	v, err = Eval("'a' == 'a' and ('b' != 'c')", ns)
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = Eval("-2.5", ns)
	require.NoError(t, err)
	assert.Equal(t, -2.5, v)

	_, err = Eval("foo bar", ns)
	assert.Error(t, err)

	_, err = Eval("'unterminated", ns)
	assert.Error(t, err)
}
