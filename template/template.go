//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package template expands {{ expr }} markers against a memory snapshot and
// evaluates rendered boolean guards.
//
// The expression language is a closed subset: dotted identifier paths into
// the namespace, string and numeric literals, ==, !=, and, or, not, and
// parentheses. Evaluation never reaches outside the namespace.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"trpc.group/trpc-go/trpc-flow-go/log"
)

// refPattern captures node references of the form {{ node_id.field }}.
// Used by the DSL compiler to infer implicit dependencies.
var refPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\.[A-Za-z0-9_]+\s*\}\}`)

// markerPattern matches a single {{ ... }} segment for expansion.
var markerPattern = regexp.MustCompile(`\{\{([^{}]*)\}\}`)

// Refs returns the identifiers referenced as {{ <id>.<field> }} in s.
func Refs(s string) []string {
	matches := refPattern.FindAllStringSubmatch(s, -1)
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, m[1])
	}
	return refs
}

// ExpandString replaces every {{ expr }} segment in s with the string form of
// the evaluated expression. Strings without markers are returned unchanged.
// Expansion is fail-open: on any evaluation error the original string is
// returned and a diagnostic is logged.
func ExpandString(s string, ns map[string]any) string {
	if !strings.Contains(s, "{{") {
		return s
	}

	var expandErr error
	expanded := markerPattern.ReplaceAllStringFunc(s, func(marker string) string {
		expr := marker[2 : len(marker)-2]
		value, err := Eval(expr, ns)
		if err != nil {
			expandErr = err
			return marker
		}
		return stringify(value)
	})
	if expandErr != nil {
		log.Errorf("error rendering template %q: %v", s, expandErr)
		return s
	}
	return expanded
}

// Expand expands template markers in value. Strings are expanded with
// ExpandString; maps and slices are walked recursively; everything else is
// returned unchanged.
func Expand(value any, ns map[string]any) any {
	switch v := value.(type) {
	case string:
		return ExpandString(v, ns)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Expand(item, ns)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Expand(item, ns)
		}
		return out
	default:
		return value
	}
}

// EvalGuard evaluates a condition string against the namespace. An empty
// condition is true. The condition is expanded first, then the rendered
// string is interpreted as a boolean expression. Guards are fail-closed: any
// error yields false.
func EvalGuard(cond string, ns map[string]any) bool {
	if strings.TrimSpace(cond) == "" {
		return true
	}

	rendered := ExpandString(cond, ns)
	value, err := Eval(rendered, ns)
	if err != nil {
		log.Warnf("condition evaluation failed: %q -> %v", cond, err)
		return false
	}
	return truthy(value)
}

// stringify converts an evaluated expression value to its template string
// form. Floats drop trailing zeros so numeric chains stay round-trippable.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// truthy reports whether a guard result counts as true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		if f, ok := toFloat(t); ok {
			return f != 0
		}
		return t != "" && !strings.EqualFold(t, "false")
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	default:
		return true
	}
}

// resolvePath walks a dotted identifier path through nested maps in the
// namespace. A missing segment resolves to nil rather than an error, which
// lets guards express null checks on not-yet-written nodes.
func resolvePath(ns map[string]any, path string) any {
	var current any = ns
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
