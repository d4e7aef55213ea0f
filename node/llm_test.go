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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLLMNodeMockFallbackWithoutKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "")

	n := mustNew(t, "q", "llm")
	out, err := n.Run(context.Background(), map[string]any{
		"model":  "gpt-4o",
		"prompt": "hello",
	})
	require.NoError(t, err, "llm node must not fail the workflow")

	text, ok := out["text"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(text, MockResponsePrefix))

	usage, ok := out["usage"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 0, usage["total_tokens"])
	assert.Equal(t, "gpt-4o", out["model"])
}

func TestLLMNodeMockFallbackOnProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad request", "type": "invalid_request_error"}}`))
	}))
	defer srv.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_BASE_URL", srv.URL)

	n := mustNew(t, "q", "llm")
	out, err := n.Run(context.Background(), map[string]any{"prompt": "hello"})
	require.NoError(t, err)

	text := out["text"].(string)
	assert.True(t, strings.HasPrefix(text, MockResponsePrefix))
	usage := out["usage"].(map[string]any)
	assert.Equal(t, 0, usage["prompt_tokens"])
	assert.Equal(t, 0, usage["completion_tokens"])
	assert.Equal(t, 0, usage["total_tokens"])
}

func TestLLMNodeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-test",
			"object": "chat.completion",
			"created": 0,
			"model": "gpt-4o-mini",
			"choices": [
				{"index": 0, "finish_reason": "stop",
				 "message": {"role": "assistant", "content": "hi from the model"}}
			],
			"usage": {"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12}
		}`))
	}))
	defer srv.Close()

	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("OPENAI_BASE_URL", srv.URL)

	n := mustNew(t, "q", "llm")
	out, err := n.Run(context.Background(), map[string]any{
		"model":       "gpt-4o-mini",
		"prompt":      "say hi",
		"temperature": "0.2",
		"max_tokens":  "64",
	})
	require.NoError(t, err)

	assert.Equal(t, "hi from the model", out["text"])
	assert.Equal(t, "gpt-4o-mini", out["model"])
	usage := out["usage"].(map[string]any)
	assert.Equal(t, 5, usage["prompt_tokens"])
	assert.Equal(t, 12, usage["total_tokens"])
}
