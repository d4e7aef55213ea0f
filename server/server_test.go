//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-flow-go/storage"
)

const testWorkflow = `
id: echo_bot
nodes:
  end_node:
    type: print
    inputs: {message: "echo: {{ inputs.query }}"}
`

func newTestServer(t *testing.T, opts ...Option) (*Server, string) {
	t.Helper()
	dslPath := filepath.Join(t.TempDir(), "workflow.yaml")
	require.NoError(t, os.WriteFile(dslPath, []byte(testWorkflow), 0o644))

	srv, err := New(dslPath, opts...)
	require.NoError(t, err)
	return srv, dslPath
}

func newTestStore(t *testing.T) *storage.Service {
	t.Helper()
	store, err := storage.Open(
		storage.WithDriver(storage.DriverSQLite),
		storage.WithDSN(filepath.Join(t.TempDir(), "flow.db")),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestChatSend(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/chat/send",
		map[string]string{"query": "hello"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "echo: hello", resp.Response)
	assert.NotEmpty(t, resp.ConversationID)
}

func TestChatSendRequiresQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/chat/send", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatSendPersistsHistory(t *testing.T) {
	store := newTestStore(t)
	srv, _ := newTestServer(t, WithStore(store))

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/chat/send",
		map[string]string{"query": "hi", "conversation_id": "conv-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv.Handler(), http.MethodGet, "/chat/history/conv-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var history []storage.Message
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, storage.Message{Role: "user", Content: "hi"}, history[0])
	assert.Equal(t, storage.Message{Role: "assistant", Content: "echo: hi"}, history[1])
}

func TestChatHistoryWithoutStore(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/chat/history/conv-1", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDSLRoundTrip(t *testing.T) {
	srv, dslPath := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodGet, "/dsl/content", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, testWorkflow, got["content"])

	updated := `
id: updated_bot
nodes:
  end_node:
    type: print
    inputs: {message: "new: {{ inputs.query }}"}
`
	rec = doJSON(t, srv.Handler(), http.MethodPost, "/dsl/content",
		map[string]string{"content": updated})
	require.Equal(t, http.StatusOK, rec.Code)

	// The file is rewritten and subsequent chat turns use the new graph.
	onDisk, err := os.ReadFile(dslPath)
	require.NoError(t, err)
	assert.Equal(t, updated, string(onDisk))

	rec = doJSON(t, srv.Handler(), http.MethodPost, "/chat/send",
		map[string]string{"query": "x"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "new: x", resp.Response)
}

func TestDSLUpdateRejectsInvalid(t *testing.T) {
	srv, dslPath := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/dsl/content",
		map[string]string{"content": "nodes: [a, b"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The running workflow and the file are untouched.
	onDisk, err := os.ReadFile(dslPath)
	require.NoError(t, err)
	assert.Equal(t, testWorkflow, string(onDisk))
}

func TestDSLUpdateRejectsCycle(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doJSON(t, srv.Handler(), http.MethodPost, "/dsl/content",
		map[string]string{"content": `
id: cyclic
nodes:
  a: {type: print, next: b}
  b: {type: print, next: a}
`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid DSL")
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := doJSON(t, srv.Handler(), http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, true, resp["workflow_loaded"])
}
