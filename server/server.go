//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package server exposes the workflow runtime over HTTP: a chat endpoint
// that executes the loaded workflow per turn, chat history retrieval, and
// live DSL inspection and replacement.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"trpc.group/trpc-go/trpc-flow-go/dsl"
	"trpc.group/trpc-go/trpc-flow-go/engine"
	"trpc.group/trpc-go/trpc-flow-go/log"
	"trpc.group/trpc-go/trpc-flow-go/node"
	"trpc.group/trpc-go/trpc-flow-go/storage"
)

const (
	// defaultAnswerNode is the terminal node whose output becomes the chat
	// response.
	defaultAnswerNode  = "end_node"
	defaultAnswerField = "printed"

	// noAnswer is returned when the answer node produced nothing.
	noAnswer = "..."

	historyLimit = 10
)

// Option configures the Server instance.
type Option func(*Server)

// WithStore attaches conversation persistence. Without it the server still
// serves chat, but turns are stateless and history is unavailable.
func WithStore(store *storage.Service) Option {
	return func(s *Server) { s.store = store }
}

// WithAnswerNode overrides which node output field is returned as the chat
// answer.
func WithAnswerNode(nodeID, field string) Option {
	return func(s *Server) {
		if nodeID != "" {
			s.answerNode = nodeID
		}
		if field != "" {
			s.answerField = field
		}
	}
}

// WithWorkers sets the engine worker pool size for each chat turn.
func WithWorkers(n int) Option {
	return func(s *Server) { s.workers = n }
}

// Server serves the workflow runtime API.
type Server struct {
	router  *mux.Router
	parser  *dsl.Parser
	store   *storage.Service
	dslPath string

	answerNode  string
	answerField string
	workers     int

	mu    sync.RWMutex
	graph *dsl.WorkflowGraph
	raw   string
}

// New loads the workflow document at dslPath and builds the server.
func New(dslPath string, opts ...Option) (*Server, error) {
	s := &Server{
		router:      mux.NewRouter(),
		parser:      dsl.NewParser().WithRegistry(node.DefaultRegistry),
		dslPath:     dslPath,
		answerNode:  defaultAnswerNode,
		answerField: defaultAnswerField,
		workers:     engine.DefaultWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := os.ReadFile(dslPath)
	if err != nil {
		return nil, fmt.Errorf("read workflow document: %w", err)
	}
	graph, err := s.parser.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("load workflow document: %w", err)
	}
	s.graph = graph
	s.raw = string(raw)
	log.Infof("loaded workflow %s (v%s) from %s", graph.ID, graph.Version, dslPath)

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})
	s.router.Use(c.Handler, loggingMiddleware)
	s.registerRoutes()
	return s, nil
}

// Handler returns the HTTP handler for mounting or serving.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/chat/send", s.handleChatSend).Methods(http.MethodPost)
	s.router.HandleFunc("/chat/history/{conversation_id}", s.handleChatHistory).Methods(http.MethodGet)
	s.router.HandleFunc("/dsl/content", s.handleDSLGet).Methods(http.MethodGet)
	s.router.HandleFunc("/dsl/content", s.handleDSLUpdate).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

type chatRequest struct {
	Query          string `json:"query"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Query == "" {
		respondError(w, http.StatusBadRequest, "query is required")
		return
	}

	ctx := r.Context()
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	var history string
	if s.store != nil {
		if err := s.store.EnsureConversation(ctx, conversationID, ""); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if err := s.store.AppendMessage(ctx, conversationID, "user", req.Query); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		var err error
		if history, err = s.store.HistoryString(ctx, conversationID, historyLimit); err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	s.mu.RLock()
	graph := s.graph
	s.mu.RUnlock()

	// Each turn runs against a fresh memory seeded with the request.
	mem, err := engine.Execute(ctx, graph, map[string]any{
		"query":           req.Query,
		"conversation_id": conversationID,
		"memory":          history,
	}, engine.WithWorkers(s.workers))
	if err != nil {
		log.Errorf("workflow execution failed: %v", err)
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	answer := noAnswer
	if text, ok := mem.Get(s.answerNode + "." + s.answerField).(string); ok && text != "" {
		answer = text
	}

	if s.store != nil {
		if err := s.store.AppendMessage(ctx, conversationID, "assistant", answer); err != nil {
			log.Errorf("failed to persist assistant message: %v", err)
		}
	}

	respondJSON(w, http.StatusOK, chatResponse{
		ConversationID: conversationID,
		Response:       answer,
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusServiceUnavailable, "persistence is disabled")
		return
	}
	conversationID := mux.Vars(r)["conversation_id"]
	history, err := s.store.History(r.Context(), conversationID, historyLimit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []storage.Message{}
	}
	respondJSON(w, http.StatusOK, history)
}

func (s *Server) handleDSLGet(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	raw := s.raw
	s.mu.RUnlock()
	respondJSON(w, http.StatusOK, map[string]string{"content": raw})
}

type dslUpdateRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleDSLUpdate(w http.ResponseWriter, r *http.Request) {
	var req dslUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	// Validate before touching the running workflow or the file.
	graph, err := s.parser.ParseString(req.Content)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid DSL: %v", err))
		return
	}
	if err := os.WriteFile(s.dslPath, []byte(req.Content), 0o644); err != nil {
		respondError(w, http.StatusInternalServerError, fmt.Sprintf("persist DSL: %v", err))
		return
	}

	s.mu.Lock()
	s.graph = graph
	s.raw = req.Content
	s.mu.Unlock()

	log.Infof("reloaded workflow %s from update", graph.ID)
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "DSL updated and reloaded",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	loaded := s.graph != nil
	s.mu.RUnlock()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"workflow_loaded": loaded,
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Debugf("%s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Errorf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
