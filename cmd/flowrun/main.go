//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package main implements the flowrun CLI: it loads a workflow document and
// either executes it once, drives an interactive chat loop, or serves the
// workflow over HTTP.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"trpc.group/trpc-go/trpc-flow-go/dsl"
	"trpc.group/trpc-go/trpc-flow-go/engine"
	"trpc.group/trpc-go/trpc-flow-go/log"
	"trpc.group/trpc-go/trpc-flow-go/memory"
	"trpc.group/trpc-go/trpc-flow-go/node"
	"trpc.group/trpc-go/trpc-flow-go/server"
	"trpc.group/trpc-go/trpc-flow-go/storage"
)

const (
	answerNode  = "end_node"
	answerField = "printed"
)

var (
	file     = flag.String("file", "examples/workflows/demo.yaml", "path to the workflow YAML file")
	noDB     = flag.Bool("no-db", false, "skip database persistence")
	chat     = flag.Bool("chat", false, "run in interactive chat mode")
	serve    = flag.Bool("serve", false, "serve the workflow over HTTP")
	addr     = flag.String("addr", "0.0.0.0:8090", "HTTP listen address for -serve")
	query    = flag.String("query", "Hello trpc-flow-go", "query passed to a single execution")
	workers  = flag.Int("workers", engine.DefaultWorkers, "engine worker pool size")
	dbDSN    = flag.String("db-dsn", os.Getenv("DB_DSN"), "database DSN (defaults to $DB_DSN)")
	dbDriver = flag.String("db-driver", "mysql", "database driver: mysql or sqlite")
	logLevel = flag.String("log-level", log.LevelInfo, "log level: debug, info, warn, error")
)

func main() {
	flag.Parse()
	log.SetLevel(*logLevel)

	store := openStore()
	if store != nil {
		defer store.Close()
	}

	if *serve {
		runServer(store)
		return
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatalf("read workflow file: %v", err)
	}
	graph, err := dsl.NewParser().WithRegistry(node.DefaultRegistry).Parse(raw)
	if err != nil {
		log.Fatalf("parse workflow: %v", err)
	}
	log.Infof("workflow: %s (v%s), %d nodes", graph.ID, graph.Version, len(graph.Nodes))

	var workflowID string
	if store != nil {
		if workflowID, err = store.SaveWorkflow(context.Background(), graph.ID, raw); err != nil {
			log.Warnf("persist workflow definition: %v", err)
		} else {
			log.Infof("persisted workflow definition (ID: %s)", workflowID)
		}
	}

	if *chat {
		chatLoop(graph, store)
		return
	}
	runOnce(graph, store, workflowID)
}

// openStore connects to the database unless persistence is disabled. A
// connection failure degrades to running without persistence.
func openStore() *storage.Service {
	if *noDB {
		return nil
	}
	if *dbDSN == "" {
		log.Warnf("no database DSN configured, running without persistence")
		return nil
	}
	store, err := storage.Open(
		storage.WithDSN(*dbDSN),
		storage.WithDriver(storage.DriverType(*dbDriver)),
	)
	if err != nil {
		log.Warnf("database initialization failed (%v), running without persistence", err)
		return nil
	}
	log.Infof("database initialized (%s)", *dbDriver)
	return store
}

func runOnce(graph *dsl.WorkflowGraph, store *storage.Service, workflowID string) {
	ctx := context.Background()

	var runID string
	if store != nil && workflowID != "" {
		var err error
		if runID, err = store.CreateRun(ctx, workflowID); err != nil {
			log.Warnf("create run record: %v", err)
		} else {
			log.Infof("created workflow run (ID: %s)", runID)
		}
	}

	mem := memory.New(map[string]any{memory.KeyInputs: map[string]any{
		"query": *query,
		"a":     10,
		"b":     20,
	}})
	eng, err := engine.New(graph, mem, engine.WithWorkers(*workers))
	if err != nil {
		log.Fatalf("build engine: %v", err)
	}

	start := time.Now()
	runErr := eng.Run(ctx)
	status := storage.StatusCompleted
	if runErr != nil {
		status = storage.StatusFailed
		log.Errorf("execution failed: %v", runErr)
	}
	log.Infof("execution finished in %.2fs", time.Since(start).Seconds())

	if store != nil && runID != "" {
		if err := store.FinishRun(ctx, runID, status, mem.Snapshot()); err != nil {
			log.Warnf("update run record: %v", err)
		}
	}

	encoded, err := json.MarshalIndent(mem.Snapshot(), "", "  ")
	if err != nil {
		log.Fatalf("encode final memory: %v", err)
	}
	fmt.Println("Final Memory State:")
	fmt.Println(string(encoded))

	if runErr != nil {
		os.Exit(1)
	}
}

func chatLoop(graph *dsl.WorkflowGraph, store *storage.Service) {
	ctx := context.Background()
	conversationID := uuid.NewString()
	fmt.Printf("Starting chat session: %s\n", conversationID)
	fmt.Println("Type 'exit' to quit.")

	if store != nil {
		if err := store.EnsureConversation(ctx, conversationID, ""); err != nil {
			log.Warnf("ensure conversation: %v", err)
			store = nil
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nUser: ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return
		}

		var history string
		if store != nil {
			if err := store.AppendMessage(ctx, conversationID, "user", input); err != nil {
				log.Warnf("persist user message: %v", err)
			}
			var err error
			if history, err = store.HistoryString(ctx, conversationID, 10); err != nil {
				log.Warnf("load history: %v", err)
			}
		}

		mem, err := engine.Execute(ctx, graph, map[string]any{
			"query":           input,
			"conversation_id": conversationID,
			"memory":          history,
		}, engine.WithWorkers(*workers))
		if err != nil {
			log.Errorf("workflow error: %v", err)
			continue
		}

		response := "..."
		if text, ok := mem.Get(answerNode + "." + answerField).(string); ok && text != "" {
			response = text
		}
		fmt.Printf("Bot: %s\n", response)

		if store != nil {
			if err := store.AppendMessage(ctx, conversationID, "assistant", response); err != nil {
				log.Warnf("persist assistant message: %v", err)
			}
		}
	}
}

func runServer(store *storage.Service) {
	opts := []server.Option{server.WithWorkers(*workers)}
	if store != nil {
		opts = append(opts, server.WithStore(store))
	}
	srv, err := server.New(*file, opts...)
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	httpServer := &http.Server{
		Addr:         *addr,
		Handler:      srv.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infof("workflow server listening on %s", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Infof("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Errorf("server shutdown: %v", err)
	}
}
