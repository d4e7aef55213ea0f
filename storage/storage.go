//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

// Package storage persists workflow definitions, run records, and chat
// conversations behind a GORM-backed service.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Workflow run statuses.
const (
	StatusRunning   = "RUNNING"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// DriverType represents the database driver type.
type DriverType string

const (
	// DriverMySQL represents MySQL.
	DriverMySQL DriverType = "mysql"
	// DriverSQLite represents SQLite, mainly for local runs and tests.
	DriverSQLite DriverType = "sqlite"
)

// Option configures the storage service.
type Option func(*options)

type options struct {
	dsn    string
	driver DriverType
	config *gorm.Config
}

// WithDSN sets the database connection string. Required.
func WithDSN(dsn string) Option {
	return func(o *options) { o.dsn = dsn }
}

// WithDriver selects the database driver. Defaults to MySQL.
func WithDriver(driver DriverType) Option {
	return func(o *options) { o.driver = driver }
}

// WithGORMConfig overrides the GORM configuration. Defaults to a silent
// logger.
func WithGORMConfig(config *gorm.Config) Option {
	return func(o *options) { o.config = config }
}

// Message is one chat history entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Service provides workflow and conversation persistence.
type Service struct {
	db *gorm.DB
}

// Open connects to the database, migrates the schema, and returns the
// service.
func Open(opts ...Option) (*Service, error) {
	o := options{driver: DriverMySQL}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dsn == "" {
		return nil, errors.New("storage: DSN is empty")
	}
	if o.config == nil {
		o.config = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	}

	var dialector gorm.Dialector
	switch o.driver {
	case DriverMySQL:
		dialector = mysql.Open(o.dsn)
	case DriverSQLite:
		dialector = sqlite.Open(o.dsn)
	default:
		return nil, fmt.Errorf("storage: unsupported driver type: %s", o.driver)
	}

	db, err := gorm.Open(dialector, o.config)
	if err != nil {
		return nil, fmt.Errorf("storage: open connection: %w", err)
	}
	if err := db.AutoMigrate(
		&workflowModel{},
		&workflowRunModel{},
		&conversationModel{},
		&messageModel{},
	); err != nil {
		return nil, fmt.Errorf("storage: migrate schema: %w", err)
	}
	return &Service{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveWorkflow persists a workflow definition and returns its generated ID.
func (s *Service) SaveWorkflow(ctx context.Context, name string, definition []byte) (string, error) {
	workflow := workflowModel{
		ID:            uuid.NewString(),
		Name:          name,
		DSLDefinition: definition,
	}
	if err := s.db.WithContext(ctx).Create(&workflow).Error; err != nil {
		return "", fmt.Errorf("storage: save workflow: %w", err)
	}
	return workflow.ID, nil
}

// CreateRun records the start of a workflow execution and returns the run ID.
func (s *Service) CreateRun(ctx context.Context, workflowID string) (string, error) {
	run := workflowRunModel{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     StatusRunning,
	}
	if err := s.db.WithContext(ctx).Create(&run).Error; err != nil {
		return "", fmt.Errorf("storage: create run: %w", err)
	}
	return run.ID, nil
}

// FinishRun records the terminal status of a run together with the final
// memory snapshot.
func (s *Service) FinishRun(ctx context.Context, runID, status string, snapshot map[string]any) error {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("storage: encode memory snapshot: %w", err)
	}
	result := s.db.WithContext(ctx).
		Model(&workflowRunModel{}).
		Where("id = ?", runID).
		Updates(map[string]any{"status": status, "global_memory": encoded})
	if result.Error != nil {
		return fmt.Errorf("storage: finish run: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("storage: run %s not found", runID)
	}
	return nil
}

// EnsureConversation creates the conversation row if it does not exist yet.
func (s *Service) EnsureConversation(ctx context.Context, conversationID, userID string) error {
	conversation := conversationModel{ID: conversationID, UserID: userID}
	err := s.db.WithContext(ctx).
		Where(&conversationModel{ID: conversationID}).
		FirstOrCreate(&conversation).Error
	if err != nil {
		return fmt.Errorf("storage: ensure conversation: %w", err)
	}
	return nil
}

// AppendMessage adds a message to a conversation.
func (s *Service) AppendMessage(ctx context.Context, conversationID, role, content string) error {
	message := messageModel{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return fmt.Errorf("storage: append message: %w", err)
	}
	return nil
}

// History returns the most recent messages of a conversation in
// chronological order.
func (s *Service) History(ctx context.Context, conversationID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []messageModel
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("storage: load history: %w", err)
	}

	messages := make([]Message, len(rows))
	for i, row := range rows {
		messages[len(rows)-1-i] = Message{Role: row.Role, Content: row.Content}
	}
	return messages, nil
}

// HistoryString renders recent history as "role: content" lines for template
// consumption.
func (s *Service) HistoryString(ctx context.Context, conversationID string, limit int) (string, error) {
	messages, err := s.History(ctx, conversationID, limit)
	if err != nil {
		return "", err
	}
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = fmt.Sprintf("%s: %s", m.Role, m.Content)
	}
	return strings.Join(lines, "\n"), nil
}
