//
// Tencent is pleased to support the open source community by making trpc-flow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-flow-go is licensed under the Apache License Version 2.0.
//
//

package storage

import (
	"time"
)

// workflowModel stores a named workflow definition.
type workflowModel struct {
	ID            string    `gorm:"type:varchar(64);primaryKey"`
	Name          string    `gorm:"type:varchar(255);not null"`
	DSLDefinition []byte    `gorm:"type:mediumblob;not null"` // YAML document
	CreatedAt     time.Time `gorm:"not null"`
}

// TableName specifies the table name for workflowModel.
func (workflowModel) TableName() string {
	return "workflows"
}

// workflowRunModel records one execution of a workflow and its final memory.
type workflowRunModel struct {
	ID           string    `gorm:"type:varchar(64);primaryKey"`
	WorkflowID   string    `gorm:"type:varchar(64);not null;index:idx_run_workflow"`
	Status       string    `gorm:"type:varchar(32);not null"`
	GlobalMemory []byte    `gorm:"type:mediumblob"` // JSON encoded memory snapshot
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

// TableName specifies the table name for workflowRunModel.
func (workflowRunModel) TableName() string {
	return "workflow_runs"
}

// conversationModel groups chat messages under one conversation ID.
type conversationModel struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	UserID    string    `gorm:"type:varchar(255)"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName specifies the table name for conversationModel.
func (conversationModel) TableName() string {
	return "conversations"
}

// messageModel stores a single chat message. The auto-increment key doubles
// as the insertion order used for history retrieval.
type messageModel struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	ConversationID string    `gorm:"type:varchar(64);not null;index:idx_msg_conversation"`
	Role           string    `gorm:"type:varchar(32);not null"`
	Content        string    `gorm:"type:text;not null"`
	CreatedAt      time.Time `gorm:"not null"`
}

// TableName specifies the table name for messageModel.
func (messageModel) TableName() string {
	return "messages"
}
