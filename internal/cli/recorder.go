// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/storage"
)

const historyTimeout = 5 * time.Second

// recorder saves one session into the history database. The conversation
// row is created with the first saved message, so sessions where nothing
// happens leave no trace. A nil recorder saves nothing.
type recorder struct {
	hist   *storage.History
	logger *zap.Logger

	mu sync.Mutex
	id string
	mc model.ModelConfig
	rc model.RAGConfig
}

func newRecorder(hist *storage.History, mc model.ModelConfig, rc model.RAGConfig, logger *zap.Logger) *recorder {
	return &recorder{
		hist:   hist,
		logger: logger.With(zap.String("component", "history")),
		mc:     mc,
		rc:     rc,
	}
}

// Persist saves msg, or updates its status when it was saved before.
func (r *recorder) Persist(msg model.Message) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()

	if r.id == "" {
		id, err := r.hist.Begin(ctx, r.mc, r.rc)
		if err != nil {
			r.logger.Warn("HISTORY_BEGIN_FAILED", zap.Error(err))
			return
		}
		r.id = id
	}
	if err := r.hist.Append(ctx, r.id, msg); err != nil {
		r.logger.Warn("HISTORY_APPEND_FAILED", zap.String("message", msg.ID), zap.Error(err))
	}
}

// ConfigChanged records the settings used from now on.
func (r *recorder) ConfigChanged(mc model.ModelConfig, rc model.RAGConfig) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.mc, r.rc = mc, rc
	if r.id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := r.hist.UpdateConfig(ctx, r.id, mc, rc); err != nil {
		r.logger.Warn("HISTORY_CONFIG_FAILED", zap.Error(err))
	}
}

// ID returns the saved conversation id.
func (r *recorder) ID() string {
	if r == nil {
		return ""
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

func (r *recorder) Close() error {
	if r == nil {
		return nil
	}
	return r.hist.Close()
}
