// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for the chat log, retrieved
// documents, agent progress and backend configuration.
//
// This package defines the core domain types used throughout the application.
// It holds no I/O; the session package owns mutation of these values.
//
// # Key Types
//
//   - Message: Single chat entry with role, content, status and metadata
//   - Document: One retrieved page with its relevance score
//   - AgentStep: One pipeline step reported by the backend for a query
//   - ModelConfig: Provider, model name and sampling parameters
//   - RAGConfig: Retrieval strategy and its tuning knobs
//   - Transcript: A stored conversation, used by history and export
//
// # Usage
//
// Create a message and advance its status:
//
//	msg := model.NewAgentMessage("retriever", "searching", "Looking up pages")
//	msg.Advance(model.StatusComplete)
//
// Switch providers with a whole-value replacement:
//
//	cfg := model.DefaultModelConfig().WithProvider(model.ProviderOllama)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
package model
