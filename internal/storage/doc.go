// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides transcript persistence for ragchat.
//
// Every interactive session becomes one conversation row; each message is
// written as it enters the chat log, and later status changes of agent
// messages update the stored row in place.
//
// # Key Types
//
//   - History: SQLite-backed transcript store
//   - model.Transcript: A loaded conversation with its messages
//   - model.TranscriptMeta: Lightweight metadata for listing
//
// # Usage
//
// Record a session:
//
//	h, err := storage.Open(path, 200)
//	id, err := h.Begin(ctx, modelCfg, ragCfg)
//	err = h.Append(ctx, id, msg)
//
// List and load conversations:
//
//	metas, err := h.List(ctx)
//	tr, err := h.Load(ctx, metas[0].ID)
//
// # Storage Location
//
// Transcripts are stored in ~/.ragchat/history.db.
package storage
