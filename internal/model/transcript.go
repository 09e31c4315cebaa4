// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// Transcript is a stored conversation: the chat log of one session plus the
// configuration it ran with.
type Transcript struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Model ModelConfig `json:"model"`
	RAG   RAGConfig   `json:"rag"`

	Messages []Message `json:"messages"`
}

// TranscriptMeta is the listing view of a transcript.
type TranscriptMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// TitleFrom derives a title from the first user message.
func TitleFrom(messages []Message) string {
	for _, m := range messages {
		if m.Role == RoleUser {
			return m.Preview(50)
		}
	}
	return "Untitled"
}
