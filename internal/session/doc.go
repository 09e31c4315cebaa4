// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session holds the client-side state of one chat session.
//
// A Store keeps the ordered message log, the latest retrieved documents,
// the agent steps of the current query, the awaiting-response and
// awaiting-upload flags and the active model and retrieval configuration.
// Every change is either a user intent (Submit, UploadFiles, SetConfig) or a
// decoded inbound event.
//
// # Key Types
//
//   - Store: session state and its reducers
//   - Snapshot: read-only copy handed to views
//   - Poster: moves a decoded event onto the goroutine that owns the view
//
// # Usage
//
// Wire a store to a transport, applying events on the transport goroutine:
//
//	store := session.New(t, session.Config{Greeting: session.DefaultGreeting})
//	store.Attach(t, session.Direct)
//	store.Submit("What does section 3 cover?")
//
// In a bubbletea program, post events through the program instead:
//
//	store.Attach(t, chat.ProgramPoster(program))
package session
