// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the Bubble Tea model for the ragchat TUI.
//
// The model owns no conversation state of its own. It reads snapshots from
// a session.Store and turns key presses into store intents. Transport
// events reach the store through ProgramPoster, which wraps each mutation
// in an ApplyMsg so it runs inside Update like any other message.
//
// # Key Types
//
//   - Model: the tea.Model with viewport, input line, document panel and
//     status bar
//   - KeyMap: keyboard bindings
//   - ApplyMsg, StateMsg: messages sent into the program from other goroutines
//
// # Usage
//
//	m := chat.New(chat.Config{Store: store, Theme: theme, Markdown: md})
//	p := tea.NewProgram(m, tea.WithAltScreen())
//	store.Attach(tr, chat.ProgramPoster(p))
//	_, err := p.Run()
//
// # Commands
//
//	/upload <file.pdf>...   upload documents
//	/model <provider> [name] switch the generation model
//	/strategy <name>        switch the retrieval strategy
//	/topk <n>               results per query (hybrid only)
//	/hybrid on|off          sparse+dense search (hybrid only)
//	/docs                   toggle the document panel
//	/help                   list commands
//	/quit                   exit
package chat
