// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragchat-tui/internal/session"
	"github.com/jeranaias/ragchat-tui/internal/transport"
)

// ApplyMsg carries one store mutation onto the program goroutine.
type ApplyMsg struct {
	Apply func()
}

// StateMsg reports a transport connection state change.
type StateMsg struct {
	State transport.State
}

// Sender is the part of tea.Program used to post messages.
type Sender interface {
	Send(msg tea.Msg)
}

// ProgramPoster returns a Poster that runs mutations inside Update.
func ProgramPoster(p Sender) session.Poster {
	return func(apply func()) {
		p.Send(ApplyMsg{Apply: apply})
	}
}

// StateNotifier returns an OnState callback that forwards to the program.
func StateNotifier(p Sender) func(transport.State) {
	return func(s transport.State) {
		p.Send(StateMsg{State: s})
	}
}
