// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/ragchat-tui/internal/session"
	"github.com/jeranaias/ragchat-tui/internal/transport"
	"github.com/jeranaias/ragchat-tui/internal/ui/chat"
	"github.com/jeranaias/ragchat-tui/internal/ui/components"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
)

func newTUICommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "tui",
		Short:       "Open the full-screen chat (default)",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationFullScreen: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), a)
		},
	}
}

// programRef lets the transport and store be built before the program they
// post into. Messages sent before the program exists are dropped.
type programRef struct {
	mu sync.RWMutex
	p  *tea.Program
}

func (r *programRef) set(p *tea.Program) {
	r.mu.Lock()
	r.p = p
	r.mu.Unlock()
}

func (r *programRef) Send(msg tea.Msg) {
	r.mu.RLock()
	p := r.p
	r.mu.RUnlock()
	if p != nil {
		p.Send(msg)
	}
}

func runTUI(ctx context.Context, a *app) error {
	ref := &programRef{}
	cs, err := a.openSession(sessionOptions{
		Greeting: a.cfg.Greeting(session.DefaultGreeting),
		OnState:  chat.StateNotifier(ref),
	})
	if err != nil {
		return err
	}
	defer cs.Close()

	theme := styles.NewTheme(a.cfg.UI.Theme)
	md, err := components.NewMarkdownRenderer(theme.GlamourStyle(), components.DefaultMarkdownCacheSize)
	if err != nil {
		return err
	}
	m := chat.New(chat.Config{
		Store:         cs.Store,
		Theme:         theme,
		Markdown:      md,
		Title:         a.backendLabel(),
		InitialState:  cs.Transport.State(),
		ShowDocuments: a.cfg.UI.ShowDocuments,
		ShowMetrics:   a.cfg.UI.ShowMetrics,
		Logger:        a.logger,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	ref.set(p)
	post := chat.ProgramPoster(ref)
	cs.Store.Attach(cs.Transport, post)
	cs.Watch(a.cfgPath, post)

	// The first dial can take the whole dial timeout; the screen is up and
	// shows "connecting" meanwhile.
	go func() {
		if err := cs.Transport.Connect(ctx); err != nil && !errors.Is(err, transport.ErrClosed) {
			a.logger.Warn("CONNECT_FAILED", zap.String("backend", a.backendLabel()), zap.Error(err))
		}
	}()

	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
