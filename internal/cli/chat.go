// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/session"
	"github.com/jeranaias/ragchat-tui/internal/ui/chat"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/upload"
)

func newChatCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Chat line by line in the current terminal",
		Long: `Start a line-oriented chat. Answers, agent steps and upload results are
printed below the prompt. Slash commands work as in the full-screen chat;
type /help to list them. Ctrl+D or /quit exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), a)
		},
	}
}

// lineReader is the part of liner.State the loop needs.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

func runChat(ctx context.Context, a *app) error {
	changed, notify := notifier()
	cs, err := a.openSession(sessionOptions{
		Greeting: a.cfg.Greeting(session.DefaultGreeting),
		OnChange: notify,
	})
	if err != nil {
		return err
	}
	defer cs.Close()

	cs.Store.Attach(cs.Transport, session.Direct)
	cs.Watch(a.cfgPath, session.Direct)

	r := &repl{
		store:   cs.Store,
		changed: changed,
		print:   newPrinter(a.out, a.cfg.UI.Theme, a.cfg.UI.ShowMetrics),
		collect: upload.Collect,
		logger:  a.logger,
	}
	if err := cs.Transport.Connect(ctx); err != nil {
		r.print.Notice(styles.RenderWarning(fmt.Sprintf("%s unreachable, retrying in the background", a.backendLabel())))
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := inputHistoryPath()
	if f, err := os.Open(histPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if histPath == "" {
			return
		}
		if f, err := os.Create(histPath); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	return r.run(ctx, line)
}

func inputHistoryPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		return ""
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return ""
	}
	return filepath.Join(dir, "chat_history")
}

// =============================================================================
// LOOP
// =============================================================================

// repl reads lines, turns them into store intents and prints what changed.
type repl struct {
	store   *session.Store
	changed <-chan struct{}
	print   *printer
	collect func([]string) ([]upload.File, error)
	logger  *zap.Logger

	// seen maps message ids to the status they were printed with.
	seen      map[string]model.Status
	seenSteps map[string]model.StepStatus
}

var errQuit = errors.New("quit")

func (r *repl) run(ctx context.Context, in lineReader) error {
	r.flush(r.store.Snapshot())
	r.print.Notice(styles.RenderInfo("Type a question, /help for commands, Ctrl+D to exit."))

	for {
		text, err := in.Prompt("> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		// Output that arrived while idle, such as an upload result.
		r.flush(r.store.Snapshot())

		if strings.TrimSpace(text) == "" {
			continue
		}
		in.AppendHistory(text)

		if strings.HasPrefix(strings.TrimSpace(text), "/") {
			if err := r.command(ctx, strings.TrimSpace(text)); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				if ctx.Err() != nil {
					return nil
				}
				r.logger.Debug("COMMAND_REJECTED", zap.Error(err))
				r.print.Notice(styles.RenderError(err.Error()))
			}
			continue
		}

		if !r.store.Submit(text) {
			r.print.Notice(styles.RenderWarning("Still waiting for the previous answer"))
			continue
		}
		if _, err := waitFor(ctx, r.store, r.changed, func(s session.Snapshot) bool {
			return !s.AwaitingResponse
		}, r.flush); err != nil {
			return nil
		}
	}
}

// flush prints messages and agent steps not printed before. Pending agent
// messages are printed again once they settle.
func (r *repl) flush(s session.Snapshot) {
	if r.seen == nil {
		r.seen = make(map[string]model.Status)
		r.seenSteps = make(map[string]model.StepStatus)
	}
	for _, step := range s.Steps {
		if prev, ok := r.seenSteps[step.ID]; ok && prev == step.Status {
			continue
		}
		r.seenSteps[step.ID] = step.Status
		r.print.Step(step)
	}
	for _, msg := range s.Messages {
		prev, ok := r.seen[msg.ID]
		if ok && prev == msg.Status {
			continue
		}
		r.seen[msg.ID] = msg.Status
		if msg.Role == model.RoleUser {
			continue
		}
		r.print.Message(msg)
	}
}

// command runs one slash command. Uploads block until the backend answers.
func (r *repl) command(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	snap := r.store.Snapshot()
	mc, rc, ok, err := chat.ConfigCommand(name, args, snap.Model, snap.RAG)
	if ok {
		if err != nil {
			return err
		}
		if err := r.store.SetConfig(mc, rc); err != nil {
			return err
		}
		r.print.Notice(styles.RenderSuccess("Using " + mc.Label() + ", " + rc.Label()))
		return nil
	}

	switch name {
	case "/upload":
		return r.upload(ctx, args)
	case "/docs":
		r.print.Documents(snap.Documents)
	case "/help", "/?":
		r.print.Notice(chat.HelpText())
	case "/quit", "/exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %s (try /help)", name)
	}
	return nil
}

func (r *repl) upload(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /upload <file.pdf>...")
	}
	files, err := r.collect(args)
	if err != nil {
		return err
	}
	if !r.store.UploadFiles(files) {
		return fmt.Errorf("no files to upload")
	}
	r.print.Notice(styles.RenderInfo("Uploading " + strings.Join(upload.Names(files), ", ")))
	_, err = waitFor(ctx, r.store, r.changed, func(s session.Snapshot) bool {
		return !s.AwaitingUpload
	}, r.flush)
	return err
}
