// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/session"
)

// DefaultAskTimeout bounds the wait for an answer.
const DefaultAskTimeout = 2 * time.Minute

type askOptions struct {
	timeout  time.Duration
	json     bool
	raw      bool
	provider string
	model    string
	strategy string
	topK     int
}

func newAskCommand(a *app) *cobra.Command {
	var o askOptions
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the answer",
		Long: `Send a single question to the backend and print the answer.

Markdown is rendered when stdout is a terminal and written as-is otherwise.
With --json the answer, its metadata and the retrieved documents are
printed as one JSON object.`,
		Example: `  ragchat ask "What does section 3 cover?"
  ragchat ask --strategy hybrid --top-k 10 "Compare Q2 and Q3 revenue"
  ragchat ask --json "Who signed the contract?" | jq .answer`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), a, strings.Join(args, " "), o)
		},
	}
	f := cmd.Flags()
	f.DurationVar(&o.timeout, "timeout", DefaultAskTimeout, "how long to wait for the answer")
	f.BoolVar(&o.json, "json", false, "print the answer as JSON")
	f.BoolVar(&o.raw, "raw", false, "print markdown without rendering it")
	f.StringVarP(&o.provider, "provider", "p", "", "model provider for this question")
	f.StringVarP(&o.model, "model", "m", "", "model name for this question")
	f.StringVarP(&o.strategy, "strategy", "s", "", "retrieval strategy for this question")
	f.IntVarP(&o.topK, "top-k", "k", 0, "results per query (hybrid strategy)")
	return cmd
}

// askResult is the --json output.
type askResult struct {
	Answer    string            `json:"answer"`
	Status    model.Status      `json:"status,omitempty"`
	Metadata  *model.Metadata   `json:"metadata,omitempty"`
	Documents []model.Document  `json:"documents,omitempty"`
	Steps     []model.AgentStep `json:"steps,omitempty"`
}

func runAsk(ctx context.Context, a *app, question string, o askOptions) error {
	changed, notify := notifier()
	cs, err := a.openSession(sessionOptions{OnChange: notify})
	if err != nil {
		return err
	}
	defer cs.Close()

	cs.Store.Attach(cs.Transport, session.Direct)
	if err := cs.Transport.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", a.backendLabel(), err)
	}

	mc, rc, err := overrideSettings(a.cfg.Model, a.cfg.RAG, o)
	if err != nil {
		return err
	}
	if err := cs.Store.SetConfig(mc, rc); err != nil {
		return err
	}

	if !cs.Store.Submit(question) {
		return errors.New("question is empty")
	}

	waitCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	snap, err := waitFor(waitCtx, cs.Store, changed, func(s session.Snapshot) bool {
		return !s.AwaitingResponse
	}, nil)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("no answer within %s", o.timeout)
	}
	if err != nil {
		return err
	}

	answer, ok := lastAnswer(snap.Messages)
	if !ok {
		return errors.New("the backend sent no answer")
	}

	if o.json {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(askResult{
			Answer:    answer.Content,
			Status:    answer.Status,
			Metadata:  answer.Metadata,
			Documents: snap.Documents,
			Steps:     snap.Steps,
		}); err != nil {
			return err
		}
	} else if answer.Status != model.StatusError {
		printAnswer(a, answer, o.raw)
	}

	if answer.Status == model.StatusError {
		return errors.New(answer.Content)
	}
	return nil
}

// overrideSettings applies the per-question flags.
func overrideSettings(mc model.ModelConfig, rc model.RAGConfig, o askOptions) (model.ModelConfig, model.RAGConfig, error) {
	if o.provider != "" {
		p, err := model.ParseProvider(o.provider)
		if err != nil {
			return mc, rc, err
		}
		mc = mc.WithProvider(p)
	}
	if o.model != "" {
		mc = mc.WithModel(o.model)
	}
	if o.strategy != "" {
		s, err := model.ParseStrategy(o.strategy)
		if err != nil {
			return mc, rc, err
		}
		rc = rc.WithStrategy(s)
	}
	if o.topK != 0 {
		if !rc.ExposesHybridOptions() {
			return mc, rc, errors.New("--top-k applies to the hybrid strategy only")
		}
		rc.TopK = o.topK
	}
	return mc, rc, nil
}

// printAnswer writes the answer, rendering markdown only on a terminal so
// piped output stays plain.
func printAnswer(a *app, msg model.Message, raw bool) {
	content := msg.Content + "\n"
	if !raw && isTerminal(a.out) {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(terminalWidth(a.out)-4),
		)
		if err == nil {
			if rendered, err := r.Render(msg.Content); err == nil {
				content = rendered
			}
		}
	}
	fmt.Fprint(a.out, content)
	if md := plainMetadata(msg.Metadata); md != "" {
		fmt.Fprintln(a.out, md)
	}
}
