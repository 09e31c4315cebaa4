// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/upload"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// Command describes one slash command.
type Command struct {
	Name  string
	Usage string
	Desc  string
}

// Commands lists the slash commands in help order.
var Commands = []Command{
	{"/upload", "/upload <file.pdf>...", "upload PDF documents"},
	{"/model", "/model <provider> [name]", "switch the generation model"},
	{"/strategy", "/strategy <name>", "switch the retrieval strategy"},
	{"/topk", "/topk <n>", "results per query (hybrid only)"},
	{"/hybrid", "/hybrid on|off", "sparse+dense search (hybrid only)"},
	{"/docs", "/docs", "toggle the document panel"},
	{"/help", "/help", "show this help"},
	{"/quit", "/quit", "exit"},
}

// runCommand executes one command line and leaves feedback in the notice.
func (m *Model) runCommand(line string) tea.Cmd {
	fields := strings.Fields(line)
	name, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch name {
	case "/upload":
		err = m.cmdUpload(args)
	case "/model", "/strategy", "/topk", "/hybrid":
		err = m.applyConfig(name, args)
	case "/docs":
		m.setNotice("")
		m.toggleDocs()
	case "/help", "/?":
		m.setNotice(HelpText())
	case "/quit", "/exit":
		return tea.Quit
	default:
		err = fmt.Errorf("unknown command %s (try /help)", name)
	}

	if err != nil {
		m.logger.Debug("COMMAND_REJECTED", zap.String("command", name), zap.Error(err))
		m.setNotice(styles.RenderError(err.Error()))
	}
	return nil
}

func (m *Model) cmdUpload(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: /upload <file.pdf>...")
	}
	if m.snap.AwaitingUpload {
		return fmt.Errorf("an upload is already in progress")
	}
	files, err := m.collect(args)
	if err != nil {
		return err
	}
	if !m.store.UploadFiles(files) {
		return fmt.Errorf("no files to upload")
	}
	m.setNotice(styles.RenderInfo("Uploading " + strings.Join(upload.Names(files), ", ")))
	return nil
}

// applyConfig hands a whole replacement to the store.
func (m *Model) applyConfig(name string, args []string) error {
	mc, rc, _, err := ConfigCommand(name, args, m.snap.Model, m.snap.RAG)
	if err != nil {
		return err
	}
	if err := m.store.SetConfig(mc, rc); err != nil {
		return err
	}
	m.setNotice(styles.RenderSuccess("Using " + mc.Label() + ", " + rc.Label()))
	return nil
}

// ConfigCommand resolves /model, /strategy, /topk and /hybrid against the
// current settings and returns the full replacement. ok is false for any
// other command name.
func ConfigCommand(name string, args []string, mc model.ModelConfig, rc model.RAGConfig) (model.ModelConfig, model.RAGConfig, bool, error) {
	var err error
	switch strings.ToLower(name) {
	case "/model":
		mc, err = modelCommand(args, mc)
	case "/strategy":
		rc, err = strategyCommand(args, rc)
	case "/topk":
		rc, err = topKCommand(args, rc)
	case "/hybrid":
		rc, err = hybridCommand(args, rc)
	default:
		return mc, rc, false, nil
	}
	return mc, rc, true, err
}

func modelCommand(args []string, mc model.ModelConfig) (model.ModelConfig, error) {
	if len(args) == 0 || len(args) > 2 {
		return mc, fmt.Errorf("usage: /model <provider> [name]; providers: %s", providerList())
	}
	p, err := model.ParseProvider(args[0])
	if err != nil {
		return mc, err
	}
	mc = mc.WithProvider(p)
	if len(args) == 2 {
		mc = mc.WithModel(args[1])
	}
	return mc, nil
}

func strategyCommand(args []string, rc model.RAGConfig) (model.RAGConfig, error) {
	if len(args) != 1 {
		return rc, fmt.Errorf("usage: /strategy <name>; strategies: %s", strategyList())
	}
	s, err := model.ParseStrategy(args[0])
	if err != nil {
		return rc, err
	}
	return rc.WithStrategy(s), nil
}

func topKCommand(args []string, rc model.RAGConfig) (model.RAGConfig, error) {
	if len(args) != 1 {
		return rc, fmt.Errorf("usage: /topk <n>")
	}
	if !rc.ExposesHybridOptions() {
		return rc, fmt.Errorf("top-k applies to the hybrid strategy only")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return rc, fmt.Errorf("top-k %q: not a number", args[0])
	}
	rc.TopK = n
	return rc, nil
}

func hybridCommand(args []string, rc model.RAGConfig) (model.RAGConfig, error) {
	if len(args) != 1 {
		return rc, fmt.Errorf("usage: /hybrid on|off")
	}
	if !rc.ExposesHybridOptions() {
		return rc, fmt.Errorf("hybrid search applies to the hybrid strategy only")
	}
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		rc.UseHybridSearch = true
	case "off", "false", "0":
		rc.UseHybridSearch = false
	default:
		return rc, fmt.Errorf("usage: /hybrid on|off")
	}
	return rc, nil
}

// =============================================================================
// HELP
// =============================================================================

// HelpText lists the slash commands.
func HelpText() string {
	var b strings.Builder
	b.WriteString("Commands:")
	for _, c := range Commands {
		fmt.Fprintf(&b, "\n  %-26s %s", c.Usage, c.Desc)
	}
	return b.String()
}

func providerList() string {
	names := make([]string, len(model.Providers))
	for i, p := range model.Providers {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

func strategyList() string {
	names := make([]string, len(model.Strategies))
	for i, s := range model.Strategies {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
