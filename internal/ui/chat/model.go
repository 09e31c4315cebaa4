// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/jeranaias/ragchat-tui/internal/session"
	"github.com/jeranaias/ragchat-tui/internal/transport"
	"github.com/jeranaias/ragchat-tui/internal/ui/components"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/upload"
)

// =============================================================================
// MODEL
// =============================================================================

// Config configures a chat Model.
type Config struct {
	Store    *session.Store
	Theme    *styles.Theme
	Markdown *components.MarkdownRenderer

	// Title is shown in the header, e.g. the backend URL.
	Title string

	// InitialState seeds the status bar until the first StateMsg.
	InitialState transport.State

	ShowDocuments bool
	ShowMetrics   bool

	Logger *zap.Logger

	// collect resolves /upload arguments; swapped in tests.
	collect func([]string) ([]upload.File, error)
}

// Model is the chat screen.
type Model struct {
	store  *session.Store
	theme  *styles.Theme
	keys   KeyMap
	logger *zap.Logger
	title  string

	viewport viewport.Model
	input    textinput.Model
	spinner  components.Spinner

	messages *components.MessageView
	docs     *components.DocumentPanel
	progress *components.AgentProgress
	status   *components.StatusBar

	snap     session.Snapshot
	showDocs bool
	notice   string

	width  int
	height int
	ready  bool

	collect func([]string) ([]upload.File, error)
}

// New creates the chat model.
func New(cfg Config) Model {
	if cfg.Theme == nil {
		cfg.Theme = styles.NewTheme(styles.ThemeAuto)
	}
	if cfg.Markdown == nil {
		md, err := components.NewMarkdownRenderer(cfg.Theme.GlamourStyle(), 0)
		if err != nil {
			panic(err)
		}
		cfg.Markdown = md
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.collect == nil {
		cfg.collect = upload.Collect
	}
	if cfg.Title == "" {
		cfg.Title = "ragchat"
	}

	input := textinput.New()
	input.Prompt = "> "
	input.PromptStyle = cfg.Theme.InputPrompt
	input.Placeholder = "Ask about your documents, or /help"
	input.PlaceholderStyle = cfg.Theme.InputPlaceholder
	input.Focus()

	messages := components.NewMessageView(cfg.Theme, cfg.Markdown)
	messages.ShowMetrics = cfg.ShowMetrics

	m := Model{
		store:    cfg.Store,
		theme:    cfg.Theme,
		keys:     DefaultKeyMap(),
		logger:   cfg.Logger.With(zap.String("component", "tui")),
		title:    cfg.Title,
		viewport: viewport.New(80, 20),
		input:    input,
		spinner:  components.NewSpinner(cfg.Theme, "Thinking"),
		messages: messages,
		docs:     components.NewDocumentPanel(cfg.Theme),
		progress: components.NewAgentProgress(cfg.Theme),
		status:   components.NewStatusBar(cfg.Theme),
		showDocs: cfg.ShowDocuments,
		width:    80,
		height:   24,
		collect:  cfg.collect,
	}
	m.status.State = cfg.InitialState
	m.refresh()
	return m
}

// =============================================================================
// BUBBLE TEA INTERFACE
// =============================================================================

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles one message.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.renderLog()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case ApplyMsg:
		if msg.Apply != nil {
			msg.Apply()
		}
		return m, m.refresh()

	case StateMsg:
		m.status.State = msg.State
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.spinner.IsActive() {
			m.renderLog()
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// INPUT HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.ToggleDocs):
		m.toggleDocs()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.viewport.LineUp(1)
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.viewport.LineDown(1)
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	case key.Matches(msg, m.keys.Home):
		m.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.End):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit routes the input line to a slash command or the store. Rejected
// queries keep their text so nothing typed is lost.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := m.input.Value()
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return m, nil
	}

	if strings.HasPrefix(trimmed, "/") {
		m.input.Reset()
		cmd := m.runCommand(trimmed)
		return m, tea.Batch(cmd, m.refresh())
	}

	if m.snap.AwaitingResponse {
		m.setNotice(styles.RenderWarning("Wait for the current answer before asking again."))
		return m, nil
	}
	if m.store.Submit(text) {
		m.input.Reset()
		m.setNotice("")
	}
	return m, m.refresh()
}

func (m *Model) toggleDocs() {
	m.showDocs = !m.showDocs
	m.layout()
	m.renderLog()
}

// =============================================================================
// STATE SYNC
// =============================================================================

// refresh copies the store state into the view and starts or stops the
// spinner to match.
func (m *Model) refresh() tea.Cmd {
	m.snap = m.store.Snapshot()

	m.docs.SetDocuments(m.snap.Documents)
	m.progress.SetSteps(m.snap.Steps)
	m.status.ModelLabel = m.snap.Model.Label()
	m.status.StrategyLabel = m.snap.RAG.Label()
	m.status.AwaitingResponse = m.snap.AwaitingResponse
	m.status.AwaitingUpload = m.snap.AwaitingUpload
	m.status.DocumentCount = len(m.snap.Documents)

	var cmd tea.Cmd
	if m.snap.AwaitingResponse {
		cmd = m.spinner.Start()
	} else {
		m.spinner.Stop()
	}

	m.renderLog()
	return cmd
}

func (m *Model) setNotice(text string) {
	m.notice = text
	m.layout()
}

// Snapshot returns the state the view last rendered.
func (m Model) Snapshot() session.Snapshot {
	return m.snap
}

// ShowingDocuments reports whether the document panel is open.
func (m Model) ShowingDocuments() bool {
	return m.showDocs
}

// Notice returns the current command feedback line.
func (m Model) Notice() string {
	return m.notice
}
