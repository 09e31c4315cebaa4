// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/logging"
	"github.com/jeranaias/ragchat-tui/internal/session"
	"github.com/jeranaias/ragchat-tui/internal/storage"
	"github.com/jeranaias/ragchat-tui/internal/transport"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	transport  string
	url        string
	logLevel   string
	noHistory  bool
}

// TransportFactory builds the backend connection for cfg.
type TransportFactory func(cfg *config.Config, opts transport.Options) (transport.Transport, error)

// app carries what one invocation shares between commands.
type app struct {
	flags globalFlags

	cfg *config.Config
	// cfgPath is the file cfg was read from, or "" for built-in defaults.
	cfgPath string

	logger   *zap.Logger
	closeLog func() error

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	newTransport TransportFactory
}

func newApp() *app {
	return &app{
		logger:       zap.NewNop(),
		in:           os.Stdin,
		out:          os.Stdout,
		errOut:       os.Stderr,
		newTransport: defaultTransport,
	}
}

// defaultTransport maps the [transport] section onto transport.New.
func defaultTransport(cfg *config.Config, opts transport.Options) (transport.Transport, error) {
	kind, err := transport.ParseKind(cfg.Transport.Kind)
	if err != nil {
		return nil, err
	}
	opts.ReconnectDelay = cfg.ReconnectDelay()
	opts.MaxRetries = cfg.Transport.MaxRetries
	opts.DialTimeout = cfg.DialTimeout()
	return transport.New(kind, cfg.Transport.URL, cfg.Endpoints(), opts)
}

func (a *app) bindOutput(cmd *cobra.Command) {
	a.in = cmd.InOrStdin()
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()
}

// setup loads the configuration, applies flag overrides and opens the log.
func (a *app) setup(cmd *cobra.Command) error {
	a.bindOutput(cmd)

	cfg, path, err := loadConfig(a.flags.configPath)
	if err != nil {
		return err
	}
	if err := a.applyFlags(cfg); err != nil {
		return err
	}
	a.cfg = cfg
	a.cfgPath = path
	config.SetGlobal(cfg)

	opts, err := logging.FromConfig(cfg)
	if err != nil {
		return err
	}
	if cmd.Annotations[annotationFullScreen] == "" {
		opts.Console = a.errOut
	}
	logger, closeLog, err := logging.New(opts)
	if err != nil {
		fmt.Fprintf(a.errOut, "Warning: logging disabled: %v\n", err)
		return nil
	}
	a.logger = logger
	a.closeLog = closeLog
	a.logger.Debug("STARTUP",
		zap.String("command", cmd.Name()),
		zap.String("version", Version),
		zap.String("config", path),
		zap.String("transport", cfg.Transport.Kind),
	)
	return nil
}

// applyFlags lays the global flags over the loaded file.
func (a *app) applyFlags(cfg *config.Config) error {
	if a.flags.transport != "" {
		kind, err := transport.ParseKind(a.flags.transport)
		if err != nil {
			return err
		}
		cfg.Transport.Kind = string(kind)
	}
	if a.flags.url != "" {
		cfg.Transport.URL = a.flags.url
	}
	if a.flags.logLevel != "" {
		cfg.Logging.Level = a.flags.logLevel
	}
	if a.flags.noHistory {
		cfg.History.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

func (a *app) close() {
	if a.closeLog != nil {
		a.closeLog()
		a.closeLog = nil
	}
}

// loadConfig reads path, or the default location when path is empty, and
// reports which file was used.
func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		if err := config.LoadDotEnv(".env"); err != nil {
			return nil, "", err
		}
		cfg, err := config.LoadFromPath(path)
		return cfg, path, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	active, err := config.ActivePath()
	if err != nil {
		return cfg, "", nil
	}
	if _, err := os.Stat(active); err != nil {
		active = ""
	}
	return cfg, active, nil
}

// backendLabel names the backend for headers and errors.
func (a *app) backendLabel() string {
	switch transport.Kind(a.cfg.Transport.Kind) {
	case transport.KindHTTP:
		return a.cfg.HTTP.QueryURL
	case transport.KindMock:
		return "mock backend"
	}
	return a.cfg.Transport.URL
}

// openHistory opens the transcript store named by the config.
func (a *app) openHistory() (*storage.History, error) {
	path, err := a.cfg.HistoryPath()
	if err != nil {
		return nil, err
	}
	return storage.Open(path, a.cfg.History.MaxConversations)
}

// =============================================================================
// SESSION WIRING
// =============================================================================

// sessionOptions varies the wiring between commands.
type sessionOptions struct {
	Greeting string
	OnState  func(transport.State)
	OnChange func()
}

// chatSession is a transport, the store fed by it and the recorder saving it.
type chatSession struct {
	Transport transport.Transport
	Store     *session.Store

	recorder *recorder
	watcher  *config.Watcher
	logger   *zap.Logger
}

// openSession builds the transport and store. The caller attaches the store
// with the Poster that suits its view and then connects.
func (a *app) openSession(so sessionOptions) (*chatSession, error) {
	t, err := a.newTransport(a.cfg, transport.Options{Logger: a.logger, OnState: so.OnState})
	if err != nil {
		return nil, err
	}

	var rec *recorder
	if a.cfg.History.Enabled {
		hist, err := a.openHistory()
		if err != nil {
			a.logger.Warn("HISTORY_UNAVAILABLE", zap.Error(err))
		} else {
			rec = newRecorder(hist, a.cfg.Model, a.cfg.RAG, a.logger)
		}
	}

	store := session.New(t, session.Config{
		Greeting:      so.Greeting,
		UploadTimeout: a.cfg.UploadTimeout(),
		Model:         a.cfg.Model,
		RAG:           a.cfg.RAG,
		Logger:        a.logger,
		Persist:       rec.Persist,
		OnChange:      so.OnChange,
		OnConfig:      rec.ConfigChanged,
	})
	return &chatSession{Transport: t, Store: store, recorder: rec, logger: a.logger}, nil
}

// Watch applies edits of the config file at path to the store through post.
// An empty path watches nothing.
func (s *chatSession) Watch(path string, post session.Poster) {
	if path == "" {
		return
	}
	w, err := config.Watch(path, func(next *config.Config) {
		post(func() {
			if err := s.Store.SetConfig(next.Model, next.RAG); err != nil {
				s.logger.Warn("CONFIG_APPLY_REJECTED", zap.Error(err))
			}
		})
	}, 0, s.logger)
	if err != nil {
		s.logger.Warn("CONFIG_WATCH_UNAVAILABLE", zap.Error(err))
		return
	}
	s.watcher = w
}

// ConversationID is the saved conversation, or "" when nothing was saved.
func (s *chatSession) ConversationID() string {
	return s.recorder.ID()
}

// Close stops watching, closes the transport and the history database.
func (s *chatSession) Close() error {
	if s.watcher != nil {
		s.watcher.Close()
	}
	err := s.Transport.Close()
	if cerr := s.recorder.Close(); err == nil {
		err = cerr
	}
	return err
}

// notifier returns a channel that receives a token after store changes and
// the OnChange hook feeding it. Bursts coalesce into one token.
func notifier() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	return ch, func() {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// waitFor blocks until cond holds for a snapshot of store. each, when set,
// sees every snapshot taken on the way.
func waitFor(ctx context.Context, store *session.Store, changed <-chan struct{}, cond func(session.Snapshot) bool, each func(session.Snapshot)) (session.Snapshot, error) {
	for {
		snap := store.Snapshot()
		if each != nil {
			each(snap)
		}
		if cond(snap) {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-changed:
		}
	}
}
