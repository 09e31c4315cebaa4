// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
)

// Build information, set with -ldflags at release time.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// annotationNoSetup marks commands that run without loading the config.
const annotationNoSetup = "ragchat/no-setup"

// annotationFullScreen marks commands that own the terminal, so log records
// must not be echoed to stderr.
const annotationFullScreen = "ragchat/full-screen"

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp()
	root := newRootCommand(a)
	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, styles.RenderError(err.Error()))
		return 1
	}
	return 0
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "ragchat",
		Short: "Chat with your documents",
		Long: `ragchat is a terminal client for a retrieval-augmented generation backend.

Ask questions about uploaded PDFs, watch the agent pipeline work and follow
the cited pages. Run without a command to open the full-screen chat.`,
		Example: `  ragchat
  ragchat ask "What does section 3 cover?"
  ragchat upload report.pdf appendix.pdf
  ragchat --transport mock chat`,
		Annotations:   map[string]string{annotationFullScreen: "true"},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[annotationNoSetup] != "" {
				a.bindOutput(cmd)
				return nil
			}
			return a.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), a)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.flags.configPath, "config", "c", "", "config file (default ~/.ragchat/config.toml)")
	f.StringVarP(&a.flags.transport, "transport", "t", "", "backend transport: websocket, http or mock")
	f.StringVar(&a.flags.url, "url", "", "websocket backend URL")
	f.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn or error")
	f.BoolVar(&a.flags.noHistory, "no-history", false, "do not record this session")

	root.AddCommand(
		newTUICommand(a),
		newChatCommand(a),
		newAskCommand(a),
		newUploadCommand(a),
		newHistoryCommand(a),
		newConfigCommand(a),
		newVersionCommand(a),
	)
	return root
}
