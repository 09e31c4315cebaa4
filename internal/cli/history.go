// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ragchat-tui/internal/export"
	"github.com/jeranaias/ragchat-tui/internal/storage"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
)

func newHistoryCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"hist"},
		Short:   "Browse and export saved conversations",
		Long: `Saved conversations live in the history database (~/.ragchat/history.db by
default). Commands accept any unique prefix of a conversation id.`,
	}
	cmd.AddCommand(
		newHistoryListCommand(a),
		newHistoryShowCommand(a),
		newHistoryExportCommand(a),
		newHistoryDeleteCommand(a),
	)
	return cmd
}

// withHistory opens the database for the duration of fn.
func (a *app) withHistory(fn func(h *storage.History) error) error {
	h, err := a.openHistory()
	if err != nil {
		return err
	}
	defer h.Close()
	return fn(h)
}

func newHistoryListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved conversations, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withHistory(func(h *storage.History) error {
				metas, err := h.List(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, storage.FormatList(metas))
				return nil
			})
		},
	}
}

func newHistoryShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withHistory(func(h *storage.History) error {
				tr, err := h.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "%s  %s\n%s, %s\n\n", tr.ID, tr.Title, tr.Model.Label(), tr.RAG.Label())
				p := newPrinter(a.out, a.cfg.UI.Theme, true)
				for _, msg := range tr.Messages {
					p.Message(msg)
				}
				return nil
			})
		},
	}
}

func newHistoryExportCommand(a *app) *cobra.Command {
	var (
		format   string
		dir      string
		toStdout bool
		noMeta   bool
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a saved conversation to markdown or JSON",
		Example: `  ragchat history export 3f2a
  ragchat history export 3f2a --format json --output ~/exports
  ragchat history export 3f2a --stdout > notes.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := export.DefaultOptions()
			opts.OutputDir = dir
			opts.IncludeMetadata = !noMeta
			exporter, err := export.ForFormat(format, opts)
			if err != nil {
				return err
			}
			return a.withHistory(func(h *storage.History) error {
				tr, err := h.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if toStdout {
					content, err := exporter.Export(tr)
					if err != nil {
						return err
					}
					_, err = a.out.Write(content)
					return err
				}
				path, err := export.ExportToFile(tr, exporter, opts)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.out, styles.RenderSuccess("Exported to "+path))
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", "md", "export format: md or json")
	f.StringVarP(&dir, "output", "o", ".", "directory to write into")
	f.BoolVar(&toStdout, "stdout", false, "write to stdout instead of a file")
	f.BoolVar(&noMeta, "no-metadata", false, "omit the session header, citations and metrics")
	return cmd
}

func newHistoryDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withHistory(func(h *storage.History) error {
				id, err := h.Resolve(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := h.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintln(a.out, styles.RenderSuccess("Deleted "+id))
				return nil
			})
		},
	}
}
