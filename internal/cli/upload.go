// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ragchat-tui/internal/model"
	"github.com/jeranaias/ragchat-tui/internal/session"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
	"github.com/jeranaias/ragchat-tui/internal/upload"
)

// DefaultUploadWait bounds the wait for the ingestion result.
const DefaultUploadWait = 5 * time.Minute

func newUploadCommand(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "upload <file.pdf>...",
		Short: "Upload PDF documents for ingestion",
		Long: `Send PDF files to the backend and wait until it confirms or rejects them.
Only .pdf files are accepted.`,
		Example: `  ragchat upload report.pdf
  ragchat upload --timeout 10m scans/*.pdf`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd.Context(), a, args, timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", DefaultUploadWait, "how long to wait for the backend")
	return cmd
}

func runUpload(ctx context.Context, a *app, paths []string, timeout time.Duration) error {
	files, err := upload.Collect(paths)
	if err != nil {
		return err
	}

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

	fmt.Fprintln(a.errOut, styles.RenderInfo("Uploading "+strings.Join(upload.Names(files), ", ")))
	if !cs.Store.UploadFiles(files) {
		return errors.New("no files to upload")
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	snap, err := waitFor(waitCtx, cs.Store, changed, func(s session.Snapshot) bool {
		return !s.AwaitingUpload
	}, nil)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("upload not confirmed within %s", timeout)
	}
	if err != nil {
		return err
	}

	result := snap.Messages[len(snap.Messages)-1]
	if result.Status == model.StatusError {
		return errors.New(result.Content)
	}
	fmt.Fprintln(a.out, styles.RenderSuccess(result.Content))
	return nil
}
