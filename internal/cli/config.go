// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/ragchat-tui/internal/config"
	"github.com/jeranaias/ragchat-tui/internal/ui/styles"
)

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the configuration file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as TOML",
			Long: `Print the configuration after the file, .env files, RAGCHAT_* variables and
command line flags have been applied.`,
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprint(a.out, a.cfg.String())
				return nil
			},
		},
		&cobra.Command{
			Use:         "path",
			Short:       "Print the configuration file location",
			Args:        cobra.NoArgs,
			Annotations: map[string]string{annotationNoSetup: "true"},
			RunE: func(cmd *cobra.Command, args []string) error {
				path := a.flags.configPath
				if path == "" {
					var err error
					if path, err = config.ActivePath(); err != nil {
						return err
					}
				}
				fmt.Fprintln(a.out, path)
				return nil
			},
		},
		&cobra.Command{
			Use:         "validate [file]",
			Short:       "Check a configuration file",
			Args:        cobra.MaximumNArgs(1),
			Annotations: map[string]string{annotationNoSetup: "true"},
			RunE: func(cmd *cobra.Command, args []string) error {
				return runConfigValidate(a, args)
			},
		},
		newConfigInitCommand(a),
	)
	return cmd
}

func runConfigValidate(a *app, args []string) error {
	path := a.flags.configPath
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		var err error
		if path, err = config.ActivePath(); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no config file at %s", path)
	}

	if _, err := config.LoadFromPath(path); err != nil {
		var verrs config.ValidateErrors
		if errors.As(err, &verrs) {
			for _, e := range verrs {
				fmt.Fprintln(a.out, styles.RenderError(e.Error()))
			}
			return fmt.Errorf("%s: %d problem(s)", path, len(verrs))
		}
		return err
	}
	fmt.Fprintln(a.out, styles.RenderSuccess(path+" is valid"))
	return nil
}

func newConfigInitCommand(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write a configuration file with the default settings",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotationNoSetup: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := a.flags.configPath
			if path == "" {
				var err error
				if path, err = config.ConfigPathTOML(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			save := config.SaveTOML
			if strings.HasSuffix(path, ".json") {
				save = config.SaveJSON
			}
			if err := save(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintln(a.out, styles.RenderSuccess("Wrote "+path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
