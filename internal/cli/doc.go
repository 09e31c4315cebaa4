// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the ragchat command line.
//
// Every command loads the configuration once, opens the rotating log file
// and builds its transport and session store from the result. Global flags
// override the file for a single run.
//
// # Commands
//
//   - tui: full-screen chat (the default when no command is given)
//   - chat: line-oriented chat with input history
//   - ask: send one question and print the answer
//   - upload: send PDF files for ingestion
//   - history: list, show, export and delete saved conversations
//   - config: show, path, validate and init
//   - version: build information
//
// # Usage
//
//	os.Exit(cli.Execute())
package cli
