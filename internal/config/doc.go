// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for ragchat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// .env files, environment variable overrides, validation and live reload.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - TransportConfig: Backend connection kind, URL and reconnect policy
//   - HTTPConfig: Endpoints of the HTTP/SSE backend
//   - Watcher: Reloads the config file and hands out full replacements
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (RAGCHAT_*)
//   - .env in the working directory, then ~/.ragchat/.env
//   - ~/.ragchat/config.toml
//   - ~/.ragchat/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Follow edits:
//
//	w, err := config.Watch(path, func(next *config.Config) {
//	    store.SetConfig(next.Model, next.RAG)
//	}, 0, logger)
package config
