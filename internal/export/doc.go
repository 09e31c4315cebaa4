// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes stored transcripts to shareable files.
//
// # Key Types
//
//   - Exporter: Converts a transcript to one file format
//   - MarkdownExporter: Human-readable with citations and metrics
//   - JSONExporter: Machine-readable, the transcript as stored
//   - Options: Output directory and detail level
//
// # Usage
//
//	exp, err := export.ForFormat("md", nil)
//	path, err := export.ExportToFile(transcript, exp, nil)
package export
