// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package upload packages local files for submission to the backend.
//
// Files are collected from paths, then encoded either as a JSON frame with
// base64 content (realtime transports) or as a multipart form (HTTP).
//
// # Usage
//
//	files, err := upload.Collect([]string{"report.pdf"})
//	if err != nil {
//	    return err
//	}
//	store.UploadFiles(files)
package upload
