// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// Document is one page returned by retrieval for the latest query.
type Document struct {
	ID         string  `json:"id"`
	PageNumber int     `json:"pageNumber"`
	ImageURL   string  `json:"imageUrl"`
	Score      float64 `json:"score"`
	PDFURL     string  `json:"pdfUrl"`
}

// Validate checks page number and score bounds.
func (d Document) Validate() error {
	if d.PageNumber < 1 {
		return fmt.Errorf("document %q: page number %d must be >= 1", d.ID, d.PageNumber)
	}
	if !inUnit(d.Score) {
		return fmt.Errorf("document %q: score %v must be in [0,1]", d.ID, d.Score)
	}
	return nil
}

// PageLink returns the PDF URL anchored at the document's page.
func (d Document) PageLink() string {
	if d.PDFURL == "" {
		return ""
	}
	base, _, _ := strings.Cut(d.PDFURL, "#")
	return fmt.Sprintf("%s#page=%d", base, d.PageNumber)
}

// ScoreLabel renders the score as "Score: 95.0%".
func (d Document) ScoreLabel() string {
	return "Score: " + FormatPercent(d.Score)
}

// ValidateDocuments checks every document in a retrieval result.
func ValidateDocuments(docs []Document) error {
	for i, d := range docs {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("documents[%d]: %w", i, err)
		}
	}
	return nil
}
