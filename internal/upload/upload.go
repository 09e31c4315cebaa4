// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package upload

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
)

// MultipartField is the form field the ingestion endpoint reads files from.
const MultipartField = "data_pdf"

// MaxFileSize bounds a single uploaded file (64MB).
const MaxFileSize = 64 * 1024 * 1024

var (
	// ErrNotPDF is returned for files without a .pdf extension.
	ErrNotPDF = errors.New("only PDF files can be uploaded")

	// ErrTooLarge is returned for files over MaxFileSize.
	ErrTooLarge = errors.New("file exceeds upload size limit")
)

// File is a handle to one file selected for upload.
type File struct {
	Name        string
	Size        int64
	ContentType string

	open func() (io.ReadCloser, error)
}

// Open returns a reader over the file contents.
func (f File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("upload %s: no content", f.Name)
	}
	return f.open()
}

// FromPath builds a handle for a file on disk.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("upload %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("upload %s: is a directory", path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return File{}, fmt.Errorf("upload %s: %w", path, ErrNotPDF)
	}
	if info.Size() > MaxFileSize {
		return File{}, fmt.Errorf("upload %s: %w", path, ErrTooLarge)
	}
	return File{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: contentType(path),
		open:        func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FromBytes builds an in-memory handle.
func FromBytes(name string, data []byte) File {
	return File{
		Name:        name,
		Size:        int64(len(data)),
		ContentType: contentType(name),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Collect builds handles for every path, stopping at the first bad one.
func Collect(paths []string) ([]File, error) {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		f, err := FromPath(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// Names returns the file names in order.
func Names(files []File) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "application/pdf"
	}
	return "application/octet-stream"
}

// =============================================================================
// FRAME ENCODING
// =============================================================================

// EncodedFile is one file inside an upload frame.
type EncodedFile struct {
	Name        string `json:"name"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
}

// Payload is the body of an upload frame.
type Payload struct {
	Files []EncodedFile `json:"files"`
}

// EncodeFrame reads every file and base64-encodes it for a JSON frame.
func EncodeFrame(files []File) (Payload, error) {
	p := Payload{Files: make([]EncodedFile, 0, len(files))}
	for _, f := range files {
		data, err := readAll(f)
		if err != nil {
			return Payload{}, err
		}
		p.Files = append(p.Files, EncodedFile{
			Name:        f.Name,
			Size:        int64(len(data)),
			ContentType: f.ContentType,
			Data:        base64.StdEncoding.EncodeToString(data),
		})
	}
	return p, nil
}

func readAll(f File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", f.Name, err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("upload %s: %w", f.Name, ErrTooLarge)
	}
	return data, nil
}

// =============================================================================
// MULTIPART ENCODING
// =============================================================================

// WriteMultipart streams files into w as a multipart form under field and
// returns the form's content type.
func WriteMultipart(w io.Writer, field string, files []File) (string, error) {
	mw := multipart.NewWriter(w)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, f.Name))
		h.Set("Content-Type", f.ContentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return "", err
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		_, err = io.Copy(part, rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("upload %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	return mw.FormDataContentType(), nil
}
