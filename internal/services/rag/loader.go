package rag

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedFile = errors.New("only PDF and TXT files are supported")
	ErrEmptyDocument   = errors.New("could not extract text from data source; the file might be empty, corrupted, or contain only images")
)

// FileKind is the document format inferred from the file name.
type FileKind string

const (
	KindPDF  FileKind = "pdf"
	KindText FileKind = "txt"
)

// KindOf returns the kind of filename, matching the extension
// case-insensitively.
func KindOf(filename string) (FileKind, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return KindPDF, nil
	case ".txt":
		return KindText, nil
	default:
		return "", ErrUnsupportedFile
	}
}

// ExtractText returns the plain text of an uploaded document.
func ExtractText(filename string, data []byte) (string, error) {
	kind, err := KindOf(filename)
	if err != nil {
		return "", err
	}

	var text string
	switch kind {
	case KindPDF:
		text, err = extractPDF(data)
		if err != nil {
			return "", err
		}
	case KindText:
		if !utf8.Valid(data) {
			data = bytes.ToValidUTF8(data, []byte("\uFFFD"))
		}
		text = string(data)
	}

	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

func extractPDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to parse PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}
	return buf.String(), nil
}
