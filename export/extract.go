package export

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format: only pdf and docx are allowed")
	ErrDocumentTooLarge  = errors.New("document body is too large")
)

// MaxDocumentXML bounds the uncompressed size of word/document.xml read from an upload.
const MaxDocumentXML = 20 << 20

// ExtractText pulls plain text out of an uploaded .pdf or .docx resume.
func ExtractText(filename string, data []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return textFromPDF(data)
	case ".docx":
		return textFromDOCX(data)
	default:
		return "", ErrUnsupportedFormat
	}
}

func textFromPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	rs, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rs); err != nil {
		return "", err
	}
	return normalizeWhitespace(buf.String()), nil
}

var xmlTags = regexp.MustCompile(`<[^>]+>`)

func textFromDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		if f.UncompressedSize64 > MaxDocumentXML {
			return "", ErrDocumentTooLarge
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		raw, err := io.ReadAll(io.LimitReader(rc, MaxDocumentXML+1))
		if err != nil {
			return "", err
		}
		if len(raw) > MaxDocumentXML {
			return "", ErrDocumentTooLarge
		}
		doc := strings.ReplaceAll(string(raw), "</w:p>", "\n")
		doc = strings.ReplaceAll(doc, "<w:tab/>", "\t")
		doc = xmlTags.ReplaceAllString(doc, "")
		return normalizeWhitespace(unescapeXML(doc)), nil
	}
	return "", errors.New("no document.xml found in docx")
}

var xmlEntities = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&#39;", "'", "&#34;", `"`, "&amp;", "&")

func unescapeXML(s string) string { return xmlEntities.Replace(s) }

var (
	inlineSpace = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankLines  = regexp.MustCompile(`\n[ \n]*`)
)

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = inlineSpace.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
