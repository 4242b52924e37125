package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"
)

func buildDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const sampleDocumentXML = `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Chapter one.</w:t></w:r></w:p>
    <w:p><w:r><w:t>It was a dark night.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func TestExtractTextFromBytes_Docx(t *testing.T) {
	data := buildDocx(t, sampleDocumentXML)

	text, err := ExtractTextFromBytes(context.Background(), data, mimeDOCX, "novel.docx")
	if err != nil {
		t.Fatalf("ExtractTextFromBytes: %v", err)
	}
	if !strings.Contains(text, "Chapter one.") || !strings.Contains(text, "It was a dark night.") {
		t.Fatalf("text = %q", text)
	}
	if !strings.Contains(text, "\n") {
		t.Fatalf("paragraph break lost: %q", text)
	}
}

func TestExtractTextFromBytes_ZipDocxNormalizes(t *testing.T) {
	data := buildDocx(t, sampleDocumentXML)

	// Browsers often report .docx uploads as application/zip.
	text, err := ExtractTextFromBytes(context.Background(), data, "application/zip", "novel.docx")
	if err != nil {
		t.Fatalf("expected docx to extract from zip mime, got error: %v", err)
	}
	if !strings.Contains(text, "Chapter one.") {
		t.Fatalf("text = %q", text)
	}
}

func TestExtractTextFromBytes_PlainText(t *testing.T) {
	text, err := ExtractTextFromBytes(context.Background(), []byte("  pasted body \n"), "text/plain", "notes.txt")
	if err != nil {
		t.Fatalf("ExtractTextFromBytes: %v", err)
	}
	if text != "pasted body" {
		t.Fatalf("text = %q", text)
	}
}

func TestExtractTextFromBytes_RealZipRejected(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("notes.txt")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte("hello")); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}

	_, err = ExtractTextFromBytes(context.Background(), buf.Bytes(), "application/zip", "notes.zip")
	if err == nil {
		t.Fatal("expected unsupported mime error for zip")
	}
	if !strings.Contains(err.Error(), "unsupported mime type: application/zip") {
		t.Fatalf("unexpected error: %v", err)
	}
}
