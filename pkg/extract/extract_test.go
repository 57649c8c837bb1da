package extract

import (
	"errors"
	"strings"
	"testing"
)

func TestExtractPlainText(t *testing.T) {
	got, err := Extract([]byte("  Hemoglobin 13.2 g/dL\nWBC 6.1\n"), "text/plain")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	want := "Hemoglobin 13.2 g/dL\nWBC 6.1"
	if got != want {
		t.Fatalf("Extract = %q, want %q", got, want)
	}
}

func TestExtractPlainTextWithCharsetParam(t *testing.T) {
	got, err := Extract([]byte("hello"), "text/plain; charset=utf-8")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "hello" {
		t.Fatalf("Extract = %q, want %q", got, "hello")
	}
}

func TestExtractRejectsInvalidUTF8(t *testing.T) {
	_, err := Extract([]byte{0xff, 0xfe, 0x41}, "text/plain")
	var extErr *Error
	if !errors.As(err, &extErr) || extErr.Kind != KindUnsupportedEncoding {
		t.Fatalf("expected KindUnsupportedEncoding, got %v", err)
	}
}

func TestExtractCorruptPDF(t *testing.T) {
	_, err := Extract([]byte("%PDF-1.4 this is not a real pdf"), "application/pdf")
	var extErr *Error
	if !errors.As(err, &extErr) || extErr.Kind != KindCorruptDocument {
		t.Fatalf("expected KindCorruptDocument, got %v", err)
	}
}

func TestExtractPDFBytesAsTextFails(t *testing.T) {
	// Binary garbage declared as pdf must not be decoded as text.
	_, err := Extract([]byte{0x25, 0x50, 0x00, 0x01}, "application/pdf")
	if err == nil {
		t.Fatal("expected error for garbage pdf bytes")
	}
}

func TestExtractHTML(t *testing.T) {
	page := `<html><head><style>p{color:red}</style><script>alert(1)</script></head>` +
		`<body><p>Blood test results</p><li>Glucose 92 mg/dL</li></body></html>`
	got, err := Extract([]byte(page), "text/html")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.Contains(got, "Blood test results") || !strings.Contains(got, "Glucose 92 mg/dL") {
		t.Fatalf("Extract = %q, missing expected content", got)
	}
	if strings.Contains(got, "alert") || strings.Contains(got, "color:red") {
		t.Fatalf("Extract = %q, script/style content leaked", got)
	}
}

func TestExtractUnknownMediaTypeFallsBackToText(t *testing.T) {
	got, err := Extract([]byte("csv,data,here"), "application/octet-stream")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "csv,data,here" {
		t.Fatalf("Extract = %q, want %q", got, "csv,data,here")
	}
}
