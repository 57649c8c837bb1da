// Package extract turns stored report bytes into plain text. It performs no
// I/O of its own: callers hand it bytes already on durable storage.
package extract

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// ErrorKind classifies extraction failures.
type ErrorKind string

const (
	// KindCorruptDocument means the document structure could not be parsed.
	KindCorruptDocument ErrorKind = "corrupt_document"

	// KindUnsupportedEncoding means plain-text bytes were not valid UTF-8.
	// Invalid input is rejected rather than lossily replaced.
	KindUnsupportedEncoding ErrorKind = "unsupported_encoding"
)

// Error reports why extraction failed.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("extract %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Extract returns the textual content of an uploaded document based on its
// declared media type. PDF documents are parsed structurally, HTML documents
// are reduced to their text nodes, and anything else is decoded as UTF-8.
func Extract(data []byte, mediaType string) (string, error) {
	mt := mediaType
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mt = parsed
	}
	switch strings.ToLower(strings.TrimSpace(mt)) {
	case "application/pdf":
		return fromPDF(data)
	case "text/html", "application/xhtml+xml":
		return fromHTML(data)
	default:
		return fromPlainText(data)
	}
}

func fromPDF(data []byte) (text string, err error) {
	// The pdf library panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = &Error{Kind: KindCorruptDocument, Err: fmt.Errorf("pdf parse panic: %v", r)}
		}
	}()
	reader, rErr := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if rErr != nil {
		return "", &Error{Kind: KindCorruptDocument, Err: rErr}
	}
	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, pErr := page.GetPlainText(nil)
		if pErr != nil {
			// Skip unreadable pages instead of failing the document.
			continue
		}
		pageText = normalizeLine(pageText)
		if pageText == "" {
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", &Error{Kind: KindCorruptDocument, Err: fmt.Errorf("no extractable text")}
	}
	return out, nil
}

func fromHTML(data []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", &Error{Kind: KindCorruptDocument, Err: err}
	}
	text := normalizeLine(textContent(doc))
	if text == "" {
		return "", &Error{Kind: KindCorruptDocument, Err: fmt.Errorf("no extractable text")}
	}
	return text, nil
}

func fromPlainText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", &Error{Kind: KindUnsupportedEncoding, Err: fmt.Errorf("invalid utf-8 byte sequence")}
	}
	// Keep line structure; raw slices of this text feed fallback summaries.
	text := strings.ReplaceAll(string(data), "\x00", " ")
	return strings.TrimSpace(text), nil
}

func normalizeLine(text string) string {
	text = strings.ReplaceAll(text, "\x00", " ")
	text = strings.ToValidUTF8(text, "")
	return strings.Join(strings.Fields(text), " ")
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			buf.WriteString(node.Data)
			buf.WriteString(" ")
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" {
				return
			}
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if node.Type == html.ElementNode && (node.Data == "p" || node.Data == "br" || node.Data == "div" || node.Data == "li") {
			buf.WriteString(" ")
		}
	}
	walk(n)
	return buf.String()
}
