package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// maxFetchBytes caps how much of a remote page is read.
const maxFetchBytes = 4 << 20

var fetchClient = &http.Client{Timeout: 30 * time.Second}

// ExtractPDF returns the plain text of a PDF document.
func ExtractPDF(r io.ReaderAt, size int64) (string, error) {
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	text, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// ExtractPDFFile extracts plain text from a PDF on disk.
func ExtractPDFFile(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	text, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// skippedElements are HTML elements whose text content is never prose.
var skippedElements = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"head": true, "nav": true, "iframe": true,
}

// HTMLToText strips markup from an HTML document, keeping text nodes outside
// non-prose elements. Block boundaries become newlines.
func HTMLToText(r io.Reader) (string, error) {
	root, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("parsing html: %w", err)
	}

	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElement(n.Data) {
			sb.WriteString("\n\n")
		}
	}
	walk(root)

	return collapseBlank(sb.String()), nil
}

func blockElement(name string) bool {
	switch name {
	case "p", "div", "section", "article", "li", "br", "tr",
		"h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre":
		return true
	}
	return false
}

// collapseBlank trims each line and squeezes runs of blank lines to one.
func collapseBlank(s string) string {
	lines := strings.Split(s, "\n")
	var out []string
	blank := true
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// FetchURL downloads a page and returns its readable text. HTML responses
// are stripped to prose; anything else is treated as plain text.
func FetchURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := fetchClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetching %s: status %d", url, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxFetchBytes)
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType == "text/html" || mediaType == "application/xhtml+xml" {
		return HTMLToText(body)
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", url, err)
	}
	return strings.TrimSpace(string(raw)), nil
}
