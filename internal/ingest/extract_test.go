package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTMLToText(t *testing.T) {
	doc := `<html><head><title>Ignored</title><style>body { color: red }</style></head>
	<body>
		<nav><a href="/">Home</a></nav>
		<h1>Weekly Plan</h1>
		<p>Monday: deep work.</p>
		<p>Tuesday: errands.</p>
		<script>console.log("skip me")</script>
	</body></html>`

	text, err := HTMLToText(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("HTMLToText: %v", err)
	}

	for _, want := range []string{"Weekly Plan", "Monday: deep work.", "Tuesday: errands."} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in %q", want, text)
		}
	}
	for _, skip := range []string{"Ignored", "color: red", "console.log", "Home"} {
		if strings.Contains(text, skip) {
			t.Errorf("non-prose content %q leaked into %q", skip, text)
		}
	}
	if strings.Contains(text, "\n\n\n") {
		t.Errorf("blank lines not collapsed: %q", text)
	}
}

func TestHTMLToTextBlockBoundaries(t *testing.T) {
	text, err := HTMLToText(strings.NewReader(`<p>first</p><p>second</p>`))
	if err != nil {
		t.Fatalf("HTMLToText: %v", err)
	}
	lines := strings.Split(text, "\n")
	var nonEmpty []string
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(l))
		}
	}
	if len(nonEmpty) != 2 || nonEmpty[0] != "first" || nonEmpty[1] != "second" {
		t.Errorf("lines = %v", nonEmpty)
	}
}

func TestFetchURLHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><p>page content</p></body></html>`))
	}))
	defer srv.Close()

	text, err := FetchURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchURL: %v", err)
	}
	if text != "page content" {
		t.Errorf("text = %q", text)
	}
}

func TestFetchURLPlainText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("  raw notes  "))
	}))
	defer srv.Close()

	text, err := FetchURL(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("FetchURL: %v", err)
	}
	if text != "raw notes" {
		t.Errorf("text = %q", text)
	}
}

func TestFetchURLNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := FetchURL(context.Background(), srv.URL); err == nil {
		t.Error("expected error for 404 response")
	}
}

func TestCollapseBlank(t *testing.T) {
	got := collapseBlank("a\n\n\n\nb\n   \nc\n")
	if got != "a\n\nb\n\nc" {
		t.Errorf("got %q", got)
	}
}
