// Package ingest turns raw document sources (plain text, PDF files, web
// pages) into indexed vector chunks. Extraction and chunking are synchronous
// helpers; the embedding work runs on a background worker fed by the SQLite
// job queue so document uploads return immediately.
package ingest

import "strings"

// defaultChunkSize is the target chunk length in characters. Roughly 400
// tokens, comfortably inside the embedding model's window.
const defaultChunkSize = 1600

// SplitChunks splits text into chunks of at most maxChars characters,
// preferring paragraph boundaries. Paragraphs longer than maxChars are
// hard-split. A maxChars <= 0 selects the default. Whitespace-only input
// yields no chunks.
func SplitChunks(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = defaultChunkSize
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > maxChars {
			flush()
			for len(para) > maxChars {
				cut := splitPoint(para, maxChars)
				chunks = append(chunks, strings.TrimSpace(para[:cut]))
				para = strings.TrimSpace(para[cut:])
			}
			if para != "" {
				current.WriteString(para)
			}
			continue
		}

		if current.Len() > 0 && current.Len()+len(para)+2 > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return chunks
}

// splitPoint finds a cut position at or before limit, preferring the last
// sentence end, then the last space, then the hard limit.
func splitPoint(s string, limit int) int {
	window := s[:limit]
	for _, sep := range []string{". ", "? ", "! ", "\n"} {
		if idx := strings.LastIndex(window, sep); idx > limit/2 {
			return idx + len(sep)
		}
	}
	if idx := strings.LastIndex(window, " "); idx > limit/2 {
		return idx + 1
	}
	return limit
}
