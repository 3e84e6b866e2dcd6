package directive

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// parseFields splits a directive body into a key/value map. Each non-empty
// line is split at the first colon; the key is lowercased and trimmed, the
// value trimmed. Lines without a colon or with an empty value are ignored.
// A squashed alias (spaces and underscores removed) is stored for each key
// so "target date:" and "targetDate:" resolve identically.
func parseFields(body string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx := strings.Index(line, ":")
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		if key == "" || value == "" {
			continue
		}
		fields[key] = value
		if squashed := squashKey(key); squashed != key {
			fields[squashed] = value
		}
	}
	return fields
}

func squashKey(key string) string {
	return strings.NewReplacer(" ", "", "_", "").Replace(key)
}

// field looks up a key (given in its natural camelCase spelling) and returns
// fallback when absent.
func field(fields map[string]string, key, fallback string) string {
	if v, ok := fields[strings.ToLower(key)]; ok {
		return v
	}
	return fallback
}

// bulletRe matches one leading list token: digits followed by a dot, or a
// literal -, * or bullet, then whitespace.
var bulletRe = regexp.MustCompile(`^(?:\d+\.|[-*•])\s+`)

// parseList splits raw list text into items. Comma-separated form is used
// only when the text holds a comma and no newline; otherwise lines are the
// delimiter. Each fragment is stripped of at most one leading bullet token,
// and fragments that are empty or a single character afterwards are dropped.
func parseList(raw string) []ListItem {
	if strings.TrimSpace(raw) == "" {
		return []ListItem{}
	}

	var fragments []string
	if strings.Contains(raw, ",") && !strings.Contains(raw, "\n") {
		fragments = strings.Split(raw, ",")
	} else {
		fragments = strings.Split(raw, "\n")
	}

	items := make([]ListItem, 0, len(fragments))
	for _, frag := range fragments {
		frag = strings.TrimSpace(frag)
		frag = bulletRe.ReplaceAllString(frag, "")
		frag = strings.TrimSpace(frag)
		if len(frag) <= 1 {
			continue
		}
		items = append(items, ListItem{
			ID:        uuid.New().String(),
			Title:     frag,
			Completed: false,
		})
	}
	return items
}

// dateLayouts are tried in order when parsing directive date fields.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseDate parses an ISO 8601-ish date value. Invalid input is logged and
// yields nil; a bad date never drops the directive.
func parseDate(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return &t
		}
	}
	slog.Warn("directive: unparseable date, ignoring", "value", value)
	return nil
}

// parseBool accepts the string "true" (any case) as true; everything else,
// including absence, is false.
func parseBool(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

// todoTabs are the valid values for a todo "tab" field.
var todoTabs = map[string]bool{"today": true, "tomorrow": true, "later": true}

// parseTab normalizes a todo tab value, defaulting to "today".
func parseTab(value string) string {
	tab := strings.ToLower(strings.TrimSpace(value))
	if todoTabs[tab] {
		return tab
	}
	return "today"
}
