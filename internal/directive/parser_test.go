package directive

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestExtractNoMarkers(t *testing.T) {
	if got := Extract("just a friendly reply with no commands"); got != nil {
		t.Fatalf("expected nil for marker-free text, got %v", got)
	}
	if got := Extract(""); got != nil {
		t.Fatalf("expected nil for empty text, got %v", got)
	}
}

func TestExtractSingleGoal(t *testing.T) {
	raw := "Sure! [[CREATE_GOAL]]\ntitle: Read More\ndomain: Personal Growth\n"

	actions := Extract(raw)
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}

	a := actions[0]
	if a.Type != TypeCreateGoal {
		t.Errorf("type = %q, want %q", a.Type, TypeCreateGoal)
	}
	if a.ID == "" {
		t.Error("expected generated id")
	}

	data, ok := a.Data.(GoalData)
	if !ok {
		t.Fatalf("payload type = %T, want GoalData", a.Data)
	}
	if data.Title != "Read More" {
		t.Errorf("title = %q, want %q", data.Title, "Read More")
	}
	if data.Domain != "Personal Growth" {
		t.Errorf("domain = %q, want %q", data.Domain, "Personal Growth")
	}
	if data.Icon != "star" {
		t.Errorf("icon default = %q, want %q", data.Icon, "star")
	}
	if data.Color != "#4CAF50" {
		t.Errorf("color default = %q, want %q", data.Color, "#4CAF50")
	}
	if data.Progress != 0 || data.Completed {
		t.Errorf("expected zero progress and not completed, got %d/%v", data.Progress, data.Completed)
	}
}

func TestExtractMultipleMarkersInOrder(t *testing.T) {
	raw := "Here you go.\n" +
		"[[CREATE_GOAL]]\ntitle: Get Fit\n" +
		"[[CREATE_TASK]]\ntitle: Buy running shoes\nstatus: done\n" +
		"[[CREATE_TODO]]\ntitle: Stretch\ntab: tomorrow\n"

	actions := Extract(raw)
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}

	wantTypes := []Type{TypeCreateGoal, TypeCreateTask, TypeCreateTodo}
	for i, want := range wantTypes {
		if actions[i].Type != want {
			t.Errorf("action %d type = %q, want %q", i, actions[i].Type, want)
		}
	}

	task := actions[1].Data.(TaskData)
	if task.Title != "Buy running shoes" || task.Status != "done" {
		t.Errorf("task = %+v", task)
	}
	todo := actions[2].Data.(TodoData)
	if todo.Tab != "tomorrow" {
		t.Errorf("tab = %q, want tomorrow", todo.Tab)
	}
}

func TestExtractCaseInsensitiveMarkers(t *testing.T) {
	actions := Extract("[[create_goal]]\ntitle: Lowercase works\n")
	if len(actions) != 1 || actions[0].Type != TypeCreateGoal {
		t.Fatalf("expected createGoal from lowercase marker, got %v", actions)
	}
}

func TestFieldRoundTrip(t *testing.T) {
	actions := Extract("[[CREATE_TASK]]\ntitle: Foo\nstatus: done\n")
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	data := actions[0].Data.(TaskData)
	if data.Title != "Foo" {
		t.Errorf("title = %q, want Foo", data.Title)
	}
	if data.Status != "done" {
		t.Errorf("status = %q, want done", data.Status)
	}
}

func TestFieldGrammarTolerance(t *testing.T) {
	raw := "[[CREATE_GOAL]]\n" +
		"  TITLE :  Spaced Out  \n" +
		"no colon line is ignored\n" +
		"description:\n" + // empty value ignored
		"target date: 2026-01-15\n"

	data := Extract(raw)[0].Data.(GoalData)
	if data.Title != "Spaced Out" {
		t.Errorf("title = %q, want %q", data.Title, "Spaced Out")
	}
	if data.Description != "" {
		t.Errorf("description = %q, want empty (empty value ignored)", data.Description)
	}
	if data.TargetDate == nil {
		t.Fatal("expected target date parsed from spaced key")
	}
	want := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	if !data.TargetDate.Equal(want) {
		t.Errorf("target date = %v, want %v", data.TargetDate, want)
	}
}

func TestInvalidDateDegradesToNil(t *testing.T) {
	data := Extract("[[CREATE_GOAL]]\ntitle: X\ntargetDate: not-a-date\n")[0].Data.(GoalData)
	if data.TargetDate != nil {
		t.Errorf("expected nil target date for garbage input, got %v", data.TargetDate)
	}
}

func TestGoalDefaultsWhenBodyEmpty(t *testing.T) {
	data := Extract("[[CREATE_GOAL]]")[0].Data.(GoalData)
	if data.Title != "New Goal" {
		t.Errorf("title default = %q, want New Goal", data.Title)
	}
	if data.Domain != "General" {
		t.Errorf("domain default = %q, want General", data.Domain)
	}
}

func TestProjectTaskList(t *testing.T) {
	raw := "[[CREATE_PROJECT]]\ntitle: Launch\ntasks: 1. Buy milk, 2. Walk dog\n"
	data := Extract(raw)[0].Data.(ProjectData)
	if len(data.Tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d: %+v", len(data.Tasks), data.Tasks)
	}
	// Comma-split happens first; each fragment then loses at most one
	// leading bullet token.
	if data.Tasks[0].Title != "Buy milk" {
		t.Errorf("task 0 = %q, want %q", data.Tasks[0].Title, "Buy milk")
	}
	if data.Tasks[1].Title != "Walk dog" {
		t.Errorf("task 1 = %q, want %q", data.Tasks[1].Title, "Walk dog")
	}
	for _, item := range data.Tasks {
		if item.ID == "" {
			t.Error("expected generated list item id")
		}
		if item.Completed {
			t.Error("list items start not completed")
		}
	}
}

func TestParseListNewlineDelimited(t *testing.T) {
	// Newline form wins whenever the text holds a newline; commas inside a
	// fragment are then not delimiters. Fragments of one character or less
	// after bullet-stripping are dropped.
	items := parseList("- Dishes\n- Laundry, with extra soap\n- X")
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d: %+v", len(items), items)
	}
	if items[0].Title != "Dishes" {
		t.Errorf("item 0 = %q", items[0].Title)
	}
	if items[1].Title != "Laundry, with extra soap" {
		t.Errorf("item 1 = %q", items[1].Title)
	}
}

func TestTimeBlockFields(t *testing.T) {
	raw := "[[CREATE_TIME_BLOCK]]\ntitle: Deep work\nstartTime: 2026-02-01T09:00:00Z\nendTime: 2026-02-01T11:00:00Z\nisAllDay: TRUE\n"
	data := Extract(raw)[0].Data.(TimeBlockData)
	if data.StartTime == nil || data.EndTime == nil {
		t.Fatal("expected both times parsed")
	}
	if !data.IsAllDay {
		t.Error("expected isAllDay true (case-insensitive)")
	}
	if data.EndTime.Sub(*data.StartTime) != 2*time.Hour {
		t.Errorf("duration = %v, want 2h", data.EndTime.Sub(*data.StartTime))
	}
}

func TestTodoTabNormalization(t *testing.T) {
	cases := map[string]string{
		"today":    "today",
		"Tomorrow": "tomorrow",
		"LATER":    "later",
		"someday":  "today",
		"":         "today",
	}
	for in, want := range cases {
		raw := "[[CREATE_TODO]]\ntitle: X1\ntab: " + in + "\n"
		data := Extract(raw)[0].Data.(TodoData)
		if data.Tab != want {
			t.Errorf("tab %q normalized to %q, want %q", in, data.Tab, want)
		}
	}
}

func TestLifeDirectionVerbatimBody(t *testing.T) {
	raw := "[[UPDATE_LIFE_DIRECTION]]\nLive deliberately: health first, then craft.\n"
	a := Extract(raw)[0]
	data := a.Data.(LifeDirectionData)
	if data.Statement != "Live deliberately: health first, then craft." {
		t.Errorf("statement = %q", data.Statement)
	}
	if a.Description != data.Statement {
		t.Errorf("description should mirror statement, got %q", a.Description)
	}
}

func TestLifeDirectionEmptyBodyFallsBack(t *testing.T) {
	data := Extract("[[UPDATE_LIFE_DIRECTION]]")[0].Data.(LifeDirectionData)
	if data.Statement == "" {
		t.Error("expected fallback statement for empty body")
	}
}

func TestCleanRemovesMarkerSpans(t *testing.T) {
	raw := "Sure! [[CREATE_GOAL]]\ntitle: Read More\n[[CREATE_TASK]]\ntitle: Library card\n"
	if got := Clean(raw); got != "Sure!" {
		t.Errorf("Clean = %q, want %q", got, "Sure!")
	}
}

func TestCleanNoMarkersTrimsOnly(t *testing.T) {
	if got := Clean("  hello there  "); got != "hello there" {
		t.Errorf("Clean = %q, want trimmed original", got)
	}
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		"Sure! [[CREATE_GOAL]]\ntitle: X\n",
		"no markers at all",
		"[[CREATE_TODO]]\ntitle: starts with marker\n",
	}
	for _, raw := range inputs {
		once := Clean(raw)
		twice := Clean(once)
		if once != twice {
			t.Errorf("Clean not idempotent for %q: %q != %q", raw, once, twice)
		}
		if len(once) > len(raw) {
			t.Errorf("Clean grew output for %q", raw)
		}
		if strings.Contains(once, "[[") {
			t.Errorf("Clean left marker text in %q", once)
		}
	}
}

func TestActionJSONRoundTrip(t *testing.T) {
	raw := "[[CREATE_PROJECT]]\ntitle: Garden\ntasks: Dig beds, Plant seeds\n"
	actions := Extract(raw)

	encoded, err := MarshalActions(actions)
	if err != nil {
		t.Fatalf("MarshalActions: %v", err)
	}

	decoded, err := UnmarshalActions(encoded)
	if err != nil {
		t.Fatalf("UnmarshalActions: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("expected 1 action, got %d", len(decoded))
	}
	orig := actions[0].Data.(ProjectData)
	got := decoded[0].Data.(ProjectData)
	if got.Title != orig.Title || len(got.Tasks) != len(orig.Tasks) {
		t.Errorf("round trip mismatch: %+v vs %+v", got, orig)
	}
}

func TestMarshalActionsNilRoundTrip(t *testing.T) {
	encoded, err := MarshalActions(nil)
	if err != nil {
		t.Fatalf("MarshalActions(nil): %v", err)
	}
	if encoded != "" {
		t.Errorf("nil actions should encode to empty string, got %q", encoded)
	}
	decoded, err := UnmarshalActions(encoded)
	if err != nil {
		t.Fatalf("UnmarshalActions: %v", err)
	}
	if decoded != nil {
		t.Errorf("expected nil after round trip, got %v", decoded)
	}
}

func TestUnmarshalUnknownTypeFails(t *testing.T) {
	var a Action
	if err := json.Unmarshal([]byte(`{"id":"1","type":"teleport","data":{}}`), &a); err == nil {
		t.Error("expected error for unknown action type")
	}
}
