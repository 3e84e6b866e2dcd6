package directive

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Directive field defaults.
const (
	defaultColor  = "#4CAF50"
	defaultDomain = "General"

	// fallbackLifeDirection is used when an UPDATE_LIFE_DIRECTION directive
	// arrives with an empty body.
	fallbackLifeDirection = "Live with intention: make time for what matters most."
)

// markerRe matches one directive marker. Matching is case-insensitive; the
// submatch is the marker name.
var markerRe = regexp.MustCompile(`(?i)\[\[(CREATE_GOAL|CREATE_PROJECT|CREATE_TASK|CREATE_TIME_BLOCK|CREATE_TODO|CREATE_TODO_GROUP|UPDATE_LIFE_DIRECTION)\]\]`)

var markerTypes = map[string]Type{
	"CREATE_GOAL":           TypeCreateGoal,
	"CREATE_PROJECT":        TypeCreateProject,
	"CREATE_TASK":           TypeCreateTask,
	"CREATE_TIME_BLOCK":     TypeCreateTimeBlock,
	"CREATE_TODO":           TypeCreateTodo,
	"CREATE_TODO_GROUP":     TypeCreateTodoGroup,
	"UPDATE_LIFE_DIRECTION": TypeUpdateLifeDirection,
}

// Extract scans raw model output for directive markers and returns one typed
// Action per marker instance, in order of appearance. Returns nil — not an
// empty slice — when the text contains no recognized marker, so callers can
// distinguish "nothing to offer" from "directives present".
//
// Malformed bodies degrade to documented defaults; a directive is never
// dropped because a field failed to parse.
func Extract(raw string) []Action {
	spans := markerRe.FindAllStringSubmatchIndex(raw, -1)
	if len(spans) == 0 {
		return nil
	}

	actions := make([]Action, 0, len(spans))
	for i, span := range spans {
		name := strings.ToUpper(raw[span[2]:span[3]])
		bodyStart := span[1]
		bodyEnd := len(raw)
		if i+1 < len(spans) {
			bodyEnd = spans[i+1][0]
		}
		body := raw[bodyStart:bodyEnd]
		actions = append(actions, buildAction(markerTypes[name], body))
	}
	return actions
}

// Clean returns raw with every marker block (marker plus body, the same span
// Extract consumes) removed, trimmed. Text outside recognized marker spans
// is never touched, and cleaning already-clean text is a no-op, so the
// function is idempotent.
func Clean(raw string) string {
	loc := markerRe.FindStringIndex(raw)
	if loc == nil {
		return strings.TrimSpace(raw)
	}
	// Marker spans chain to the next marker or EOF, so everything from the
	// first marker onward is directive payload.
	return strings.TrimSpace(raw[:loc[0]])
}

func buildAction(t Type, body string) Action {
	action := Action{
		ID:   uuid.New().String(),
		Type: t,
	}

	if t == TypeUpdateLifeDirection {
		statement := strings.TrimSpace(body)
		if statement == "" {
			statement = fallbackLifeDirection
		}
		action.Title = "Update Life Direction"
		action.Description = statement
		action.Data = LifeDirectionData{Statement: statement}
		return action
	}

	fields := parseFields(body)

	switch t {
	case TypeCreateGoal:
		data := GoalData{
			Title:       field(fields, "title", "New Goal"),
			Description: field(fields, "description", ""),
			Domain:      field(fields, "domain", defaultDomain),
			Icon:        field(fields, "icon", "star"),
			Color:       field(fields, "color", defaultColor),
			TargetDate:  parseDate(field(fields, "targetDate", "")),
			Progress:    0,
			Completed:   false,
		}
		action.Title = data.Title
		action.Description = data.Description
		action.Data = data

	case TypeCreateProject:
		data := ProjectData{
			Title:       field(fields, "title", "New Project"),
			Description: field(fields, "description", ""),
			GoalID:      field(fields, "goalId", ""),
			GoalTitle:   field(fields, "goalTitle", ""),
			Domain:      field(fields, "domain", defaultDomain),
			Color:       field(fields, "color", defaultColor),
			DueDate:     parseDate(field(fields, "dueDate", "")),
			Tasks:       parseList(field(fields, "tasks", "")),
		}
		action.Title = data.Title
		action.Description = data.Description
		action.Data = data

	case TypeCreateTask:
		data := TaskData{
			Title:        field(fields, "title", "New Task"),
			Description:  field(fields, "description", ""),
			ProjectTitle: field(fields, "projectTitle", ""),
			GoalTitle:    field(fields, "goalTitle", ""),
			Status:       field(fields, "status", "todo"),
			Completed:    false,
		}
		action.Title = data.Title
		action.Description = data.Description
		action.Data = data

	case TypeCreateTimeBlock:
		data := TimeBlockData{
			Title:     field(fields, "title", ""),
			StartTime: parseDate(field(fields, "startTime", "")),
			EndTime:   parseDate(field(fields, "endTime", "")),
			Location:  field(fields, "location", ""),
			Notes:     field(fields, "notes", ""),
			Domain:    field(fields, "domain", defaultDomain),
			Color:     field(fields, "color", defaultColor),
			IsAllDay:  parseBool(field(fields, "isAllDay", "")),
		}
		action.Title = data.Title
		action.Description = data.Notes
		action.Data = data

	case TypeCreateTodo:
		data := TodoData{
			Title:      field(fields, "title", ""),
			Tab:        parseTab(field(fields, "tab", "")),
			GroupID:    field(fields, "groupId", ""),
			GroupTitle: field(fields, "groupTitle", ""),
			Completed:  false,
		}
		action.Title = data.Title
		action.Data = data

	case TypeCreateTodoGroup:
		data := TodoGroupData{
			Title: field(fields, "title", ""),
			Tab:   field(fields, "tab", ""),
			Items: parseList(field(fields, "items", "")),
		}
		action.Title = data.Title
		action.Data = data
	}

	return action
}
