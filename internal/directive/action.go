// Package directive recovers typed planning commands from free-form model
// output. The model marks a command with a [[MARKER]] token followed by a
// loose key:value body; this package lexes the markers, parses each body
// into a typed action, and produces a marker-free rendition of the text
// for display.
package directive

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies what kind of planning command an action carries.
type Type string

const (
	TypeCreateGoal          Type = "createGoal"
	TypeCreateProject       Type = "createProject"
	TypeCreateTask          Type = "createTask"
	TypeCreateTimeBlock     Type = "createTimeBlock"
	TypeCreateTodo          Type = "createTodo"
	TypeCreateTodoGroup     Type = "createTodoGroup"
	TypeUpdateLifeDirection Type = "updateLifeDirection"
)

// Payload is the sealed union of per-type action payloads. Dispatching on
// Action.Data with a type switch over these structs is exhaustive.
type Payload interface {
	isPayload()
}

// Action is one typed command recovered from model output. Actions are
// transient: the caller decides whether to materialize them into the
// planning domain model.
type Action struct {
	ID          string
	Type        Type
	Title       string
	Description string
	Data        Payload
}

// ListItem is a sub-record inside project task lists and todo-group item lists.
type ListItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

// GoalData is the payload for createGoal.
type GoalData struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Domain      string     `json:"domain"`
	Icon        string     `json:"icon"`
	Color       string     `json:"color"`
	TargetDate  *time.Time `json:"targetDate,omitempty"`
	Progress    int        `json:"progress"`
	Completed   bool       `json:"completed"`
}

// ProjectData is the payload for createProject.
type ProjectData struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	GoalID      string     `json:"goalId,omitempty"`
	GoalTitle   string     `json:"goalTitle,omitempty"`
	Domain      string     `json:"domain"`
	Color       string     `json:"color"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Tasks       []ListItem `json:"tasks"`
}

// TaskData is the payload for createTask.
type TaskData struct {
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	ProjectTitle string `json:"projectTitle,omitempty"`
	GoalTitle    string `json:"goalTitle,omitempty"`
	Status       string `json:"status"`
	Completed    bool   `json:"completed"`
}

// TimeBlockData is the payload for createTimeBlock.
type TimeBlockData struct {
	Title     string     `json:"title"`
	StartTime *time.Time `json:"startTime,omitempty"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	Location  string     `json:"location,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Domain    string     `json:"domain"`
	Color     string     `json:"color"`
	IsAllDay  bool       `json:"isAllDay"`
}

// TodoData is the payload for createTodo.
type TodoData struct {
	Title      string `json:"title"`
	Tab        string `json:"tab"`
	GroupID    string `json:"groupId,omitempty"`
	GroupTitle string `json:"groupTitle,omitempty"`
	Completed  bool   `json:"completed"`
}

// TodoGroupData is the payload for createTodoGroup.
type TodoGroupData struct {
	Title string     `json:"title"`
	Tab   string     `json:"tab,omitempty"`
	Items []ListItem `json:"items"`
}

// LifeDirectionData is the payload for updateLifeDirection. The statement is
// the directive body taken verbatim.
type LifeDirectionData struct {
	Statement string `json:"statement"`
}

func (GoalData) isPayload()          {}
func (ProjectData) isPayload()       {}
func (TaskData) isPayload()          {}
func (TimeBlockData) isPayload()     {}
func (TodoData) isPayload()          {}
func (TodoGroupData) isPayload()     {}
func (LifeDirectionData) isPayload() {}

// actionEnvelope is the wire shape used when actions are persisted (the
// semantic cache) or returned over the HTTP API.
type actionEnvelope struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Data        json.RawMessage `json:"data"`
}

// MarshalJSON encodes the action with its payload under "data".
func (a Action) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(a.Data)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s payload: %w", a.Type, err)
	}
	return json.Marshal(actionEnvelope{
		ID:          a.ID,
		Type:        a.Type,
		Title:       a.Title,
		Description: a.Description,
		Data:        data,
	})
}

// UnmarshalJSON decodes the envelope and rehydrates the payload variant
// matching the type tag.
func (a *Action) UnmarshalJSON(b []byte) error {
	var env actionEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}

	var payload Payload
	switch env.Type {
	case TypeCreateGoal:
		payload = &GoalData{}
	case TypeCreateProject:
		payload = &ProjectData{}
	case TypeCreateTask:
		payload = &TaskData{}
	case TypeCreateTimeBlock:
		payload = &TimeBlockData{}
	case TypeCreateTodo:
		payload = &TodoData{}
	case TypeCreateTodoGroup:
		payload = &TodoGroupData{}
	case TypeUpdateLifeDirection:
		payload = &LifeDirectionData{}
	default:
		return fmt.Errorf("unknown action type %q", env.Type)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, payload); err != nil {
			return fmt.Errorf("unmarshaling %s payload: %w", env.Type, err)
		}
	}

	a.ID = env.ID
	a.Type = env.Type
	a.Title = env.Title
	a.Description = env.Description
	a.Data = deref(payload)
	return nil
}

// deref converts the pointer used for unmarshaling back to the value form
// actions carry.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *GoalData:
		return *v
	case *ProjectData:
		return *v
	case *TaskData:
		return *v
	case *TimeBlockData:
		return *v
	case *TodoData:
		return *v
	case *TodoGroupData:
		return *v
	case *LifeDirectionData:
		return *v
	}
	return p
}

// MarshalActions serializes a slice of actions for persistence. A nil slice
// marshals to "" so "no directives" survives a cache round-trip.
func MarshalActions(actions []Action) (string, error) {
	if actions == nil {
		return "", nil
	}
	b, err := json.Marshal(actions)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// UnmarshalActions is the inverse of MarshalActions.
func UnmarshalActions(s string) ([]Action, error) {
	if s == "" {
		return nil, nil
	}
	var actions []Action
	if err := json.Unmarshal([]byte(s), &actions); err != nil {
		return nil, err
	}
	return actions, nil
}
