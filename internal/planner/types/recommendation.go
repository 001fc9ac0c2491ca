package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// RecommendationType names the rule that produced a recommendation
type RecommendationType string

const (
	RecommendMissingDetails   RecommendationType = "missing_details"
	RecommendMissingChecklist RecommendationType = "missing_checklist"
	RecommendMissingLocation  RecommendationType = "missing_location"
	RecommendMissingReminder  RecommendationType = "missing_reminder"
	RecommendGroupTasks       RecommendationType = "group_tasks"
	RecommendHabitMismatch    RecommendationType = "habit_mismatch"
	RecommendTemplate         RecommendationType = "template"
	RecommendNearbyTask       RecommendationType = "nearby_task"
)

// ActionKind tags the variant of an Action
type ActionKind string

const (
	ActionEditDetails   ActionKind = "edit_details"
	ActionAddChecklist  ActionKind = "add_checklist"
	ActionSetLocation   ActionKind = "set_location"
	ActionAddReminder   ActionKind = "add_reminder"
	ActionGroupTasks    ActionKind = "group_tasks"
	ActionReschedule    ActionKind = "reschedule"
	ActionApplyTemplate ActionKind = "apply_template"
	ActionOpenTask      ActionKind = "open_task"
)

// Action is a typed recommendation action. The set of variants is closed:
// consumers switch on the concrete type.
type Action interface {
	Kind() ActionKind
	isAction()
}

// EditDetailsAction asks the user to complete the task text
type EditDetailsAction struct {
	TaskID string   `json:"taskId"`
	Fields []string `json:"fields"`
}

// AddChecklistAction proposes checklist items for a task
type AddChecklistAction struct {
	TaskID    string   `json:"taskId"`
	Suggested []string `json:"suggested,omitempty"`
}

// SetLocationAction proposes attaching a place to a task
type SetLocationAction struct {
	TaskID string `json:"taskId"`
	Query  string `json:"query"`
}

// AddReminderAction proposes a reminder time
type AddReminderAction struct {
	TaskID   string    `json:"taskId"`
	RemindAt time.Time `json:"remindAt"`
}

// GroupTasksAction proposes handling several tasks together
type GroupTasksAction struct {
	TaskIDs  []string `json:"taskIds"`
	Category string   `json:"category"`
}

// RescheduleAction proposes a new start time
type RescheduleAction struct {
	TaskID    string    `json:"taskId"`
	StartDate time.Time `json:"startDate"`
}

// ApplyTemplateAction proposes filling a task from a template
type ApplyTemplateAction struct {
	TaskID     string   `json:"taskId"`
	TemplateID string   `json:"templateId"`
	Subtasks   []string `json:"subtasks,omitempty"`
	Duration   int      `json:"duration,omitempty"`
}

// OpenTaskAction points the UI at a task
type OpenTaskAction struct {
	TaskID string `json:"taskId"`
}

func (EditDetailsAction) Kind() ActionKind   { return ActionEditDetails }
func (AddChecklistAction) Kind() ActionKind  { return ActionAddChecklist }
func (SetLocationAction) Kind() ActionKind   { return ActionSetLocation }
func (AddReminderAction) Kind() ActionKind   { return ActionAddReminder }
func (GroupTasksAction) Kind() ActionKind    { return ActionGroupTasks }
func (RescheduleAction) Kind() ActionKind    { return ActionReschedule }
func (ApplyTemplateAction) Kind() ActionKind { return ActionApplyTemplate }
func (OpenTaskAction) Kind() ActionKind      { return ActionOpenTask }

func (EditDetailsAction) isAction()   {}
func (AddChecklistAction) isAction()  {}
func (SetLocationAction) isAction()   {}
func (AddReminderAction) isAction()   {}
func (GroupTasksAction) isAction()    {}
func (RescheduleAction) isAction()    {}
func (ApplyTemplateAction) isAction() {}
func (OpenTaskAction) isAction()      {}

// Actions is the ordered action list of a recommendation.
// It encodes as [{"kind": ..., "payload": {...}}, ...].
type Actions []Action

type actionEnvelope struct {
	Kind    ActionKind      `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

func (a Actions) MarshalJSON() ([]byte, error) {
	out := make([]actionEnvelope, 0, len(a))
	for _, action := range a {
		payload, err := json.Marshal(action)
		if err != nil {
			return nil, err
		}
		out = append(out, actionEnvelope{Kind: action.Kind(), Payload: payload})
	}
	return json.Marshal(out)
}

func (a *Actions) UnmarshalJSON(data []byte) error {
	var envelopes []actionEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return err
	}
	out := make(Actions, 0, len(envelopes))
	for _, env := range envelopes {
		action, err := decodeAction(env)
		if err != nil {
			return err
		}
		out = append(out, action)
	}
	*a = out
	return nil
}

func decodeAction(env actionEnvelope) (Action, error) {
	switch env.Kind {
	case ActionEditDetails:
		var v EditDetailsAction
		err := json.Unmarshal(env.Payload, &v)
		return v, err
	case ActionAddChecklist:
		var v AddChecklistAction
		err := json.Unmarshal(env.Payload, &v)
		return v, err
	case ActionSetLocation:
		var v SetLocationAction
		err := json.Unmarshal(env.Payload, &v)
		return v, err
	case ActionAddReminder:
		var v AddReminderAction
		err := json.Unmarshal(env.Payload, &v)
		return v, err
	case ActionGroupTasks:
		var v GroupTasksAction
		err := json.Unmarshal(env.Payload, &v)
		return v, err
	case ActionReschedule:
		var v RescheduleAction
		err := json.Unmarshal(env.Payload, &v)
		return v, err
	case ActionApplyTemplate:
		var v ApplyTemplateAction
		err := json.Unmarshal(env.Payload, &v)
		return v, err
	case ActionOpenTask:
		var v OpenTaskAction
		err := json.Unmarshal(env.Payload, &v)
		return v, err
	default:
		return nil, fmt.Errorf("unknown action kind %q", env.Kind)
	}
}

// Recommendation proposes an organizational improvement
type Recommendation struct {
	ID          string             `json:"id"`
	Type        RecommendationType `json:"type"`
	Title       string             `json:"title"`
	Message     string             `json:"message"`
	Priority    Priority           `json:"priority"`
	Actions     Actions            `json:"actions"`
	Dismissable bool               `json:"dismissable"`
	TaskIDs     []string           `json:"taskIds,omitempty"`
	CreatedAt   time.Time          `json:"createdAt"`
	ExpiresAt   *time.Time         `json:"expiresAt,omitempty"`
	ViewedAt    *time.Time         `json:"viewedAt,omitempty"`
	ActedAt     *time.Time         `json:"actedAt,omitempty"`
}

// Expired reports whether the recommendation is past its expiry at now
func (r Recommendation) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && !now.Before(*r.ExpiresAt)
}
