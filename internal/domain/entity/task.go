package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

const TaskSchemaVersion = 1

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

type TaskType string

const (
	TaskAnalyzeURL        TaskType = "analyze_url"
	TaskFollowLinks       TaskType = "follow_links"
	TaskDownloadFile      TaskType = "download_file"
	TaskSearchAnalyze     TaskType = "search_and_analyze"
	TaskExtractData       TaskType = "extract_data"
	TaskChain             TaskType = "chain"
	TaskAutonomousBrowser TaskType = "autonomous_browser_task"
)

// Task is a unit of work. On the wire the envelope fields and the
// kind-specific params share one flat JSON object.
type Task struct {
	Version     int
	ID          string
	Type        TaskType
	Description string
	Params      TaskParams
	StopOnError bool
	Status      TaskStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	Error       string
	Result      *TaskResult
}

type TaskSummary struct {
	ID          string     `json:"id"`
	Type        TaskType   `json:"type"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
}

func NewTask(params TaskParams) Task {
	return Task{
		Version: TaskSchemaVersion,
		Type:    params.Kind(),
		Params:  params,
		Status:  TaskStatusPending,
	}
}

// URL returns the primary page the task targets, if any.
func (t Task) URL() string {
	switch p := t.Params.(type) {
	case *AnalyzeURLParams:
		return p.URL
	case *FollowLinksParams:
		return p.StartURL
	case *DownloadFileParams:
		return p.URL
	case *ExtractDataParams:
		return p.URL
	case *AutonomousParams:
		return p.URL
	}
	return ""
}

func (t Task) Goal() string {
	if p, ok := t.Params.(*AutonomousParams); ok {
		return p.Goal
	}
	return ""
}

// Label is the description used for similarity matching.
func (t Task) Label() string {
	if t.Description != "" {
		return t.Description
	}
	return t.Goal()
}

func (t Task) Summary() TaskSummary {
	return TaskSummary{
		ID:          t.ID,
		Type:        t.Type,
		Description: t.Label(),
		Status:      t.Status,
	}
}

type taskEnvelope struct {
	Version     int         `json:"version"`
	ID          string      `json:"id,omitempty"`
	Type        TaskType    `json:"type"`
	Description string      `json:"description,omitempty"`
	StopOnError bool        `json:"stopOnError,omitempty"`
	Status      TaskStatus  `json:"status,omitempty"`
	CreatedAt   *time.Time  `json:"createdAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	Error       string      `json:"error,omitempty"`
	Result      *TaskResult `json:"result,omitempty"`
}

func (t Task) MarshalJSON() ([]byte, error) {
	env := taskEnvelope{
		Version:     t.Version,
		ID:          t.ID,
		Type:        t.Type,
		Description: t.Description,
		StopOnError: t.StopOnError,
		Status:      t.Status,
		CompletedAt: t.CompletedAt,
		Error:       t.Error,
		Result:      t.Result,
	}
	if !t.CreatedAt.IsZero() {
		created := t.CreatedAt
		env.CreatedAt = &created
	}

	fields := make(map[string]json.RawMessage)
	if t.Params != nil {
		raw, err := json.Marshal(t.Params)
		if err != nil {
			return nil, fmt.Errorf("marshal %s params: %w", t.Type, err)
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("flatten %s params: %w", t.Type, err)
		}
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	var envFields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envFields); err != nil {
		return nil, err
	}
	for k, v := range envFields {
		fields[k] = v
	}

	return json.Marshal(fields)
}

func (t *Task) UnmarshalJSON(data []byte) error {
	var env taskEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	*t = Task{
		Version:     env.Version,
		ID:          env.ID,
		Type:        env.Type,
		Description: env.Description,
		StopOnError: env.StopOnError,
		Status:      env.Status,
		CompletedAt: env.CompletedAt,
		Error:       env.Error,
		Result:      env.Result,
	}
	if env.CreatedAt != nil {
		t.CreatedAt = *env.CreatedAt
	}
	if t.Version == 0 {
		t.Version = TaskSchemaVersion
	}
	if t.Status == "" {
		t.Status = TaskStatusPending
	}

	params := NewParams(t.Type)
	if params == nil {
		return nil
	}
	if err := json.Unmarshal(data, params); err != nil {
		return fmt.Errorf("decode %s params: %w", t.Type, err)
	}
	t.Params = params
	return nil
}
