package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"hajj-assistant/internal/common/validation"
)

var (
	ErrActivityNotFound = errors.New("activity not found")
	ErrDuplicate        = errors.New("activity already exists")
)

var implementationStatuses = map[string]bool{
	"planned": true, "in-progress": true, "completed": true, "verified": true,
}

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &reg, nil
}

// New returns an empty registry stamped with now.
func New(now time.Time) *ActivityRegistry {
	return &ActivityRegistry{
		Version:     "1.0.0",
		LastUpdated: now.UTC().Format(time.RFC3339),
		Activities:  []Activity{},
	}
}

// Save writes the registry as indented JSON, creating the directory.
func (r *ActivityRegistry) Save(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (*Activity, error) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], nil
		}
	}
	return nil, fmt.Errorf("%w: task type %s", ErrActivityNotFound, taskType)
}

func (r *ActivityRegistry) Add(a Activity, now time.Time) error {
	for _, existing := range r.Activities {
		if existing.ID == a.ID {
			return fmt.Errorf("%w: %s", ErrDuplicate, a.ID)
		}
	}
	if a.InputSchema == nil {
		a.InputSchema = map[string]interface{}{"type": "object"}
	}
	if a.OutputSchema == nil {
		a.OutputSchema = map[string]interface{}{"type": "object"}
	}
	if a.Timeout == "" {
		a.Timeout = "10s"
	}
	r.Activities = append(r.Activities, a)
	r.LastUpdated = now.UTC().Format(time.RFC3339)
	return nil
}

// Update sets one scalar field of the activity with id.
func (r *ActivityRegistry) Update(id, field, value string, now time.Time) error {
	var a *Activity
	for i := range r.Activities {
		if r.Activities[i].ID == id {
			a = &r.Activities[i]
			break
		}
	}
	if a == nil {
		return fmt.Errorf("%w: %s", ErrActivityNotFound, id)
	}

	switch field {
	case "status":
		if !implementationStatuses[value] {
			return fmt.Errorf("invalid status %q", value)
		}
		a.ImplementationStatus = value
	case "version":
		a.Version = value
	case "displayName":
		a.DisplayName = value
	case "description":
		a.Description = value
	case "category":
		a.Category = value
	case "taskType":
		a.TaskType = value
	case "timeout":
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid timeout value: %w", err)
		}
		a.Timeout = value
	case "retries":
		retries, err := strconv.Atoi(value)
		if err != nil || retries < 0 {
			return fmt.Errorf("invalid retries value %q", value)
		}
		a.Retries = retries
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	r.LastUpdated = now.UTC().Format(time.RFC3339)
	return nil
}

// Validate checks required fields, uniqueness of ids and task types, and
// that every schema compiles.
func (r *ActivityRegistry) Validate() error {
	if len(r.Activities) == 0 {
		return errors.New("registry contains no activities")
	}

	ids := make(map[string]bool)
	taskTypes := make(map[string]bool)
	for _, a := range r.Activities {
		if a.ID == "" {
			return errors.New("activity missing required field: ID")
		}
		if ids[a.ID] {
			return fmt.Errorf("duplicate activity ID: %s", a.ID)
		}
		ids[a.ID] = true

		if a.DisplayName == "" {
			return fmt.Errorf("activity %s missing required field: DisplayName", a.ID)
		}
		if a.Category == "" {
			return fmt.Errorf("activity %s missing required field: Category", a.ID)
		}
		if a.TaskType == "" {
			return fmt.Errorf("activity %s missing required field: TaskType", a.ID)
		}
		if taskTypes[a.TaskType] {
			return fmt.Errorf("duplicate task type: %s", a.TaskType)
		}
		taskTypes[a.TaskType] = true

		if a.Timeout != "" {
			if _, err := time.ParseDuration(a.Timeout); err != nil {
				return fmt.Errorf("activity %s has invalid timeout %q", a.ID, a.Timeout)
			}
		}
		if a.InputSchema != nil {
			if _, err := validation.Compile(a.InputSchema); err != nil {
				return fmt.Errorf("activity %s input schema: %w", a.ID, err)
			}
		}
		if a.OutputSchema != nil {
			if _, err := validation.Compile(a.OutputSchema); err != nil {
				return fmt.Errorf("activity %s output schema: %w", a.ID, err)
			}
		}
	}
	return nil
}

// ValidateInput checks job variables against the activity's input schema.
// An activity without a schema accepts anything.
func (a Activity) ValidateInput(vars map[string]interface{}) (*validation.ValidationResult, error) {
	if len(a.InputSchema) == 0 {
		return &validation.ValidationResult{Valid: true}, nil
	}
	if vars == nil {
		vars = map[string]interface{}{}
	}
	return validation.ValidateInput(vars, a.InputSchema)
}
