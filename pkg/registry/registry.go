// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, err
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Validate rejects registries with duplicate or empty task types.
func (r *ActivityRegistry) Validate() error {
	seen := make(map[string]string, len(r.Activities))
	for _, a := range r.Activities {
		if a.TaskType == "" {
			return fmt.Errorf("activity %q has no task type", a.ID)
		}
		if prev, ok := seen[a.TaskType]; ok {
			return fmt.Errorf("task type %q declared by both %q and %q", a.TaskType, prev, a.ID)
		}
		seen[a.TaskType] = a.ID
	}
	return nil
}

func (r *ActivityRegistry) FindByTaskType(taskType string) (*Activity, bool) {
	for i := range r.Activities {
		if r.Activities[i].TaskType == taskType {
			return &r.Activities[i], true
		}
	}
	return nil, false
}

func (r *ActivityRegistry) ByCategory(category string) []Activity {
	var out []Activity
	for _, a := range r.Activities {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}
