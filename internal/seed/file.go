package seed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"github.com/dukerupert/taskcal/internal/recurrence"
)

// File is the seed document: people to create and tasks to load.
type File struct {
	Users []User `json:"users"`
	Tasks []Task `json:"tasks"`
}

type User struct {
	FirstName string `json:"first_name"`
	Password  string `json:"password"`
	Admin     bool   `json:"admin"`
}

type Task struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	ForEveryone bool                `json:"for_everyone"`
	Assignees   []string            `json:"assignees"`
	CreatedBy   string              `json:"created_by"`
	Schedules   []recurrence.Record `json:"schedules"`
}

// Load reads a seed file. Files ending in .yaml or .yml are YAML; anything
// else is JSON.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes data, rejecting unknown fields in either format.
func Parse(path string, data []byte) (*File, error) {
	j, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(j))
	dec.DisallowUnknownFields()

	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	return &f, nil
}

// coerceToJSONBytes converts YAML to JSON so both formats share the strict
// JSON decoder.
func coerceToJSONBytes(path string, data []byte) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("yaml unmarshal: %w", err)
	}

	j, err := json.Marshal(normalizeYAML(v))
	if err != nil {
		return nil, fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, nil
}

// normalizeYAML makes every map key a string and renders timestamps as
// calendar dates.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		for k, v := range x {
			x[k] = normalizeYAML(v)
		}
		return x
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	case time.Time:
		return recurrence.FormatDate(x)
	default:
		return in
	}
}
