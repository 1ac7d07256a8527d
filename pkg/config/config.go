// Copyright 2026 Popform Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/JoshuaAmaju/popform/pkg/field"
	"github.com/JoshuaAmaju/popform/pkg/pathstore"
)

// FormConfig declares a form instance: its seeds and its fields.
type FormConfig struct {
	// ID identifies the form in logs and metrics
	ID string `yaml:"id"`
	// InitialValues seeds the values store, keyed by dotted field path
	InitialValues map[string]any `yaml:"initialValues,omitempty"`
	// InitialErrors seeds the errors store, keyed by dotted field path
	InitialErrors map[string]string `yaml:"initialErrors,omitempty"`
	// Fields are the fields to spawn at startup
	Fields []FieldConfig `yaml:"fields,omitempty"`
}

// FieldConfig declares one field and its built-in validation rules.
type FieldConfig struct {
	// ID is the field's dotted path id
	ID string `yaml:"id"`
	// Required rejects absent or empty values
	Required bool `yaml:"required,omitempty"`
	// MinLength is the minimum string length, when > 0
	MinLength int `yaml:"minLength,omitempty"`
	// Pattern is a regular expression the string value must match, when set
	Pattern string `yaml:"pattern,omitempty"`
}

// ParseFormConfig parses and validates a YAML form declaration.
func ParseFormConfig(data []byte) (FormConfig, error) {
	var cfg FormConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FormConfig{}, fmt.Errorf("failed to parse form config: %w", err)
	}

	if cfg.ID == "" {
		return FormConfig{}, fmt.Errorf("form config is missing an id")
	}

	seen := make(map[string]struct{}, len(cfg.Fields))
	for _, f := range cfg.Fields {
		if f.ID == "" {
			return FormConfig{}, fmt.Errorf("field config in form %q is missing an id", cfg.ID)
		}
		if _, dup := seen[f.ID]; dup {
			return FormConfig{}, fmt.Errorf("duplicate field id %q in form %q", f.ID, cfg.ID)
		}
		seen[f.ID] = struct{}{}

		if f.Pattern != "" {
			if _, err := regexp.Compile(f.Pattern); err != nil {
				return FormConfig{}, fmt.Errorf("invalid pattern for field %q: %w", f.ID, err)
			}
		}
	}

	return cfg, nil
}

// LoadFormConfig reads and parses a YAML form declaration from disk.
func LoadFormConfig(path string) (FormConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FormConfig{}, fmt.Errorf("failed to read form config: %w", err)
	}

	return ParseFormConfig(data)
}

// InitialErrorValues converts the error seed into the form the supervisor
// accepts.
func (c FormConfig) InitialErrorValues() map[string]any {
	if len(c.InitialErrors) == 0 {
		return nil
	}

	out := make(map[string]any, len(c.InitialErrors))
	for id, msg := range c.InitialErrors {
		out[id] = msg
	}

	return out
}

// Validator builds a field validator from the declared rules.
func (f FieldConfig) Validator() field.Validator {
	var pattern *regexp.Regexp
	if f.Pattern != "" {
		// Validity was checked at parse time.
		pattern = regexp.MustCompile(f.Pattern)
	}

	rules := f

	return func(ctx context.Context, value any, values *pathstore.Store) error {
		if value == nil {
			if rules.Required {
				return fmt.Errorf("%s is required", rules.ID)
			}
			return nil
		}

		text, isText := value.(string)
		if rules.Required && isText && text == "" {
			return fmt.Errorf("%s is required", rules.ID)
		}
		// Length rules are user-facing, so count characters, not bytes.
		if rules.MinLength > 0 && isText && utf8.RuneCountInString(text) < rules.MinLength {
			return fmt.Errorf("%s must be at least %d characters", rules.ID, rules.MinLength)
		}
		if pattern != nil && isText && !pattern.MatchString(text) {
			return fmt.Errorf("%s has an invalid format", rules.ID)
		}

		return nil
	}
}
