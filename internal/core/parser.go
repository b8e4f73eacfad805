package core

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseDefinition checks that data is a YAML document and returns it as the
// opaque definition sent to the scheduler.
func ParseDefinition(data []byte) (string, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse job definition: %w", err)
	}
	if len(doc) == 0 {
		return "", fmt.Errorf("parse job definition: empty document")
	}
	return string(data), nil
}

// LoadDefinition reads a job definition file.
func LoadDefinition(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return ParseDefinition(data)
}

// ValidateDefinition asks the scheduler to validate definition without
// running it.
func ValidateDefinition(ctx context.Context, sched Scheduler, definition string) error {
	errs, err := sched.Validate(ctx, definition)
	if err != nil {
		return err
	}
	if len(errs) > 0 {
		return fmt.Errorf("error in LAVA job definition: %v", errs)
	}
	return nil
}
