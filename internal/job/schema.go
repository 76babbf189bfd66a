package job

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const inputSchema = `{
  "type": "object",
  "required": ["title", "category", "summary", "coverImage"],
  "properties": {
    "title":      {"type": "string", "minLength": 1, "maxLength": 200},
    "category":   {"type": "string", "minLength": 1, "maxLength": 64},
    "summary":    {"type": "string", "minLength": 1, "maxLength": 5000},
    "coverImage": {"type": "string", "minLength": 1, "maxLength": 2048},
    "budget":     {"type": ["string", "number", "null"]},
    "postedBy":   {"type": "string"},
    "userEmail":  {"type": "string"}
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("job.json", strings.NewReader(inputSchema)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile("job.json")
	})
	return schema, schemaErr
}

// ValidateDocument checks a raw create/update request body against the job
// input schema.
func ValidateDocument(data []byte) error {
	s, err := compiledSchema()
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: malformed json", ErrInvalidInput)
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
