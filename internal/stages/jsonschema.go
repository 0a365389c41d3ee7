package stages

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

func init() {
	Register("json-schema", newJSONSchemaStage, Metadata{
		Name:           "JSON Schema",
		Description:    "Validate response against JSON Schema",
		IsNetworkStage: false,
		Options: []Option{
			{Name: "schema", Label: "Schema", Type: "object", Required: true, Description: "JSON Schema to validate against"},
		},
	})
}

// jsonSchemaStage validates the JSON body against a schema (spec
// §4.6) via santhosh-tekuri/jsonschema/v5, replacing
// original_source/stages/json_schema.py's hand-rolled validator.
type jsonSchemaStage struct {
	schema *jsonschema.Schema
}

func newJSONSchemaStage(options map[string]any) (Stage, error) {
	schemaRaw, ok := options["schema"]
	if !ok {
		return nil, &BadStageConfigError{StageType: "json-schema", Reason: "schema is required"}
	}

	encoded, err := json.Marshal(schemaRaw)
	if err != nil {
		return nil, &BadStageConfigError{StageType: "json-schema", Reason: fmt.Sprintf("schema must be JSON-serializable: %s", err)}
	}

	compiler := jsonschema.NewCompiler()
	const resourceName = "monitor-pipeline-schema.json"
	if err := compiler.AddResource(resourceName, bytes.NewReader(encoded)); err != nil {
		return nil, &BadStageConfigError{StageType: "json-schema", Reason: fmt.Sprintf("invalid schema: %s", err)}
	}
	schema, err := compiler.Compile(resourceName)
	if err != nil {
		return nil, &BadStageConfigError{StageType: "json-schema", Reason: fmt.Sprintf("failed to compile schema: %s", err)}
	}

	return &jsonSchemaStage{schema: schema}, nil
}

func (s *jsonSchemaStage) Name() string         { return "json-schema" }
func (s *jsonSchemaStage) Description() string  { return "Validate response against JSON Schema" }
func (s *jsonSchemaStage) IsNetworkStage() bool { return false }

func (s *jsonSchemaStage) Check(ctx context.Context, url string, verbose bool, rc *RunContext) models.StageResult {
	start := time.Now()

	if len(rc.ResponseBody) == 0 {
		return downResult(start, "no_response_body", nil)
	}

	var doc any
	if err := json.Unmarshal(rc.ResponseBody, &doc); err != nil {
		return downResult(start, "invalid_json", map[string]any{"error": err.Error()})
	}

	if err := s.schema.Validate(doc); err != nil {
		valErr, ok := err.(*jsonschema.ValidationError)
		firstPath := ""
		if ok && len(valErr.Causes) > 0 {
			firstPath = valErr.Causes[0].InstanceLocation
		} else if ok {
			firstPath = valErr.InstanceLocation
		}
		return models.StageResult{
			Status:    models.StatusDown,
			Message:   fmt.Sprintf("schema_violation: %s", firstPath),
			ElapsedMs: time.Since(start).Seconds() * 1000,
			Details:   map[string]any{"error": err.Error()},
		}
	}

	return models.StageResult{
		Status:    models.StatusUp,
		Message:   "valid",
		ElapsedMs: time.Since(start).Seconds() * 1000,
		Details:   map[string]any{"valid": true},
	}
}
