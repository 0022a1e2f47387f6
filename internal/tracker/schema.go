package tracker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/nibzard/baton/internal/utils"
)

// ErrInvalidPayload indicates gh returned JSON that does not look like an issue.
var ErrInvalidPayload = errors.New("invalid issue payload")

const issueSchemaURL = "https://github.com/nibzard/baton/schemas/issue.schema.json"

// issueSchema describes the subset of `gh issue view --json body,labels`
// that the protocol depends on.
const issueSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "Tracker Issue",
  "type": "object",
  "required": ["body", "labels"],
  "properties": {
    "body": { "type": "string" },
    "labels": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": { "type": "string" }
        }
      }
    }
  }
}`

type issuePayload struct {
	Body   string `json:"body"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

type payloadValidator struct {
	schema *jsonschema.Schema
}

func newPayloadValidator() (*payloadValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(issueSchemaURL, strings.NewReader(issueSchema)); err != nil {
		return nil, fmt.Errorf("add issue schema: %w", err)
	}
	schema, err := compiler.Compile(issueSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile issue schema: %w", err)
	}
	return &payloadValidator{schema: schema}, nil
}

func (p *payloadValidator) decode(data []byte) (issuePayload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return issuePayload{}, fmt.Errorf("%w: empty output", ErrInvalidPayload)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return issuePayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.schema.Validate(raw); err != nil {
		return issuePayload{}, fmt.Errorf("%w: %s", ErrInvalidPayload, describeValidationError(err))
	}

	var issue issuePayload
	if err := json.Unmarshal(data, &issue); err != nil {
		return issuePayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return issue, nil
}

func describeValidationError(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	var msgs []string
	collectLeafErrors(ve, &msgs)
	if len(msgs) == 0 {
		return ve.Message
	}
	return strings.Join(msgs, "; ")
}

func collectLeafErrors(ve *jsonschema.ValidationError, msgs *[]string) {
	if len(ve.Causes) == 0 {
		path := utils.JSONPointerToPath(ve.InstanceLocation)
		if path == "" {
			path = "(root)"
		}
		*msgs = append(*msgs, fmt.Sprintf("%s: %s", path, ve.Message))
		return
	}
	for _, cause := range ve.Causes {
		collectLeafErrors(cause, msgs)
	}
}
