package collector

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/BTreeMap/LeadPipe/internal/models"
	"github.com/invopop/jsonschema"
	jsonschemav5 "github.com/santhosh-tekuri/jsonschema/v5"
)

// schemaID is the resource name the submission schema is compiled under.
const schemaID = "schema://leadpipe/submission"

// Payload errors, reported to HTTP callers as 400.
var (
	ErrMalformedPayload = errors.New("malformed JSON payload")
	ErrSchemaViolation  = errors.New("payload does not match the submission schema")
)

// Schema validates raw request bodies against the JSON Schema reflected from models.Submission.
type Schema struct {
	raw      []byte
	compiled *jsonschemav5.Schema
}

// NewSubmissionSchema reflects and compiles the submission schema.
func NewSubmissionSchema() (*Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		AllowAdditionalProperties:  true,
		DoNotReference:             true,
		Anonymous:                  true,
	}
	reflected := reflector.Reflect(&models.Submission{})
	reflected.Title = "Contact submission"

	raw, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal submission schema: %w", err)
	}

	compiler := jsonschemav5.NewCompiler()
	if err := compiler.AddResource(schemaID, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to add submission schema resource: %w", err)
	}
	compiled, err := compiler.Compile(schemaID)
	if err != nil {
		return nil, fmt.Errorf("failed to compile submission schema: %w", err)
	}
	return &Schema{raw: raw, compiled: compiled}, nil
}

// JSON returns the schema document.
func (s *Schema) JSON() []byte {
	return s.raw
}

// Decode validates body against the schema and decodes it into a Submission.
func (s *Schema) Decode(body []byte) (models.Submission, error) {
	var doc interface{}
	if err := json.Unmarshal(body, &doc); err != nil {
		return models.Submission{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return models.Submission{}, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	var sub models.Submission
	if err := json.Unmarshal(body, &sub); err != nil {
		return models.Submission{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return sub, nil
}
