package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/sourceplane/slurmster/internal/errors"
)

//go:embed config.schema.yaml
var configSchemaYAML []byte

const configSchemaURI = "slurmster://schema/config.json"

// Validator handles JSON schema validation of experiment files
type Validator struct {
	configSchema *jsonschema.Schema
}

// NewValidator compiles the embedded experiment-file schema
func NewValidator() (*Validator, error) {
	configSchema, err := compile(configSchemaURI, configSchemaYAML)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load experiment schema")
	}
	return &Validator{configSchema: configSchema}, nil
}

// ValidateConfig validates a decoded experiment document.
// The document may come straight from yaml.Unmarshal into interface{}.
func (v *Validator) ValidateConfig(data interface{}) error {
	if v.configSchema == nil {
		return errors.New("experiment schema not loaded")
	}

	doc, err := toJSONValue(data)
	if err != nil {
		return errors.Wrap(err, "failed to prepare document for validation")
	}

	if err := v.configSchema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return errors.WithDetail(
				errors.Configurationf("experiment file does not match schema: %s", leafMessages(verr)),
				verr.Error(),
			)
		}
		return errors.Configurationf("experiment file does not match schema: %v", err)
	}
	return nil
}

// ValidateConfigYAML parses raw YAML and validates it
func (v *Validator) ValidateConfigYAML(data []byte) error {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errors.Configurationf("failed to parse experiment YAML: %v", err)
	}
	if doc == nil {
		return errors.Configurationf("experiment file is empty")
	}
	return v.ValidateConfig(doc)
}

// compile converts a YAML schema to JSON and compiles it
func compile(uri string, source []byte) (*jsonschema.Schema, error) {
	// Parse YAML to interface{} (supports both YAML and JSON)
	var schemaData interface{}
	if err := yaml.Unmarshal(source, &schemaData); err != nil {
		return nil, errors.Wrap(err, "failed to parse schema")
	}

	// Convert to JSON for schema compiler
	jsonData, err := json.Marshal(schemaData)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal schema")
	}

	compiler := jsonschema.NewCompiler()
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if url == uri {
			return io.NopCloser(bytes.NewReader(jsonData)), nil
		}
		return nil, errors.Newf("external schema reference not supported: %s", url)
	}

	schema, err := compiler.Compile(uri)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile schema")
	}
	return schema, nil
}

// toJSONValue normalises YAML-decoded values into the shapes encoding/json produces
func toJSONValue(data interface{}) (interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// leafMessages flattens the innermost causes into one line
func leafMessages(verr *jsonschema.ValidationError) string {
	var msgs []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			loc := e.InstanceLocation
			if loc == "" {
				loc = "/"
			}
			msgs = append(msgs, loc+": "+e.Message)
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(verr)
	return strings.Join(msgs, "; ")
}
