// Package schema gates every data schema document before it reaches the
// store. It is the sole guard against persisting malformed schemas.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/telemetrydev/datapoint/internal/definition"
)

// Validate reports whether doc is a structurally valid JSON Schema. Any
// failure, malformed JSON or inconsistent schema keywords, is wrapped in
// definition.ErrInvalidSchema. Pure function, no state. It satisfies
// definition.SchemaValidator.
func Validate(doc json.RawMessage) error {
	if len(doc) == 0 {
		return fmt.Errorf("%w: empty document", definition.ErrInvalidSchema)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("definition.json", bytes.NewReader(doc)); err != nil {
		return fmt.Errorf("%w: %v", definition.ErrInvalidSchema, err)
	}
	if _, err := compiler.Compile("definition.json"); err != nil {
		return fmt.Errorf("%w: %v", definition.ErrInvalidSchema, err)
	}
	return nil
}
