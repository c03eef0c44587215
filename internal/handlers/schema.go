package handlers

import (
	"errors"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// The length and finiteness of features are checked by the model so that
// they surface as prediction failures rather than shape errors.
const predictRequestSchema = `{
  "type": "object",
  "required": ["features"],
  "properties": {
    "features": {
      "type": "array",
      "items": {"type": "number"}
    }
  }
}`

var predictSchema = gojsonschema.NewStringLoader(predictRequestSchema)

// validateShape checks a syntactically valid JSON body against the request
// schema and returns the schema violations joined into one error.
func validateShape(body []byte) error {
	result, err := gojsonschema.Validate(predictSchema, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}
