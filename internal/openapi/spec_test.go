package openapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	raw, err := JSON()
	require.NoError(t, err)

	var doc struct {
		OpenAPI string                 `json:"openapi"`
		Paths   map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "3.0.3", doc.OpenAPI)
	for _, path := range []string{"/health", "/predict", "/metrics", "/predictions", "/events", "/openapi"} {
		assert.Contains(t, doc.Paths, path)
	}
	assert.NotEmpty(t, YAML())
}

func TestAPIVersion(t *testing.T) {
	v, err := APIVersion()
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", v)
}
