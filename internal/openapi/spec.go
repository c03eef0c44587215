// Package openapi embeds the service's OpenAPI document.
package openapi

import (
	_ "embed"
	"sync"

	"sigs.k8s.io/yaml"
)

//go:embed spec.yaml
var specYAML []byte

var specJSON = sync.OnceValues(func() ([]byte, error) {
	return yaml.YAMLToJSON(specYAML)
})

// JSON returns the document converted to JSON. The conversion runs once.
func JSON() ([]byte, error) {
	return specJSON()
}

// YAML returns the embedded document as written.
func YAML() []byte {
	return specYAML
}

// APIVersion reports info.version from the document.
func APIVersion() (string, error) {
	var doc struct {
		Info struct {
			Version string `json:"version"`
		} `json:"info"`
	}
	if err := yaml.Unmarshal(specYAML, &doc); err != nil {
		return "", err
	}
	return doc.Info.Version, nil
}
