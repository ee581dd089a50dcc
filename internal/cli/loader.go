package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/seantiz/timegrid/internal/model"
)

// LoadRequest reads a solve request from a .json, .yaml or .yml file.
// JSON input is forwarded to the engine byte for byte; YAML input is
// re-encoded as JSON from the decoded request.
func LoadRequest(path string) (model.InvocationRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.InvocationRequest{}, fmt.Errorf("read request: %w", err)
	}

	var req model.InvocationRequest
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, &req.Payload); err != nil {
			return model.InvocationRequest{}, fmt.Errorf("parse %s: %w", path, err)
		}
		req.Raw = data
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &req.Payload); err != nil {
			return model.InvocationRequest{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return model.InvocationRequest{}, fmt.Errorf("unsupported request file extension %q", ext)
	}
	return req, nil
}
