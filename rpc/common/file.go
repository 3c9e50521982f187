package common

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// ReadConfigFile reads a YAML configuration file. The top level keys are the
// flag names (e.g. "log-level", "cluster-mode"), nested maps are flattened
// with "-" (e.g. raft: {rtt-millisecond: 100} is "raft-rtt-millisecond").
func ReadConfigFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	out := make(map[string]interface{}, len(raw))
	flatten("", raw, out)
	return out, nil
}

func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := strings.ToLower(k)
		if prefix != "" {
			key = prefix + "-" + key
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}
