package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Explain returns the effective value at the given YAML-like path and its
// source. Paths follow the file layout, for example:
//
//	transport
//	ipc.endpoint
//	log.level
//	reconciler.stale_after_seconds
//	properties.<name>
//	authority.reject_ops
func Explain(res *LoadResult, path string) (any, Source, error) {
	if res == nil || res.Config == nil {
		return nil, Source{}, fmt.Errorf("no config loaded")
	}
	if path == "" {
		return nil, Source{}, fmt.Errorf("path is empty")
	}

	value, err := lookupValue(res.Config, path)
	if err != nil {
		return nil, Source{}, err
	}

	if src, ok := res.Sources[path]; ok {
		return value, src, nil
	}
	return value, Source{Kind: SourceDefault}, nil
}

func lookupValue(cfg *Config, path string) (any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var cur any = tree
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("unknown config path %q", path)
		}
		if cur, ok = m[part]; !ok {
			return nil, fmt.Errorf("unknown config path %q", path)
		}
	}
	return cur, nil
}
