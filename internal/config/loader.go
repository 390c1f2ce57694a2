package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides DefaultConfigPath when set.
const EnvConfigPath = "TREEMIRROR_CONFIG"

type SourceKind string

const (
	SourceDefault SourceKind = "default"
	SourceFile    SourceKind = "file"
)

// Source records where an effective value came from.
type Source struct {
	Kind   SourceKind
	File   string
	Line   int
	Column int
}

func fileSource(file string, n *yaml.Node) Source {
	return Source{Kind: SourceFile, File: file, Line: n.Line, Column: n.Column}
}

type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML path -> last file that set it
	Files   []string          // loaded files, includes before their includer
}

// Load reads the configuration from the standard location.
func Load() (*Config, error) {
	res, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadWithSources loads the file named by $TREEMIRROR_CONFIG, or the
// default path, and keeps per-key sources for `config explain`.
func LoadWithSources() (*LoadResult, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return LoadFromPath(path)
	}
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads path and its includes. A missing file yields the
// defaults.
func LoadFromPath(path string) (*LoadResult, error) {
	l := &loader{
		seen:    make(map[string]bool),
		sources: make(map[string]Source),
	}

	_, err := os.Stat(path)
	switch {
	case err == nil:
		if err := l.load(path, nil); err != nil {
			return nil, err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	cfg := BuildEffectiveConfig(l.raw)
	if err := cfg.Validate(); err != nil {
		return nil, l.withSource(err)
	}
	return &LoadResult{Config: cfg, Sources: l.sources, Files: l.files}, nil
}

// loader merges a file tree depth first: every include is applied before
// the file that names it, so the includer wins.
type loader struct {
	raw     RawConfig
	sources map[string]Source
	files   []string
	seen    map[string]bool
}

// include is one entry of a file's include list.
type include struct {
	path string
	at   Source
}

func (l *loader) load(path string, chain []string) error {
	canon, err := canonicalPath(path)
	if err != nil {
		return err
	}
	if slices.Contains(chain, canon) {
		return fmt.Errorf("include cycle detected: %s -> %s", strings.Join(chain, " -> "), canon)
	}
	if l.seen[canon] {
		return nil
	}
	l.seen[canon] = true

	data, err := os.ReadFile(canon)
	if err != nil {
		return fmt.Errorf("%s: failed to read: %w", canon, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%s: failed to parse yaml: %w", canon, err)
	}
	var raw RawConfig
	if err := decodeStrict(data, &raw); err != nil {
		return fmt.Errorf("%s: %w", canon, err)
	}

	sources, includes := scanDocument(&doc, canon)
	chain = append(chain, canon)
	for _, inc := range includes {
		paths, err := expandInclude(canon, inc.path)
		if err != nil {
			return fmt.Errorf("%s:%d:%d: include %q: %w", inc.at.File, inc.at.Line, inc.at.Column, inc.path, err)
		}
		for _, p := range paths {
			if err := l.load(p, chain); err != nil {
				return err
			}
		}
	}

	l.raw = l.raw.merge(raw)
	for key, src := range sources {
		l.sources[key] = src
	}
	l.files = append(l.files, canon)
	return nil
}

// withSource points a validation error at the file position that set the
// offending key.
func (l *loader) withSource(err error) error {
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Path == "" {
		return err
	}
	if src, ok := l.sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}

func decodeStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}
	return abs, nil
}

// expandInclude resolves one include entry. Environment variables and a
// leading ~ are expanded, relative paths are taken from the including
// file's directory, and a directory expands to its *.yaml and *.yml files
// in name order.
func expandInclude(baseFile, entry string) ([]string, error) {
	path := os.ExpandEnv(entry)
	if path == "" {
		return nil, fmt.Errorf("path is empty")
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(baseFile), path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, ent := range entries {
		switch strings.ToLower(filepath.Ext(ent.Name())) {
		case ".yaml", ".yml":
			if !ent.IsDir() {
				files = append(files, filepath.Join(path, ent.Name()))
			}
		}
	}
	// ReadDir already sorts by name.
	return files, nil
}

// scanDocument records the position of every key in doc and collects the
// top-level include list.
func scanDocument(doc *yaml.Node, file string) (map[string]Source, []include) {
	sources := make(map[string]Source)
	root := doc
	if root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			return sources, nil
		}
		root = root.Content[0]
	}
	recordKeys(root, file, "", sources)

	var includes []include
	if root.Kind != yaml.MappingNode {
		return sources, nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != "include" {
			continue
		}
		val := root.Content[i+1]
		switch val.Kind {
		case yaml.ScalarNode:
			includes = append(includes, include{path: val.Value, at: fileSource(file, val)})
		case yaml.SequenceNode:
			for _, item := range val.Content {
				if item.Kind == yaml.ScalarNode {
					includes = append(includes, include{path: item.Value, at: fileSource(file, item)})
				}
			}
		}
	}
	return sources, includes
}

func recordKeys(node *yaml.Node, file, prefix string, out map[string]Source) {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, val := node.Content[i].Value, node.Content[i+1]
			if prefix != "" {
				key = prefix + "." + key
			}
			out[key] = fileSource(file, val)
			recordKeys(val, file, key, out)
		}
	case yaml.SequenceNode:
		if prefix != "" {
			out[prefix] = fileSource(file, node)
		}
	}
}
