package config

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// decodeYAML reads the legacy document:
//
//	config:
//	  watch: [~/Downloads]
//	  file-types:
//	    images: [jpg, png]
//
// Category order follows the document so duplicate extensions resolve the
// same way they do in TOML.
func decodeYAML(r io.Reader, cfg *Config) error {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty document")
		}
		return err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return errors.New("expected a YAML document")
	}
	root := mappingValue(doc.Content[0], "config")
	if root == nil || root.Kind != yaml.MappingNode {
		return errors.New("missing top-level \"config\" mapping")
	}

	if watch := mappingValue(root, "watch"); watch != nil {
		var paths []string
		if err := watch.Decode(&paths); err != nil {
			return fmt.Errorf("config.watch: %w", err)
		}
		cfg.Watch.Paths = paths
	}

	if types := mappingValue(root, "file-types"); types != nil {
		if types.Kind != yaml.MappingNode {
			return fmt.Errorf("config.file-types: expected a mapping at line %d", types.Line)
		}
		categories := make([]Category, 0, len(types.Content)/2)
		for i := 0; i+1 < len(types.Content); i += 2 {
			name := types.Content[i].Value
			var exts []string
			if err := types.Content[i+1].Decode(&exts); err != nil {
				return fmt.Errorf("config.file-types.%s: %w", name, err)
			}
			categories = append(categories, Category{Name: name, Extensions: exts})
		}
		cfg.Categories = categories
	}
	return nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}
