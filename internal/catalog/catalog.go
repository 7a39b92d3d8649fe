// Package catalog holds the task categories clients can post under.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultCategories []byte

var ErrEmptyCatalog = errors.New("catalog has no categories")

type Catalog struct {
	names []string
	index map[string]string
}

type document struct {
	Categories []string `yaml:"categories"`
}

// Default returns the catalog shipped with the binary.
func Default() *Catalog {
	c, err := Parse(defaultCategories)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded categories: %v", err))
	}
	return c
}

// Load reads a catalog from path, or returns Default when path is empty.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}

	c := &Catalog{index: make(map[string]string, len(doc.Categories))}
	for _, name := range doc.Categories {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, dup := c.index[key]; dup {
			continue
		}
		c.index[key] = name
		c.names = append(c.names, name)
	}
	if len(c.names) == 0 {
		return nil, ErrEmptyCatalog
	}
	return c, nil
}

// Names returns the categories in file order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.names))
	copy(out, c.names)
	return out
}

// Canonical matches name case-insensitively and returns its catalog spelling.
func (c *Catalog) Canonical(name string) (string, bool) {
	canonical, ok := c.index[strings.ToLower(strings.TrimSpace(name))]
	return canonical, ok
}
