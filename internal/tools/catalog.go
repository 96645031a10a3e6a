// Package tools maintains the catalogue of tools the planner can schedule.
// The built-in set can be replaced wholesale from a YAML file, and replaced
// again on reload without disturbing readers mid-swap.
package tools

import (
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Descriptor describes one schedulable tool.
type Descriptor struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Category    string   `yaml:"category,omitempty" json:"category,omitempty"`
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Produces    []string `yaml:"produces,omitempty" json:"produces,omitempty"`
}

// UnmarshalYAML applies the enabled-by-default rule before decoding, since
// Go's zero value for bool is false.
func (d *Descriptor) UnmarshalYAML(value *yaml.Node) error {
	type raw Descriptor
	out := raw{Enabled: true}
	if err := value.Decode(&out); err != nil {
		return err
	}
	*d = Descriptor(out)
	return nil
}

type catalogFile struct {
	Tools []Descriptor `yaml:"tools"`
}

// Catalog is the thread-safe tool registry.
type Catalog struct {
	mu    sync.RWMutex
	tools map[string]Descriptor
}

// NewCatalog returns a catalog seeded with the built-in tool set.
func NewCatalog() *Catalog {
	c := &Catalog{tools: make(map[string]Descriptor)}
	for _, d := range Defaults() {
		c.tools[d.Name] = d
	}
	return c
}

// Defaults returns the built-in tool set.
func Defaults() []Descriptor {
	return []Descriptor{
		{
			Name:        "qa_engine",
			Description: "Answers questions directly from the language model's knowledge.",
			Category:    "qa",
			Enabled:     true,
		},
		{
			Name:        "wikipedia_search",
			Description: "Retrieves encyclopedia background for a topic from Wikipedia.",
			Category:    "encyclopedia",
			Enabled:     true,
		},
		{
			Name:        "arxiv_summarizer",
			Description: "Finds and summarizes academic papers on ArXiv.",
			Category:    "papers",
			Enabled:     true,
		},
		{
			Name:        "news_fetcher",
			Description: "Fetches recent news coverage for a topic.",
			Category:    "news",
			Enabled:     true,
		},
		{
			Name:        "sentiment_analyzer",
			Description: "Scores the sentiment of retrieved text.",
			Category:    "sentiment",
			Enabled:     true,
		},
		{
			Name:        "pdf_parser",
			Description: "Extracts text content from uploaded PDF documents.",
			Category:    "utility",
			Enabled:     true,
		},
		{
			Name:        "chart_generator",
			Description: "Renders data visualizations as PNG images.",
			Category:    "generator",
			Enabled:     true,
			Produces:    []string{"chart"},
		},
		{
			Name:        "document_generator",
			Description: "Produces PDF reports from synthesized content.",
			Category:    "generator",
			Enabled:     true,
			Produces:    []string{"document"},
		},
	}
}

// LoadFile replaces the catalog with the tools defined in a YAML file.
// The current catalog is kept untouched when the file fails to parse or
// validate.
func (c *Catalog) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open tool catalog %s: %w", path, err)
	}
	defer f.Close()

	if err := c.load(f); err != nil {
		return fmt.Errorf("load tool catalog %s: %w", path, err)
	}
	return nil
}

func (c *Catalog) load(r io.Reader) error {
	var file catalogFile
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&file); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if len(file.Tools) == 0 {
		return fmt.Errorf("catalog defines no tools")
	}

	next := make(map[string]Descriptor, len(file.Tools))
	for _, d := range file.Tools {
		if err := validateDescriptor(&d); err != nil {
			return err
		}
		if _, exists := next[d.Name]; exists {
			return fmt.Errorf("duplicate tool name '%s'", d.Name)
		}
		next[d.Name] = d
	}

	c.mu.Lock()
	c.tools = next
	c.mu.Unlock()
	return nil
}

func validateDescriptor(d *Descriptor) error {
	if d.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	for _, r := range d.Name {
		if !isValidNameChar(r) {
			return fmt.Errorf("tool name '%s' contains invalid character: %q (allowed: a-z, 0-9, -, _)", d.Name, r)
		}
	}
	if d.Description == "" {
		return fmt.Errorf("tool '%s' has no description", d.Name)
	}
	return nil
}

func isValidNameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') ||
		r == '-' || r == '_'
}

// Get returns the descriptor for a tool name.
func (c *Catalog) Get(name string) (Descriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.tools[name]
	return d, ok
}

// List returns every registered tool sorted by name.
func (c *Catalog) List() []Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Descriptor, 0, len(c.tools))
	for _, d := range c.tools {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Enabled returns the enabled tools sorted by name.
func (c *Catalog) Enabled() []Descriptor {
	all := c.List()
	out := all[:0]
	for _, d := range all {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of registered tools.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}
