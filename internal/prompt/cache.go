// Package prompt renders the instructions sent to the remote service.
// Templates are embedded; a directory of same-named files can override them.
package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"
)

//go:embed templates/*.tmpl
var embedded embed.FS

// Template names. Each template defines a "system" and a "user" block.
const (
	Vision        = "vision"
	Structure     = "structure"
	Contexts      = "contexts"
	Understanding = "understanding"
)

// Names lists every template the pipeline needs.
var Names = []string{Vision, Structure, Contexts, Understanding}

// Cache caches parsed prompt templates to avoid repeated reads
type Cache struct {
	mu          sync.RWMutex
	templates   map[string]*template.Template
	overrideDir string
}

// NewCache creates a cache. When overrideDir is non-empty, <name>.tmpl in that
// directory replaces the embedded template of the same name.
func NewCache(overrideDir string) *Cache {
	return &Cache{
		templates:   make(map[string]*template.Template),
		overrideDir: overrideDir,
	}
}

// Load returns the parsed template for name, parsing it on first use.
func (c *Cache) Load(name string) (*template.Template, error) {
	c.mu.RLock()
	if tmpl, ok := c.templates[name]; ok {
		c.mu.RUnlock()
		return tmpl, nil
	}
	c.mu.RUnlock()

	content, err := c.read(name)
	if err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).Option("missingkey=error").Parse(content)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", name, err)
	}
	for _, block := range []string{"system", "user"} {
		if tmpl.Lookup(block) == nil {
			return nil, fmt.Errorf("template %s: missing %q block", name, block)
		}
	}

	c.mu.Lock()
	c.templates[name] = tmpl
	c.mu.Unlock()

	return tmpl, nil
}

func (c *Cache) read(name string) (string, error) {
	file := name + ".tmpl"
	if c.overrideDir != "" {
		content, err := os.ReadFile(filepath.Join(c.overrideDir, file))
		switch {
		case err == nil:
			return string(content), nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("reading prompt override: %w", err)
		}
	}

	content, err := embedded.ReadFile("templates/" + file)
	if err != nil {
		return "", fmt.Errorf("unknown prompt %q: %w", name, err)
	}
	return string(content), nil
}

// Render executes the system and user blocks of template name with data.
func (c *Cache) Render(name string, data any) (system, user string, err error) {
	tmpl, err := c.Load(name)
	if err != nil {
		return "", "", err
	}

	var sb, ub strings.Builder
	if err := tmpl.ExecuteTemplate(&sb, "system", data); err != nil {
		return "", "", fmt.Errorf("rendering %s system prompt: %w", name, err)
	}
	if err := tmpl.ExecuteTemplate(&ub, "user", data); err != nil {
		return "", "", fmt.Errorf("rendering %s user prompt: %w", name, err)
	}
	return strings.TrimSpace(sb.String()), strings.TrimSpace(ub.String()), nil
}

// Preload parses every known template so a bad override fails at startup.
func (c *Cache) Preload() error {
	for _, name := range Names {
		if _, err := c.Load(name); err != nil {
			return fmt.Errorf("preloading %s: %w", name, err)
		}
	}
	return nil
}

// Clear removes all cached templates
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.templates = make(map[string]*template.Template)
}

// Len returns the number of parsed templates held.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.templates)
}
