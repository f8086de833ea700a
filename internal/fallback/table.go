// Package fallback loads the local fallback resource set: a directory of
// markdown files consulted when a remote fetch permanently fails. Each
// file carries YAML frontmatter naming the identifier it stands in for.
package fallback

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/datengrube/context-orchestrator/internal/domain"
	"gopkg.in/yaml.v3"
)

// Frontmatter represents the YAML frontmatter in a fallback file
type Frontmatter struct {
	Identifier  string `yaml:"identifier"`
	ContentType string `yaml:"content_type"`
}

// Entry is one fallback resource
type Entry struct {
	Identifier  string
	Content     string
	ContentType domain.ContentType
}

// Table maps identifiers to default content. Reads never block reloads;
// the table is swapped wholesale on reload.
type Table struct {
	dir     string
	mu      sync.RWMutex
	entries map[string]Entry
}

// Load reads all fallback files from dir. A missing directory yields an
// empty table, not an error.
func Load(dir string) (*Table, error) {
	t := &Table{dir: dir, entries: make(map[string]Entry)}
	if err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload re-reads the fallback directory, replacing all entries
func (t *Table) Reload() error {
	entries := make(map[string]Entry)

	files, err := os.ReadDir(t.dir)
	if err != nil {
		if os.IsNotExist(err) {
			t.mu.Lock()
			t.entries = entries
			t.mu.Unlock()
			return nil
		}
		return err
	}

	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".md") {
			continue
		}
		path := filepath.Join(t.dir, f.Name())
		entry, err := parseFile(path)
		if err != nil {
			return fmt.Errorf("fallback file %s: %w", f.Name(), err)
		}
		entries[entry.Identifier] = entry
	}

	t.mu.Lock()
	t.entries = entries
	t.mu.Unlock()
	return nil
}

// Lookup returns the fallback entry for an identifier, if any
func (t *Table) Lookup(identifier string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[identifier]
	return e, ok
}

// Size returns the number of loaded entries
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func parseFile(path string) (Entry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Entry{}, err
	}

	fm, body, err := ParseFrontmatter(content)
	if err != nil {
		return Entry{}, err
	}
	if fm.Identifier == "" {
		return Entry{}, fmt.Errorf("missing identifier in frontmatter")
	}

	ct := domain.ContentType(fm.ContentType)
	if ct == "" {
		ct = domain.ClassifyContent(fm.Identifier, string(body))
	}

	return Entry{
		Identifier:  fm.Identifier,
		Content:     string(body),
		ContentType: ct,
	}, nil
}

// ParseFrontmatter extracts YAML frontmatter from markdown content.
// Returns the frontmatter, remaining content, and any error.
func ParseFrontmatter(content []byte) (*Frontmatter, []byte, error) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return &Frontmatter{}, content, nil
	}

	rest := content[4:]
	endIdx := bytes.Index(rest, []byte("\n---"))
	if endIdx == -1 {
		return &Frontmatter{}, content, nil
	}

	fmData := rest[:endIdx]
	remaining := rest[endIdx+4:] // skip \n---

	var fm Frontmatter
	if err := yaml.Unmarshal(fmData, &fm); err != nil {
		return nil, nil, err
	}

	return &fm, bytes.TrimLeft(remaining, "\n"), nil
}
