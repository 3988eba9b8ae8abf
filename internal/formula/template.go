package formula

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Template is an immutable generalized formula set extracted from one
// exemplar worksheet row. Applying a template never mutates it.
type Template struct {
	Name       string            `json:"template_name"`
	SourceFile string            `json:"source_file,omitempty"`
	SheetName  string            `json:"sheet_name"`
	SourceRow  int               `json:"source_row"`
	Columns    []string          `json:"columns"`
	Formulas   map[string]string `json:"formulas"`
}

// IsEmpty reports whether the template carries no formulas.
func (t *Template) IsEmpty() bool {
	return t == nil || len(t.Formulas) == 0
}

// ColumnOrder returns the columns to apply, in the template's declared
// order. Columns without a formula are dropped; formulas missing from the
// declared order are appended alphabetically so application order stays
// deterministic even for hand-edited template files.
func (t *Template) ColumnOrder() []string {
	ordered := make([]string, 0, len(t.Formulas))
	seen := make(map[string]bool, len(t.Formulas))
	for _, col := range t.Columns {
		if _, ok := t.Formulas[col]; ok && !seen[col] {
			ordered = append(ordered, col)
			seen[col] = true
		}
	}

	var rest []string
	for col := range t.Formulas {
		if !seen[col] {
			rest = append(rest, col)
		}
	}
	sort.Strings(rest)
	return append(ordered, rest...)
}

// Store persists templates as indented JSON files, one per template, so they
// can be diffed and hand-edited. File name is <template_name>.json.
type Store struct {
	dir    string
	logger *zap.Logger
}

// NewStore creates a template store rooted at dir.
func NewStore(dir string, logger *zap.Logger) *Store {
	return &Store{dir: dir, logger: logger}
}

// Load reads a template by name.
func (s *Store) Load(name string) (*Template, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
		}
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}

	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	if t.Name == "" {
		t.Name = name
	}
	return &t, nil
}

// Save writes a template. Map keys marshal sorted, so repeated saves of the
// same template are byte-identical.
func (s *Store) Save(t *Template) error {
	if t.Name == "" {
		return fmt.Errorf("template has no name")
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create template dir: %w", err)
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode template %s: %w", t.Name, err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(s.path(t.Name), data, 0644); err != nil {
		return fmt.Errorf("failed to write template %s: %w", t.Name, err)
	}

	s.logger.Info("Template saved",
		zap.String("template", t.Name),
		zap.Int("formulas", len(t.Formulas)))
	return nil
}

// List returns the names of all stored templates, sorted.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}
