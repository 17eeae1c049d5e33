// Package watchset holds the immutable description of what the agent watches:
// the set of root directories and the extension-to-category rules.
package watchset

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Category groups file extensions under a directory-safe name.
type Category struct {
	Name       string
	Extensions []string
}

// Override records an extension that was declared under more than one
// category. The later declaration wins.
type Override struct {
	Extension string
	Previous  string
	Category  string
}

// WatchSet is built once at startup and never mutated afterwards, so it can
// be shared by reference between the event source and the engine.
type WatchSet struct {
	roots map[string]struct{}
	rules map[string]string
}

// New validates roots and compiles categories into extension rules. Categories
// are applied in order; duplicate extensions are reported as overrides.
func New(roots []string, categories []Category) (*WatchSet, []Override, error) {
	if len(roots) == 0 {
		return nil, nil, errors.New("watch set requires at least one root")
	}
	if len(categories) == 0 {
		return nil, nil, errors.New("watch set requires at least one category")
	}

	ws := &WatchSet{
		roots: make(map[string]struct{}, len(roots)),
		rules: make(map[string]string),
	}
	for _, root := range roots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			return nil, nil, errors.New("watch root is empty")
		}
		if !filepath.IsAbs(trimmed) {
			return nil, nil, fmt.Errorf("watch root %q is not absolute", trimmed)
		}
		ws.roots[filepath.Clean(trimmed)] = struct{}{}
	}

	var overrides []Override
	for _, category := range categories {
		name := strings.TrimSpace(category.Name)
		if err := ValidateCategoryName(name); err != nil {
			return nil, nil, err
		}
		for _, raw := range category.Extensions {
			ext := NormalizeExtension(raw)
			if ext == "" {
				return nil, nil, fmt.Errorf("category %q: empty extension", name)
			}
			if previous, ok := ws.rules[ext]; ok && previous != name {
				overrides = append(overrides, Override{Extension: ext, Previous: previous, Category: name})
			}
			ws.rules[ext] = name
		}
	}
	return ws, overrides, nil
}

// NormalizeExtension lowercases an extension and strips surrounding whitespace
// and leading dots.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimLeft(strings.TrimSpace(ext), "."))
}

// ValidateCategoryName rejects names that cannot be used as a single
// directory component.
func ValidateCategoryName(name string) error {
	switch {
	case name == "":
		return errors.New("category name is empty")
	case name == "." || name == "..":
		return fmt.Errorf("category name %q is not a directory name", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("category name %q contains a path separator", name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("category name %q contains a NUL byte", name)
	}
	return nil
}

// IsRoot reports whether dir is exactly one of the configured roots.
func (w *WatchSet) IsRoot(dir string) bool {
	if w == nil {
		return false
	}
	_, ok := w.roots[dir]
	return ok
}

// Lookup returns the category for a normalized extension.
func (w *WatchSet) Lookup(ext string) (string, bool) {
	if w == nil {
		return "", false
	}
	category, ok := w.rules[ext]
	return category, ok
}

// Roots returns the roots in sorted order.
func (w *WatchSet) Roots() []string {
	if w == nil {
		return nil
	}
	out := make([]string, 0, len(w.roots))
	for root := range w.roots {
		out = append(out, root)
	}
	sort.Strings(out)
	return out
}

// Rules returns a copy of the extension rules.
func (w *WatchSet) Rules() map[string]string {
	if w == nil {
		return nil
	}
	out := make(map[string]string, len(w.rules))
	for ext, category := range w.rules {
		out[ext] = category
	}
	return out
}

// Categories returns the distinct category names in sorted order.
func (w *WatchSet) Categories() []string {
	if w == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, category := range w.rules {
		seen[category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for category := range seen {
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}
