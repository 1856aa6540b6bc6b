// Package modregistry holds the set of mod names the version route accepts.
// The set can be swapped at runtime from a YAML file without blocking
// readers.
package modregistry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/mercurialworld/pochamoe-api/internal/modversion"
)

type nameSet struct {
	byKey map[string]string
}

func newNameSet(groups ...[]string) *nameSet {
	s := &nameSet{byKey: map[string]string{}}
	for _, g := range groups {
		for _, n := range g {
			n = strings.TrimSpace(n)
			if n == "" {
				continue
			}
			key := modversion.FoldName(n)
			if _, ok := s.byKey[key]; !ok {
				s.byKey[key] = n
			}
		}
	}
	return s
}

func (s *nameSet) names() []string {
	out := make([]string, 0, len(s.byKey))
	for _, n := range s.byKey {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// AllowList is a case-insensitive set of mod names. Allows never blocks.
type AllowList struct {
	base    []string
	current atomic.Pointer[nameSet]
	// reloadMu serializes file reloads so SIGHUP and the watcher do not race.
	reloadMu sync.Mutex
}

// NewAllowList returns a list seeded with base. base survives every reload.
func NewAllowList(base ...string) *AllowList {
	a := &AllowList{base: append([]string(nil), base...)}
	a.current.Store(newNameSet(a.base))
	return a
}

func (a *AllowList) Allows(name string) bool {
	if name == "" {
		return false
	}
	_, ok := a.current.Load().byKey[modversion.FoldName(name)]
	return ok
}

// Names returns the accepted names in sorted order.
func (a *AllowList) Names() []string {
	return a.current.Load().names()
}

// Replace swaps the file-provided names. The base names are kept.
func (a *AllowList) Replace(names []string) Diff {
	next := newNameSet(a.base, names)
	prev := a.current.Swap(next)
	return diffSets(prev, next)
}

// ReloadFile re-reads path and swaps the list. On error the current list is
// left untouched.
func (a *AllowList) ReloadFile(path string) (Diff, error) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()
	names, err := LoadFile(path)
	if err != nil {
		return Diff{}, err
	}
	return a.Replace(names), nil
}

// Diff lists the names a reload added and removed.
type Diff struct {
	Added   []string
	Removed []string
}

func (d Diff) Empty() bool { return len(d.Added) == 0 && len(d.Removed) == 0 }

func (d Diff) String() string {
	if d.Empty() {
		return "-"
	}
	parts := make([]string, 0, len(d.Added)+len(d.Removed))
	for _, n := range d.Added {
		parts = append(parts, "+"+n)
	}
	for _, n := range d.Removed {
		parts = append(parts, "-"+n)
	}
	return strings.Join(parts, ",")
}

func diffSets(prev, next *nameSet) Diff {
	var d Diff
	for k, n := range next.byKey {
		if _, ok := prev.byKey[k]; !ok {
			d.Added = append(d.Added, n)
		}
	}
	for k, n := range prev.byKey {
		if _, ok := next.byKey[k]; !ok {
			d.Removed = append(d.Removed, n)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	return d
}

type modsFile struct {
	Mods []modEntry `yaml:"mods"`
}

// modEntry is either a bare name or {name, enabled}.
type modEntry struct {
	Name    string
	Enabled bool
}

func (e *modEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		e.Name = strings.TrimSpace(value.Value)
		e.Enabled = true
		return nil
	}
	var raw struct {
		Name    string `yaml:"name"`
		Enabled *bool  `yaml:"enabled"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	e.Name = strings.TrimSpace(raw.Name)
	e.Enabled = raw.Enabled == nil || *raw.Enabled
	return nil
}

// LoadFile reads the enabled mod names from path. A missing file yields an
// empty list so the base names still apply.
func LoadFile(path string) ([]string, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, nil
	}
	// #nosec G304 -- path comes from trusted config.
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var f modsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse mods file %q: %w", p, err)
	}
	out := make([]string, 0, len(f.Mods))
	for i, m := range f.Mods {
		if m.Name == "" {
			return nil, fmt.Errorf("mods file %q: entry %d has no name", p, i)
		}
		if m.Enabled {
			out = append(out, m.Name)
		}
	}
	return out, nil
}
