package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ContainerInfo contains display information about a container.
type ContainerInfo struct {
	Key        string `json:"key"`                  // unique identifier: "definitions"
	Group      string `json:"group"`                // grouping for listings: "Game"
	Label      string `json:"label"`                // display name: "Game definitions"
	DocumentID string `json:"documentId,omitempty"` // default source document
}

// PageInfo describes one importable page of a container.
type PageInfo struct {
	Field  string   `json:"field"`
	Page   string   `json:"page"`
	Kind   string   `json:"kind"`
	Record string   `json:"record"`
	Fields []string `json:"fields"`
}

// ContainerDefinition is a content object plus the pages that fill it.
type ContainerDefinition struct {
	Info ContainerInfo

	// Content points at the object the targets write into; it is what gets
	// serialized after an import.
	Content any

	// Targets in declaration order. Field names must be unique.
	Targets []Target
}

// Pages lists the container's pages in declaration order.
func (d ContainerDefinition) Pages() []PageInfo {
	pages := make([]PageInfo, len(d.Targets))
	for i, t := range d.Targets {
		p := PageInfo{Field: t.Field, Page: t.Page, Kind: t.Kind.String()}
		if t.Record != nil {
			p.Record = t.Record.Name()
			for _, f := range t.Record.fields {
				p.Fields = append(p.Fields, f.Name)
			}
		}
		pages[i] = p
	}
	return pages
}

// Select returns the targets for fields, in the order given. Repeated
// fields are imported once.
func (d ContainerDefinition) Select(fields []string) ([]Target, error) {
	if len(fields) == 0 {
		return nil, ErrNothingSelected
	}

	byField := make(map[string]Target, len(d.Targets))
	for _, t := range d.Targets {
		byField[t.Field] = t
	}

	seen := make(map[string]bool, len(fields))
	targets := make([]Target, 0, len(fields))
	var unknown []string
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true

		t, ok := byField[f]
		if !ok {
			unknown = append(unknown, f)
			continue
		}
		targets = append(targets, t)
	}

	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w in %s: %s", ErrUnknownPage, d.Info.Key, strings.Join(unknown, ", "))
	}
	return targets, nil
}

// SelectAll returns every target in declaration order.
func (d ContainerDefinition) SelectAll() []Target {
	return append([]Target(nil), d.Targets...)
}

var (
	registry   = make(map[string]ContainerDefinition)
	registryMu sync.RWMutex
)

// Register adds a container definition to the registry.
// Panics if the key is empty or taken, or if two targets share a field name.
func Register(def ContainerDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if def.Info.Key == "" {
		panic("container key is empty")
	}
	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("container already registered: %s", def.Info.Key))
	}

	seen := make(map[string]bool, len(def.Targets))
	for _, t := range def.Targets {
		if seen[t.Field] {
			panic(fmt.Sprintf("container %s: field %q bound twice", def.Info.Key, t.Field))
		}
		seen[t.Field] = true
	}

	if def.Info.Label == "" {
		def.Info.Label = def.Info.Key
	}

	registry[def.Info.Key] = def
}

// Get returns a container definition by key.
// Returns false if not found.
func Get(key string) (ContainerDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered container definitions.
// Sorted by group then by key for consistent ordering.
func All() []ContainerDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]ContainerDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Info.Group != result[j].Info.Group {
			return result[i].Info.Group < result[j].Info.Group
		}
		return result[i].Info.Key < result[j].Info.Key
	})

	return result
}

// Groups returns all unique group names, sorted.
func Groups() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, def := range registry {
		seen[def.Info.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// ContainerCount returns the number of registered containers.
func ContainerCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered containers.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]ContainerDefinition)
}
