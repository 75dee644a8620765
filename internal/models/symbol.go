package models

import (
	"path"
	"strings"
)

// DefaultNamespace is assumed for ids written without a namespace.
const DefaultNamespace = "minecraft"

// Symbol is a namespace-qualified resource identifier within a category.
type Symbol struct {
	Category string `json:"category"`
	ID       string `json:"id"`
}

// String renders the symbol as "<category> <id>".
func (s Symbol) String() string {
	return s.Category + " " + s.ID
}

// Namespace returns the namespace part of the id.
func (s Symbol) Namespace() string {
	ns, _, ok := strings.Cut(s.ID, ":")
	if !ok {
		return DefaultNamespace
	}
	return ns
}

// Position is a 1-based location in a file.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Visibility restricts which ids may see a declaration. Type "*" applies to every category.
type Visibility struct {
	Type    string `json:"type"`
	Pattern string `json:"pattern"`
}

// Declaration is a symbol declared by a file.
type Declaration struct {
	Symbol
	Position
	Visibility []Visibility `json:"visibility,omitempty"`
}

// Reference is a symbol used by a file.
type Reference struct {
	Symbol
	Position
}

// NormalizeID prefixes ids without a namespace with the default namespace.
func NormalizeID(id string) string {
	if strings.Contains(id, ":") {
		return id
	}
	return DefaultNamespace + ":" + id
}

// Resource is the identity of a pack file derived from its root-relative path.
type Resource struct {
	Symbol
	Rel string `json:"rel"`
}

var legacyFolders = map[string]string{
	"functions":      "function",
	"advancements":   "advancement",
	"loot_tables":    "loot_table",
	"predicates":     "predicate",
	"recipes":        "recipe",
	"structures":     "structure",
	"item_modifiers": "item_modifier",
	"blocks":         "block",
	"items":          "item",
	"entity_types":   "entity_type",
	"fluids":         "fluid",
	"game_events":    "game_event",
}

var knownCategories = map[string]struct{}{
	"function":             {},
	"advancement":          {},
	"loot_table":           {},
	"predicate":            {},
	"recipe":               {},
	"item_modifier":        {},
	"dimension":            {},
	"dimension_type":       {},
	"damage_type":          {},
	"chat_type":            {},
	"trim_material":        {},
	"trim_pattern":         {},
	"banner_pattern":       {},
	"enchantment":          {},
	"enchantment_provider": {},
	"painting_variant":     {},
	"jukebox_song":         {},
	"wolf_variant":         {},
}

func singular(folder string) string {
	if s, ok := legacyFolders[folder]; ok {
		return s
	}
	return folder
}

// ResourceFromRel maps "data/<ns>/<folder...>/<path>.<ext>" to a resource.
// It reports false for paths that are not lintable resources.
func ResourceFromRel(rel string) (Resource, bool) {
	segs := strings.Split(strings.TrimPrefix(path.Clean(rel), "./"), "/")
	if len(segs) < 4 || segs[0] != "data" || segs[1] == "" {
		return Resource{}, false
	}
	ns := segs[1]
	rest := segs[2:]

	var category string
	switch {
	case rest[0] == "tags" && len(rest) >= 4 && rest[1] == "worldgen":
		category = "tag/worldgen/" + rest[2]
		rest = rest[3:]
	case rest[0] == "tags":
		category = "tag/" + singular(rest[1])
		rest = rest[2:]
	case rest[0] == "worldgen" && len(rest) >= 3:
		category = "worldgen/" + rest[1]
		rest = rest[2:]
	default:
		category = singular(rest[0])
		if _, ok := knownCategories[category]; !ok {
			return Resource{}, false
		}
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return Resource{}, false
	}

	file := strings.Join(rest, "/")
	ext := path.Ext(file)
	want := ".json"
	if category == "function" {
		want = ".mcfunction"
	}
	if ext != want {
		return Resource{}, false
	}
	name := strings.TrimSuffix(file, ext)
	if name == "" {
		return Resource{}, false
	}
	return Resource{
		Symbol: Symbol{Category: category, ID: ns + ":" + name},
		Rel:    rel,
	}, true
}
