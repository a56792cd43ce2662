// Package properties holds the static catalogue of toilet properties a
// suggestion may carry, each classified into one of four trust tiers.
package properties

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"citypee/internal/domain"
)

//go:embed catalogue.yaml
var catalogueYAML []byte

// Registry is an immutable, map-backed lookup of property definitions.
// It is safe for concurrent use once constructed.
type Registry struct {
	defs   map[string]*domain.PropertyDefinition
	core   []string
	byTier map[domain.Tier][]string
}

// catalogue mirrors the YAML layout: one list of definitions per tier.
type catalogue map[domain.Tier][]domain.PropertyDefinition

var (
	defaultRegistry *Registry
	defaultErr      error
	defaultOnce     sync.Once
)

// Default returns the registry built from the embedded catalogue, loading it
// on first use.
func Default() (*Registry, error) {
	defaultOnce.Do(func() {
		defaultRegistry, defaultErr = Parse(catalogueYAML)
	})
	return defaultRegistry, defaultErr
}

// MustDefault is Default for callers that cannot run without a catalogue.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(fmt.Sprintf("properties: invalid embedded catalogue: %v", err))
	}
	return r
}

// Parse builds a registry from a YAML catalogue. Every property must appear
// exactly once across all tiers.
func Parse(data []byte) (*Registry, error) {
	var cat catalogue
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("failed to decode property catalogue: %w", err)
	}

	r := &Registry{
		defs:   make(map[string]*domain.PropertyDefinition),
		byTier: make(map[domain.Tier][]string),
	}

	for tier, defs := range cat {
		if !tier.Valid() {
			return nil, fmt.Errorf("unknown tier %q in catalogue", tier)
		}
		for i := range defs {
			def := defs[i]
			def.Tier = tier
			if err := checkDefinition(&def); err != nil {
				return nil, err
			}
			if existing, dup := r.defs[def.Name]; dup {
				return nil, fmt.Errorf("property %q declared in both %s and %s", def.Name, existing.Tier, tier)
			}
			if tier != domain.TierCore {
				// required-ness only means something for core properties
				def.Required = false
			}
			def.IndexEnum()
			r.defs[def.Name] = &def
			r.byTier[tier] = append(r.byTier[tier], def.Name)
			if tier == domain.TierCore {
				r.core = append(r.core, def.Name)
			}
		}
	}

	if len(r.core) == 0 {
		return nil, fmt.Errorf("catalogue declares no core properties")
	}
	for _, names := range r.byTier {
		sort.Strings(names)
	}
	sort.Strings(r.core)

	return r, nil
}

func checkDefinition(def *domain.PropertyDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("property in tier %s has no name", def.Tier)
	}
	switch def.Type {
	case domain.TypeBoolean, domain.TypeNumber, domain.TypeString:
	case domain.TypeEnum:
		if len(def.EnumValues) == 0 {
			return fmt.Errorf("enum property %q has no values", def.Name)
		}
	default:
		return fmt.Errorf("property %q has unknown type %q", def.Name, def.Type)
	}
	if def.Min != nil && def.Max != nil && *def.Min > *def.Max {
		return fmt.Errorf("property %q has min greater than max", def.Name)
	}
	return nil
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (*domain.PropertyDefinition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// IsKnown reports whether name is in the catalogue.
func (r *Registry) IsKnown(name string) bool {
	_, ok := r.defs[name]
	return ok
}

// TierOf returns the tier of name. Unknown properties are treated as specialized.
func (r *Registry) TierOf(name string) domain.Tier {
	if def, ok := r.defs[name]; ok {
		return def.Tier
	}
	return domain.TierSpecialized
}

// CoreProperties returns the sorted names of the core tier. The slice is a copy.
func (r *Registry) CoreProperties() []string {
	out := make([]string, len(r.core))
	copy(out, r.core)
	return out
}

// PropertiesInTier returns the sorted names belonging to tier.
func (r *Registry) PropertiesInTier(tier domain.Tier) []string {
	names := r.byTier[tier]
	out := make([]string, len(names))
	copy(out, names)
	return out
}

// Len is the number of recognised properties.
func (r *Registry) Len() int {
	return len(r.defs)
}
