package domain

// Tier is the trust/strictness class assigned to a submittable property
type Tier string

const (
	TierCore          Tier = "core"
	TierHighFrequency Tier = "high_frequency"
	TierOptional      Tier = "optional"
	TierSpecialized   Tier = "specialized"
)

// AllTiers lists tiers from strictest to most lenient.
var AllTiers = []Tier{TierCore, TierHighFrequency, TierOptional, TierSpecialized}

// Valid reports whether t is one of the four known tiers.
func (t Tier) Valid() bool {
	switch t {
	case TierCore, TierHighFrequency, TierOptional, TierSpecialized:
		return true
	}
	return false
}

// ValidationType is the expected JSON shape of a property value
type ValidationType string

const (
	TypeBoolean ValidationType = "boolean"
	TypeNumber  ValidationType = "number"
	TypeString  ValidationType = "string"
	TypeEnum    ValidationType = "enum"
)

// PropertyDefinition describes one recognised OpenStreetMap-derived property
type PropertyDefinition struct {
	Name       string         `json:"name" yaml:"name"`
	Tier       Tier           `json:"tier" yaml:"tier"`
	Type       ValidationType `json:"type" yaml:"type"`
	EnumValues []string       `json:"enumValues,omitempty" yaml:"enum,omitempty"`
	Required   bool           `json:"required,omitempty" yaml:"required,omitempty"`
	Min        *float64       `json:"min,omitempty" yaml:"min,omitempty"`
	Max        *float64       `json:"max,omitempty" yaml:"max,omitempty"`
	Default    interface{}    `json:"default,omitempty" yaml:"default,omitempty"`

	enumSet map[string]struct{}
}

// AllowsEnum reports whether value is a member of the closed enum set.
// Matching is case-sensitive.
func (d *PropertyDefinition) AllowsEnum(value string) bool {
	if d.enumSet == nil {
		for _, v := range d.EnumValues {
			if v == value {
				return true
			}
		}
		return false
	}
	_, ok := d.enumSet[value]
	return ok
}

// IndexEnum builds the O(1) enum lookup. Called once at registry load.
func (d *PropertyDefinition) IndexEnum() {
	if len(d.EnumValues) == 0 {
		return
	}
	d.enumSet = make(map[string]struct{}, len(d.EnumValues))
	for _, v := range d.EnumValues {
		d.enumSet[v] = struct{}{}
	}
}
