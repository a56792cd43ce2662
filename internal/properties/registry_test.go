package properties

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citypee/internal/domain"
)

func TestDefault_LoadsEmbeddedCatalogue(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.GreaterOrEqual(t, r.Len(), 120)
	assert.Equal(t,
		[]string{"access", "amenity", "fee", "lat", "lng", "name", "opening_hours", "wheelchair"},
		r.CoreProperties())

	for _, tier := range domain.AllTiers {
		assert.NotEmpty(t, r.PropertiesInTier(tier), "tier %s should not be empty", tier)
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := MustDefault()

	tests := []struct {
		name     string
		property string
		known    bool
		tier     domain.Tier
		typ      domain.ValidationType
	}{
		{name: "core number", property: "lat", known: true, tier: domain.TierCore, typ: domain.TypeNumber},
		{name: "core enum", property: "wheelchair", known: true, tier: domain.TierCore, typ: domain.TypeEnum},
		{name: "high frequency enum", property: "changing_table", known: true, tier: domain.TierHighFrequency, typ: domain.TypeEnum},
		{name: "optional number", property: "capacity", known: true, tier: domain.TierOptional, typ: domain.TypeNumber},
		{name: "specialized enum", property: "changing_places", known: true, tier: domain.TierSpecialized, typ: domain.TypeEnum},
		{name: "unknown falls back to specialized", property: "colour_of_door", known: false, tier: domain.TierSpecialized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.known, r.IsKnown(tt.property))
			assert.Equal(t, tt.tier, r.TierOf(tt.property))

			def, ok := r.Get(tt.property)
			assert.Equal(t, tt.known, ok)
			if tt.known {
				assert.Equal(t, tt.typ, def.Type)
			}
		})
	}
}

func TestRegistry_EnumIsCaseSensitive(t *testing.T) {
	def, ok := MustDefault().Get("wheelchair")
	require.True(t, ok)

	assert.True(t, def.AllowsEnum("yes"))
	assert.True(t, def.AllowsEnum("limited"))
	assert.False(t, def.AllowsEnum("Yes"))
	assert.False(t, def.AllowsEnum("maybe"))
}

func TestRegistry_CorePropertiesReturnsCopy(t *testing.T) {
	r := MustDefault()
	core := r.CoreProperties()
	core[0] = "mutated"

	assert.NotEqual(t, "mutated", r.CoreProperties()[0])
}

func TestParse_RejectsBadCatalogues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "unknown tier",
			yaml: "core:\n  - {name: lat, type: number}\nexotic:\n  - {name: x, type: string}\n",
		},
		{
			name: "duplicate property across tiers",
			yaml: "core:\n  - {name: lat, type: number}\noptional:\n  - {name: lat, type: string}\n",
		},
		{
			name: "enum without values",
			yaml: "core:\n  - {name: access, type: enum}\n",
		},
		{
			name: "unknown type",
			yaml: "core:\n  - {name: lat, type: float}\n",
		},
		{
			name: "no core tier",
			yaml: "optional:\n  - {name: note, type: string}\n",
		},
		{
			name: "not yaml",
			yaml: "core: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
			assert.Nil(t, r)
		})
	}
}

func TestParse_RequiredOnlyKeptForCore(t *testing.T) {
	r, err := Parse([]byte("core:\n  - {name: lat, type: number, required: true}\noptional:\n  - {name: note, type: string, required: true}\n"))
	require.NoError(t, err)

	lat, _ := r.Get("lat")
	note, _ := r.Get("note")
	assert.True(t, lat.Required)
	assert.False(t, note.Required)
}
