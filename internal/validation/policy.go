package validation

import "citypee/internal/domain"

// tierPolicy captures how strictly a tier treats a value that does not match
// its declared type, range or enum set.
type tierPolicy struct {
	// rejectOnMismatch turns a mismatch into a fatal error instead of a warning.
	rejectOnMismatch bool
	// coerceOnMismatch attempts a type coercion before giving up.
	coerceOnMismatch bool
	// keepUncoercible passes the raw value through when coercion fails.
	keepUncoercible bool
}

var tierPolicies = map[domain.Tier]tierPolicy{
	domain.TierCore:          {rejectOnMismatch: true},
	domain.TierHighFrequency: {rejectOnMismatch: true},
	domain.TierOptional:      {coerceOnMismatch: true},
	domain.TierSpecialized:   {coerceOnMismatch: true, keepUncoercible: true},
}

func policyFor(tier domain.Tier) tierPolicy {
	if p, ok := tierPolicies[tier]; ok {
		return p
	}
	return tierPolicies[domain.TierSpecialized]
}

// versionPolicy captures what an API version does about missing core
// properties and legacy field names.
type versionPolicy struct {
	requireAllCore     bool
	defaultMissingCore bool
	remapLegacyFields  bool
}

var versionPolicies = map[domain.APIVersion]versionPolicy{
	domain.APIVersionV1: {defaultMissingCore: true, remapLegacyFields: true},
	domain.APIVersionV2: {requireAllCore: true},
}

// identityFields are required in every version; no default can stand in for
// a location.
var identityFields = map[string]bool{"lat": true, "lng": true}
