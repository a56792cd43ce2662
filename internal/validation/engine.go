// Package validation turns a raw suggestion body into a tier-aware
// ValidationResult and a sanitized property map.
package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"citypee/internal/domain"
	"citypee/internal/properties"
	apperrors "citypee/pkg/errors"
)

// DefaultMaxStringLength bounds free-text property values.
const DefaultMaxStringLength = 255

// Request is one suggestion body to validate.
type Request struct {
	Body      []byte
	IPAddress string
	Version   domain.APIVersion
}

// Outcome is what ValidateRequest returns. Validation is nil only when the
// body could not be parsed.
type Outcome struct {
	IsValid       bool
	Validation    *domain.ValidationResult
	SanitizedData map[string]interface{}
	SuggestionID  string
	IPAddress     string
	Lat           float64
	Lng           float64
	Error         *apperrors.AppError
}

// Engine validates property bags against a registry. It holds no per-request
// state and is safe for concurrent use.
type Engine struct {
	registry     *properties.Registry
	validate     *validator.Validate
	rangeTags    map[string]string
	coreNames    []string
	newID        func() string
	maxStringLen int
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator replaces uuid.NewString for suggestion ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithMaxStringLength sets the rune limit for string values.
func WithMaxStringLength(n int) Option {
	return func(e *Engine) { e.maxStringLen = n }
}

// NewEngine creates an engine backed by registry.
func NewEngine(registry *properties.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry:     registry,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		rangeTags:    make(map[string]string),
		coreNames:    registry.CoreProperties(),
		newID:        uuid.NewString,
		maxStringLen: DefaultMaxStringLength,
	}
	for _, opt := range opts {
		opt(e)
	}

	for _, tier := range domain.AllTiers {
		for _, name := range registry.PropertiesInTier(tier) {
			def, _ := registry.Get(name)
			if tag := rangeTag(def); tag != "" {
				e.rangeTags[name] = tag
			}
		}
	}
	return e
}

func rangeTag(def *domain.PropertyDefinition) string {
	if def.Type != domain.TypeNumber {
		return ""
	}
	var parts []string
	if def.Min != nil {
		parts = append(parts, "gte="+strconv.FormatFloat(*def.Min, 'f', -1, 64))
	}
	if def.Max != nil {
		parts = append(parts, "lte="+strconv.FormatFloat(*def.Max, 'f', -1, 64))
	}
	return strings.Join(parts, ",")
}

// ValidateRequest parses and validates one submission. It never panics on
// user input: every failure is reported through Outcome.Error and the
// embedded ValidationResult. A fresh SuggestionID is issued on every call.
func (e *Engine) ValidateRequest(req Request) *Outcome {
	version := req.Version
	vp, ok := versionPolicies[version]
	if !ok {
		version = domain.APIVersionV1
		vp = versionPolicies[version]
	}

	out := &Outcome{
		SuggestionID: e.newID(),
		IPAddress:    req.IPAddress,
	}

	bag, err := decodeBody(req.Body)
	if err != nil {
		out.Error = apperrors.NewMalformedInputError("Request body must be a valid JSON object", err)
		return out
	}
	if vp.remapLegacyFields {
		bag = remapLegacyFields(bag)
	}

	result := domain.NewValidationResult(version)
	sanitized := make(map[string]interface{}, len(bag)+len(e.coreNames))
	provided := make(map[string]bool, len(bag))

	keys := make([]string, 0, len(bag))
	for k := range bag {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := bag[key]
		if isAbsent(raw) {
			continue
		}
		provided[key] = true
		e.validateProperty(key, raw, result, sanitized)
	}

	for _, name := range e.coreNames {
		if provided[name] {
			continue
		}
		def, _ := e.registry.Get(name)
		switch {
		case identityFields[name] || vp.requireAllCore:
			result.AddError(domain.ValidationIssue{
				Field:   name,
				Code:    domain.IssueRequired,
				Message: fmt.Sprintf("%s is required", name),
				Tier:    domain.TierCore,
			})
		case vp.defaultMissingCore && def.Default != nil:
			sanitized[name] = def.Default
		}
	}

	result.SanitizedData = sanitized
	out.Validation = result
	out.SanitizedData = sanitized
	out.IsValid = result.IsValid

	if !result.IsValid {
		out.Error = apperrors.NewValidationFailedError(
			fmt.Sprintf("Validation failed with %d error(s)", len(result.Errors)))
		return out
	}

	out.Lat, _ = sanitized["lat"].(float64)
	out.Lng, _ = sanitized["lng"].(float64)
	return out
}

func (e *Engine) validateProperty(key string, raw interface{}, result *domain.ValidationResult, sanitized map[string]interface{}) {
	def, known := e.registry.Get(key)
	if !known {
		tier := domain.TierSpecialized
		countTier(result, tier, true)
		result.AddWarning(domain.ValidationIssue{
			Field:   key,
			Code:    domain.IssueUnknownProperty,
			Message: fmt.Sprintf("%s is not a recognised property and was passed through", key),
			Tier:    tier,
		})
		if s, ok := raw.(string); ok {
			var truncated bool
			raw, truncated = truncate(strings.TrimSpace(s), e.maxStringLen)
			if truncated {
				result.AddWarning(truncatedIssue(key, tier, e.maxStringLen))
			}
		}
		sanitized[key] = raw
		return
	}

	policy := policyFor(def.Tier)
	res := e.checkValue(def, raw, policy.coerceOnMismatch)

	switch res.status {
	case statusOK, statusCoerced:
		countTier(result, def.Tier, true)
		sanitized[key] = res.value
		if res.status == statusCoerced {
			result.AddWarning(domain.ValidationIssue{
				Field:   key,
				Code:    domain.IssueTypeCoercion,
				Message: fmt.Sprintf("%s was coerced from %s to %s", key, jsonKind(raw), def.Type),
				Tier:    def.Tier,
			})
		}
		if res.truncated {
			result.AddWarning(truncatedIssue(key, def.Tier, e.maxStringLen))
		}
		return
	}

	countTier(result, def.Tier, false)
	issue := failureIssue(def, raw, res)
	if policy.rejectOnMismatch {
		result.AddError(issue)
		return
	}
	result.AddWarning(issue)
	if policy.keepUncoercible {
		sanitized[key] = raw
	}
}

func failureIssue(def *domain.PropertyDefinition, raw interface{}, res checkResult) domain.ValidationIssue {
	issue := domain.ValidationIssue{Field: def.Name, Tier: def.Tier}
	switch res.status {
	case statusOutOfRange:
		issue.Code = domain.IssueOutOfRange
		issue.Message = fmt.Sprintf("%s must be between %s", def.Name, boundsText(def))
	case statusInvalidEnum:
		issue.Code = domain.IssueInvalidEnum
		issue.Message = fmt.Sprintf("%s must be one of [%s]", def.Name, strings.Join(def.EnumValues, ", "))
	default:
		issue.Code = domain.IssueInvalidType
		issue.Message = fmt.Sprintf("%s must be a %s, got %s", def.Name, def.Type, jsonKind(raw))
	}
	return issue
}

func boundsText(def *domain.PropertyDefinition) string {
	lo, hi := "-inf", "+inf"
	if def.Min != nil {
		lo = strconv.FormatFloat(*def.Min, 'f', -1, 64)
	}
	if def.Max != nil {
		hi = strconv.FormatFloat(*def.Max, 'f', -1, 64)
	}
	return lo + " and " + hi
}

func truncatedIssue(field string, tier domain.Tier, max int) domain.ValidationIssue {
	return domain.ValidationIssue{
		Field:   field,
		Code:    domain.IssueTruncated,
		Message: fmt.Sprintf("%s was truncated to %d characters", field, max),
		Tier:    tier,
	}
}

func countTier(result *domain.ValidationResult, tier domain.Tier, valid bool) {
	stats := result.TierSummary[tier]
	stats.Provided++
	if valid {
		stats.Valid++
	}
	result.TierSummary[tier] = stats
}

func decodeBody(body []byte) (map[string]interface{}, error) {
	var bag map[string]interface{}
	if err := json.Unmarshal(body, &bag); err != nil {
		return nil, fmt.Errorf("failed to decode suggestion body: %w", err)
	}
	if bag == nil {
		return nil, fmt.Errorf("suggestion body is not a JSON object")
	}
	return bag, nil
}

// isAbsent treats JSON null and blank strings as not supplied.
func isAbsent(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}
