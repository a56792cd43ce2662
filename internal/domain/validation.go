package domain

// APIVersion selects the strictness policy used for a submission
type APIVersion string

const (
	APIVersionV1 APIVersion = "v1"
	APIVersionV2 APIVersion = "v2"
)

// Issue codes attached to validation errors and warnings.
const (
	IssueRequired          = "required"
	IssueInvalidType       = "invalid_type"
	IssueOutOfRange        = "out_of_range"
	IssueInvalidEnum       = "invalid_enum"
	IssueTypeCoercion      = "type_coercion"
	IssueUnknownProperty   = "unknown_property"
	IssueTruncated         = "truncated"
	IssueDuplicateCheckOff = "duplicate_check_unavailable"
)

// ValidationIssue is a single error or warning about one field
type ValidationIssue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Tier    Tier   `json:"tier"`
}

// TierStats counts submitted and accepted properties for one tier
type TierStats struct {
	Provided int `json:"provided"`
	Valid    int `json:"valid"`
}

// ValidationResult is produced once per request and discarded after the response
type ValidationResult struct {
	IsValid           bool                   `json:"isValid"`
	Errors            []ValidationIssue      `json:"errors"`
	Warnings          []ValidationIssue      `json:"warnings"`
	TierSummary       map[Tier]TierStats     `json:"tierSummary"`
	SanitizedData     map[string]interface{} `json:"sanitizedData"`
	IsDuplicate       bool                   `json:"isDuplicate"`
	DuplicateDistance *float64               `json:"duplicateDistance,omitempty"`
	NearestToiletID   string                 `json:"nearestToiletId,omitempty"`
	Version           APIVersion             `json:"version"`
}

// NewValidationResult returns an empty, valid result with every tier present
// in the summary.
func NewValidationResult(version APIVersion) *ValidationResult {
	summary := make(map[Tier]TierStats, len(AllTiers))
	for _, t := range AllTiers {
		summary[t] = TierStats{}
	}
	return &ValidationResult{
		IsValid:       true,
		Errors:        []ValidationIssue{},
		Warnings:      []ValidationIssue{},
		TierSummary:   summary,
		SanitizedData: map[string]interface{}{},
		Version:       version,
	}
}

// AddError records a fatal issue and marks the result invalid.
func (r *ValidationResult) AddError(issue ValidationIssue) {
	r.Errors = append(r.Errors, issue)
	r.IsValid = false
}

// AddWarning records a non-fatal issue.
func (r *ValidationResult) AddWarning(issue ValidationIssue) {
	r.Warnings = append(r.Warnings, issue)
}

// ErrorsByTier groups errors by the tier of the offending field.
func (r *ValidationResult) ErrorsByTier() map[Tier][]ValidationIssue {
	grouped := make(map[Tier][]ValidationIssue)
	for _, e := range r.Errors {
		grouped[e.Tier] = append(grouped[e.Tier], e)
	}
	return grouped
}
