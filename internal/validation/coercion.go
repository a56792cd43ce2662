package validation

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"citypee/internal/domain"
)

type checkStatus int

const (
	statusOK checkStatus = iota
	statusCoerced
	statusTypeMismatch
	statusOutOfRange
	statusInvalidEnum
)

// checkResult is the outcome of checking one value against its definition.
type checkResult struct {
	value     interface{}
	status    checkStatus
	truncated bool
}

// checkValue matches raw against the definition's declared type, optionally
// coercing, then applies range, enum and length rules.
func (e *Engine) checkValue(def *domain.PropertyDefinition, raw interface{}, coerce bool) checkResult {
	status := statusOK
	value, ok := matchType(def.Type, raw)
	if !ok {
		if !coerce {
			return checkResult{value: raw, status: statusTypeMismatch}
		}
		if value, ok = coerceTo(def.Type, raw); !ok {
			return checkResult{value: raw, status: statusTypeMismatch}
		}
		status = statusCoerced
	}

	switch def.Type {
	case domain.TypeNumber:
		if !e.inRange(def, value.(float64)) {
			return checkResult{value: value, status: statusOutOfRange}
		}
	case domain.TypeEnum:
		if !def.AllowsEnum(value.(string)) {
			return checkResult{value: value, status: statusInvalidEnum}
		}
	case domain.TypeString:
		s, truncated := truncate(value.(string), e.maxStringLen)
		return checkResult{value: s, status: status, truncated: truncated}
	}
	return checkResult{value: value, status: status}
}

// inRange runs the precompiled validator tag for numeric properties.
func (e *Engine) inRange(def *domain.PropertyDefinition, v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	tag, ok := e.rangeTags[def.Name]
	if !ok {
		return true
	}
	return e.validate.Var(v, tag) == nil
}

// matchType accepts raw only when it already has the declared JSON type.
func matchType(typ domain.ValidationType, raw interface{}) (interface{}, bool) {
	switch typ {
	case domain.TypeNumber:
		f, ok := raw.(float64)
		return f, ok
	case domain.TypeBoolean:
		b, ok := raw.(bool)
		return b, ok
	case domain.TypeString, domain.TypeEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, false
		}
		return strings.TrimSpace(s), true
	}
	return nil, false
}

// coerceTo converts raw to the declared type where a lossless reading exists.
// Objects and arrays are never coerced.
func coerceTo(typ domain.ValidationType, raw interface{}) (interface{}, bool) {
	switch typ {
	case domain.TypeNumber:
		return coerceNumber(raw)
	case domain.TypeBoolean:
		return coerceBoolean(raw)
	case domain.TypeString, domain.TypeEnum:
		return coerceString(raw)
	}
	return nil, false
}

func coerceNumber(raw interface{}) (interface{}, bool) {
	s, ok := raw.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	return f, true
}

func coerceBoolean(raw interface{}) (interface{}, bool) {
	switch v := raw.(type) {
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "true", "1":
			return true, true
		case "no", "false", "0":
			return false, true
		}
	case float64:
		switch v {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	}
	return nil, false
}

func coerceString(raw interface{}) (interface{}, bool) {
	switch v := raw.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		return yesNo(v), true
	}
	return nil, false
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) (string, bool) {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s, false
	}
	runes := []rune(s)
	return string(runes[:max]), true
}

// jsonKind names the JSON type of a decoded value for messages.
func jsonKind(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64:
		return "number"
	case string:
		return "string"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	return "unknown"
}
