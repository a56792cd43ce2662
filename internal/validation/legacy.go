package validation

import "fmt"

// remapLegacyFields rewrites v1 field names and shapes onto their current
// equivalents. The input map is not modified. A legacy field never
// overwrites a current field that was also supplied.
func remapLegacyFields(bag map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(bag))
	for k, v := range bag {
		out[k] = v
	}

	renameField(out, "latitude", "lat", nil)
	renameField(out, "longitude", "lng", nil)
	renameField(out, "lon", "lng", nil)
	renameField(out, "hours", "opening_hours", nil)
	renameField(out, "accessible", "wheelchair", boolToYesNo)
	renameField(out, "payment_contactless", "payment:contactless", boolToYesNo)
	splitNumericFee(out)

	return out
}

func renameField(bag map[string]interface{}, legacy, current string, convert func(interface{}) interface{}) {
	v, ok := bag[legacy]
	if !ok {
		return
	}
	delete(bag, legacy)
	if !isAbsent(bag[current]) {
		return
	}
	if convert != nil {
		v = convert(v)
	}
	bag[current] = v
}

func boolToYesNo(v interface{}) interface{} {
	if b, ok := v.(bool); ok {
		return yesNo(b)
	}
	return v
}

// splitNumericFee turns {"fee": 0.5} into {"fee": true, "charge": "£0.50"}.
func splitNumericFee(bag map[string]interface{}) {
	amount, ok := bag["fee"].(float64)
	if !ok {
		return
	}
	bag["fee"] = amount > 0
	if amount > 0 && isAbsent(bag["charge"]) {
		bag["charge"] = fmt.Sprintf("£%.2f", amount)
	}
}
