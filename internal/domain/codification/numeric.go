package codification

import (
	"math"
	"strconv"
	"strings"
)

// numericFields designates the record fields whose values must be stored as
// numbers. The backend's CSV source uses ',' as decimal separator, so values
// frequently arrive as locale-formatted strings.
var numericFields = map[string]struct{}{
	"edadAnos":                 {},
	"anio":                     {},
	"mes":                      {},
	"estanciasPrequirurgicas":  {},
	"estanciasPostquirurgicas": {},
	"estanciaEpisodio":         {},
	"estanciaRealEpisodio":     {},
	"horasEstancia":            {},
	"estanciaMedia":            {},
	"pesoGrdMedio":             {},
	"pesoMedioNorma":           {},
	"iemaIrBruto":              {},
	"emafIrBruta":              {},
	"impactoEstancias":         {},
	"irPuntoCorteInferior":     {},
	"irPuntoCorteSuperior":     {},
	"emNorma":                  {},
	"estanciasNorma":           {},
	"casosNorma":               {},
	"emTrasladosServicio":      {},
	"facturacionTotal":         {},
	"emPreQuirurgica":          {},
	"emPostQuirurgica":         {},
	"diasDemora":               {},
}

// IsNumericField reports whether the field must hold a numeric value.
func IsNumericField(field string) bool {
	_, ok := numericFields[field]
	return ok
}

// ParseNumeric converts a raw value into a finite float64. It accepts ',' as
// decimal separator. Empty, nil, unparseable, and non-finite inputs all
// report ok=false.
func ParseNumeric(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return v, !math.IsNaN(v) && !math.IsInf(v, 0)
	case float32:
		return ParseNumeric(float64(v))
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		normalized := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
		if normalized == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(normalized, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// CoerceFieldValue applies the numeric coercion policy to a single field.
// Non-numeric fields pass through untouched. For numeric fields, any value
// that does not parse to a finite number becomes nil: a type-ambiguous string
// is never stored in a numeric column.
func CoerceFieldValue(field string, value interface{}) interface{} {
	if !IsNumericField(field) {
		return value
	}
	if parsed, ok := ParseNumeric(value); ok {
		return parsed
	}
	return nil
}

// sanitizeRecord coerces every numeric field of a record in place, mirroring
// what the backend-facing load path does before data reaches the store.
func sanitizeRecord(r Record) Record {
	for field := range numericFields {
		if raw, present := r[field]; present {
			r[field] = CoerceFieldValue(field, raw)
		}
	}
	return r
}
