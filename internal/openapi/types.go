package openapi

import "strings"

// TypeMapping maps a declared SQLite column type to an OpenAPI type/format pair.
type TypeMapping struct {
	Type   string // OpenAPI type: string, integer, number, boolean
	Format string // OpenAPI format: int64, double, date, date-time, byte
}

// declaredTypes maps common declared type names (case-insensitive lookup).
var declaredTypes = map[string]TypeMapping{
	"integer":   {"integer", "int64"},
	"int":       {"integer", "int64"},
	"bigint":    {"integer", "int64"},
	"smallint":  {"integer", "int64"},
	"real":      {"number", "double"},
	"double":    {"number", "double"},
	"float":     {"number", "double"},
	"numeric":   {"number", "double"},
	"decimal":   {"number", "double"},
	"text":      {"string", ""},
	"varchar":   {"string", ""},
	"blob":      {"string", "byte"},
	"boolean":   {"boolean", ""},
	"date":      {"string", "date"},
	"datetime":  {"string", "date-time"},
	"timestamp": {"string", "date-time"},
}

// MapSQLiteType converts a declared SQLite column type to an OpenAPI type
// mapping. Names not in the table follow SQLite's type affinity rules.
func MapSQLiteType(declared string) TypeMapping {
	normalized := strings.ToLower(strings.TrimSpace(declared))

	// Strip anything after opening paren: "varchar(255)" -> "varchar"
	if idx := strings.IndexByte(normalized, '('); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}
	if m, ok := declaredTypes[normalized]; ok {
		return m
	}

	switch {
	case strings.Contains(normalized, "int"):
		return TypeMapping{"integer", "int64"}
	case strings.Contains(normalized, "char"), strings.Contains(normalized, "clob"), strings.Contains(normalized, "text"):
		return TypeMapping{"string", ""}
	case normalized == "", strings.Contains(normalized, "blob"):
		return TypeMapping{"string", "byte"}
	default:
		// REAL and NUMERIC affinity.
		return TypeMapping{"number", "double"}
	}
}
