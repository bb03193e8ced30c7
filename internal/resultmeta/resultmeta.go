// Package resultmeta maps host-engine result values onto the target
// dialect's column metadata shape, spec.md §6.3, and batches result rows
// into the wire-sized groups §6.4 describes for fetch_arrow_batch-style
// consumers.
package resultmeta

import (
	"fmt"
	"strings"
	"time"
)

// TypeCode is the target dialect's numeric column type code.
type TypeCode int

const (
	TypeFixed     TypeCode = 0 // integers and DECIMAL(p,s)
	TypeReal      TypeCode = 1
	TypeText      TypeCode = 2
	TypeDate      TypeCode = 3
	TypeVariant   TypeCode = 5
	TypeTimestampTZ TypeCode = 7
	TypeTimestamp TypeCode = 8
	TypeBinary    TypeCode = 11
	TypeTime      TypeCode = 12
	TypeBoolean   TypeCode = 13
)

// Column is one entry of a cursor's description: (name, type_code,
// display_size, internal_size, precision, scale, is_nullable), the exact
// seven-tuple spec.md §6.3 specifies.
type Column struct {
	Name         string
	TypeCode     TypeCode
	DisplaySize  int
	InternalSize int
	Precision    int
	Scale        int
	IsNullable   bool
}

// Describe builds one cursor's description from its column names and a
// sample row. The host engine (SPEC_FULL.md §2's tinySQL) does not expose
// a separate declared-type catalog per column through the Go API this
// module already depends on (internal/engine.Result carries dynamically-
// typed Go values, one per cell), so type codes are inferred from the
// runtime Go type of the first non-nil value seen in each column, falling
// back to TypeText for an all-NULL or empty result. declaredLengths (from
// the catalog's columns_ext-equivalent, internal/catalog.ColumnLength)
// overrides InternalSize/DisplaySize for VARCHAR columns whose length was
// recorded at CREATE/ALTER time.
func Describe(columns []string, rows []map[string]any, declaredLength func(column string) int) []Column {
	out := make([]Column, len(columns))
	for i, name := range columns {
		col := Column{Name: name, TypeCode: TypeText, IsNullable: true, InternalSize: 16777216}
		for _, row := range rows {
			v, ok := row[name]
			if !ok || v == nil {
				continue
			}
			applyType(&col, v)
			break
		}
		if declaredLength != nil {
			if n := declaredLength(name); n > 0 && col.TypeCode == TypeText {
				col.InternalSize = n
				col.DisplaySize = n
			}
		}
		out[i] = col
	}
	return out
}

func applyType(col *Column, v any) {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		col.TypeCode = TypeFixed
		col.Precision, col.Scale = 38, 0
	case float32, float64:
		col.TypeCode = TypeReal
	case bool:
		col.TypeCode = TypeBoolean
	case time.Time:
		col.TypeCode = TypeTimestamp
		col.Scale = 9
	case []byte:
		col.TypeCode = TypeBinary
		col.InternalSize = 8388608
	default:
		col.TypeCode = TypeText
		col.InternalSize = 16777216
	}
}

// DecimalColumn overrides a Column in place for a DECIMAL(p,s) result the
// caller already knows the precision/scale of (e.g. from a CAST in the
// rewritten SQL), since runtime value inspection alone cannot recover
// scale from a float64.
func DecimalColumn(col *Column, precision, scale int) {
	col.TypeCode = TypeFixed
	col.Precision = precision
	col.Scale = scale
}

// DeclaredColumn builds a Column from a catalog-recorded declared type
// (internal/catalog's columns_ext-equivalent), used by DESCRIBE TABLE to
// render surface syntax without needing a sample row to infer from (a
// DESCRIBE has no rows to inspect — internal/session's DESCRIBE probe
// query runs with LIMIT 0). An empty dataType means the column carries no
// catalog entry, the target dialect's untyped numeric default.
func DeclaredColumn(name, dataType string, length int) Column {
	switch strings.ToUpper(dataType) {
	case "VARCHAR", "CHAR", "STRING", "TEXT":
		n := length
		if n <= 0 {
			n = 16777216
		}
		return Column{Name: name, TypeCode: TypeText, InternalSize: n, DisplaySize: n, IsNullable: true}
	case "TIMESTAMP_NTZ", "TIMESTAMP", "DATETIME":
		return Column{Name: name, TypeCode: TypeTimestamp, Scale: 9, IsNullable: true}
	case "BOOLEAN":
		return Column{Name: name, TypeCode: TypeBoolean, IsNullable: true}
	case "FLOAT", "DOUBLE", "REAL":
		return Column{Name: name, TypeCode: TypeReal, IsNullable: true}
	default:
		return Column{Name: name, TypeCode: TypeFixed, Precision: 38, Scale: 0, IsNullable: true}
	}
}

// SurfaceType renders col's target-dialect surface syntax: NUMBER(p,s),
// VARCHAR(n), TIMESTAMP_NTZ(9), and so on, the strings DESCRIBE TABLE's
// "type" column carries (spec.md §8's testable property).
func SurfaceType(col Column) string {
	switch col.TypeCode {
	case TypeFixed:
		return fmt.Sprintf("NUMBER(%d,%d)", col.Precision, col.Scale)
	case TypeReal:
		return "FLOAT"
	case TypeText:
		n := col.InternalSize
		if n <= 0 {
			n = 16777216
		}
		return fmt.Sprintf("VARCHAR(%d)", n)
	case TypeBoolean:
		return "BOOLEAN"
	case TypeDate:
		return "DATE"
	case TypeTime:
		return "TIME"
	case TypeTimestamp:
		return fmt.Sprintf("TIMESTAMP_NTZ(%d)", col.Scale)
	case TypeTimestampTZ:
		return fmt.Sprintf("TIMESTAMP_TZ(%d)", col.Scale)
	case TypeBinary:
		return "BINARY"
	case TypeVariant:
		return "VARIANT"
	default:
		return "TEXT"
	}
}

// BatchSize is the maximum row count per wire batch, spec.md §6.4.
const BatchSize = 1000

// Batch is one group of ≤ BatchSize rows plus the field metadata the wire
// adapter's IPC encoding (spec.md §6.4) attaches per column.
type Batch struct {
	Rows   []map[string]any
	Fields []FieldMeta
}

// FieldMeta is one column's wire-level type annotation.
type FieldMeta struct {
	Name        string
	LogicalType string
	Precision   int
	Scale       int
	CharLength  int
}

// Batches splits rows into ≤1000-row groups, each carrying the field
// metadata derived from cols.
func Batches(cols []Column, rows []map[string]any) []Batch {
	fields := make([]FieldMeta, len(cols))
	for i, c := range cols {
		fields[i] = FieldMeta{
			Name:        c.Name,
			LogicalType: logicalTypeName(c.TypeCode),
			Precision:   c.Precision,
			Scale:       c.Scale,
			CharLength:  c.InternalSize,
		}
	}
	if len(rows) == 0 {
		return []Batch{{Rows: nil, Fields: fields}}
	}
	var out []Batch
	for start := 0; start < len(rows); start += BatchSize {
		end := start + BatchSize
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, Batch{Rows: rows[start:end], Fields: fields})
	}
	return out
}

func logicalTypeName(t TypeCode) string {
	switch t {
	case TypeFixed:
		return "FIXED"
	case TypeReal:
		return "REAL"
	case TypeText:
		return "TEXT"
	case TypeDate:
		return "DATE"
	case TypeVariant:
		return "VARIANT"
	case TypeTimestampTZ:
		return "TIMESTAMP_TZ"
	case TypeTimestamp:
		return "TIMESTAMP_NTZ"
	case TypeBinary:
		return "BINARY"
	case TypeTime:
		return "TIME"
	case TypeBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}
