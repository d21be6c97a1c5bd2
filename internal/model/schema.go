package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// ColumnType is the storage type of a column.
type ColumnType int

const (
	String ColumnType = iota
	Int64
	Float64
)

func (t ColumnType) String() string {
	switch t {
	case String:
		return "string"
	case Int64:
		return "int64"
	case Float64:
		return "float64"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// ParseColumnType parses the names used in config files.
func ParseColumnType(s string) (ColumnType, error) {
	switch s {
	case "string", "":
		return String, nil
	case "int64", "int":
		return Int64, nil
	case "float64", "float", "double":
		return Float64, nil
	default:
		return String, fmt.Errorf("unknown column type %q", s)
	}
}

// Column is a single named, typed column.
type Column struct {
	Name string
	Type ColumnType
}

// Schema is an ordered list of columns.
type Schema struct {
	Columns []Column
}

// Record is one row. Values are positional and follow Schema.Columns.
type Record []any

// NewSchema builds a schema from columns.
func NewSchema(cols ...Column) Schema {
	return Schema{Columns: cols}
}

// Len returns the number of columns.
func (s Schema) Len() int {
	return len(s.Columns)
}

// Index returns the position of the named column, or -1.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Equal reports whether both schemas have the same columns in the same order.
func (s Schema) Equal(other Schema) bool {
	if len(s.Columns) != len(other.Columns) {
		return false
	}
	for i := range s.Columns {
		if s.Columns[i] != other.Columns[i] {
			return false
		}
	}
	return true
}

// Extract converts one decoded JSON object into a Record. Fields not in the
// schema are dropped; missing fields become null. The object should have been
// decoded with json.Decoder.UseNumber so integers survive unchanged.
func (s Schema) Extract(item map[string]any) (Record, error) {
	rec := make(Record, len(s.Columns))
	for i, col := range s.Columns {
		v, err := convert(item[col.Name], col.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		rec[i] = v
	}
	return rec, nil
}

// floatToInt accepts whole numbers within int64 range, such as 1e3 or 5.0.
func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v is not an integer", f)
	}
	// -2^63 is exact as a float64; 2^63 is the first value out of range.
	if f < math.MinInt64 || f >= -math.MinInt64 {
		return 0, fmt.Errorf("%v overflows int64", f)
	}
	return int64(f), nil
}

func convert(v any, t ColumnType) (any, error) {
	if v == nil {
		return nil, nil
	}

	switch t {
	case String:
		switch x := v.(type) {
		case string:
			return x, nil
		case json.Number:
			return x.String(), nil
		case bool:
			return strconv.FormatBool(x), nil
		case float64:
			return strconv.FormatFloat(x, 'f', -1, 64), nil
		default:
			// Nested objects and arrays are kept as their JSON text.
			b, err := json.Marshal(x)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		}

	case Int64:
		switch x := v.(type) {
		case json.Number:
			if n, err := x.Int64(); err == nil {
				return n, nil
			}
			f, err := x.Float64()
			if err != nil {
				return nil, fmt.Errorf("parse int %q: %w", x, err)
			}
			return floatToInt(f)
		case float64:
			return floatToInt(x)
		case string:
			if x == "" {
				return nil, nil
			}
			n, err := strconv.ParseInt(x, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("parse int %q: %w", x, err)
			}
			return n, nil
		case bool:
			if x {
				return int64(1), nil
			}
			return int64(0), nil
		default:
			return nil, fmt.Errorf("cannot convert %T to int64", v)
		}

	case Float64:
		switch x := v.(type) {
		case json.Number:
			f, err := x.Float64()
			if err != nil {
				return nil, fmt.Errorf("parse float %q: %w", x, err)
			}
			return f, nil
		case float64:
			return x, nil
		case string:
			if x == "" {
				return nil, nil
			}
			f, err := strconv.ParseFloat(x, 64)
			if err != nil {
				return nil, fmt.Errorf("parse float %q: %w", x, err)
			}
			return f, nil
		default:
			return nil, fmt.Errorf("cannot convert %T to float64", v)
		}
	}

	return nil, fmt.Errorf("unsupported column type %v", t)
}
