package store

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/sschnei8/predictionMarketExploro/internal/model"
)

// ArrowSchema maps a model schema onto an arrow schema. Every column is nullable.
func ArrowSchema(s model.Schema) *arrow.Schema {
	fields := make([]arrow.Field, len(s.Columns))
	for i, c := range s.Columns {
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(c.Type), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

func arrowType(t model.ColumnType) arrow.DataType {
	switch t {
	case model.Int64:
		return arrow.PrimitiveTypes.Int64
	case model.Float64:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}

// modelSchema is the inverse of ArrowSchema for files read back from disk.
func modelSchema(s *arrow.Schema) (model.Schema, error) {
	cols := make([]model.Column, s.NumFields())
	for i, f := range s.Fields() {
		var t model.ColumnType
		switch f.Type.ID() {
		case arrow.STRING, arrow.LARGE_STRING:
			t = model.String
		case arrow.INT64, arrow.INT32:
			t = model.Int64
		case arrow.FLOAT64, arrow.FLOAT32:
			t = model.Float64
		default:
			return model.Schema{}, fmt.Errorf("column %s: unsupported type %s", f.Name, f.Type)
		}
		cols[i] = model.Column{Name: f.Name, Type: t}
	}
	return model.Schema{Columns: cols}, nil
}

// appendRecords fills a record builder from rows.
func appendRecords(b *array.RecordBuilder, schema model.Schema, rows []model.Record) error {
	n := schema.Len()
	for r, row := range rows {
		if len(row) != n {
			return fmt.Errorf("row %d has %d values, schema has %d columns", r, len(row), n)
		}
		for i, v := range row {
			if err := appendValue(b.Field(i), schema.Columns[i], v); err != nil {
				return fmt.Errorf("row %d: %w", r, err)
			}
		}
	}
	return nil
}

func appendValue(fb array.Builder, col model.Column, v any) error {
	if v == nil {
		fb.AppendNull()
		return nil
	}

	switch col.Type {
	case model.String:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("column %s: want string, got %T", col.Name, v)
		}
		fb.(*array.StringBuilder).Append(s)
	case model.Int64:
		n, ok := v.(int64)
		if !ok {
			return fmt.Errorf("column %s: want int64, got %T", col.Name, v)
		}
		fb.(*array.Int64Builder).Append(n)
	case model.Float64:
		f, ok := v.(float64)
		if !ok {
			return fmt.Errorf("column %s: want float64, got %T", col.Name, v)
		}
		fb.(*array.Float64Builder).Append(f)
	default:
		return fmt.Errorf("column %s: unsupported type %v", col.Name, col.Type)
	}
	return nil
}

// toRecords converts an arrow record batch back to rows.
func toRecords(rec arrow.Record) ([]model.Record, error) {
	nrows := int(rec.NumRows())
	ncols := int(rec.NumCols())
	rows := make([]model.Record, nrows)
	for r := range rows {
		rows[r] = make(model.Record, ncols)
	}

	for c := 0; c < ncols; c++ {
		col := rec.Column(c)
		for r := 0; r < nrows; r++ {
			if col.IsNull(r) {
				continue
			}
			switch arr := col.(type) {
			case *array.String:
				rows[r][c] = arr.Value(r)
			case *array.LargeString:
				rows[r][c] = arr.Value(r)
			case *array.Int64:
				rows[r][c] = arr.Value(r)
			case *array.Int32:
				rows[r][c] = int64(arr.Value(r))
			case *array.Float64:
				rows[r][c] = arr.Value(r)
			case *array.Float32:
				rows[r][c] = float64(arr.Value(r))
			default:
				return nil, fmt.Errorf("column %s: unsupported array %T", rec.ColumnName(c), col)
			}
		}
	}
	return rows, nil
}
