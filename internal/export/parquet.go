package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/duckmesh/mesquery/internal/rowstore"
)

// EncodeRows writes rows as parquet with one optional string column per result
// column. Nil values become nulls; everything else is rendered as text.
func EncodeRows(columns []string, rows []rowstore.Row) ([]byte, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("at least one column is required")
	}
	group := parquet.Group{}
	for _, column := range columns {
		if column == "" {
			return nil, fmt.Errorf("column name is required")
		}
		if _, dup := group[column]; dup {
			return nil, fmt.Errorf("duplicate column %q", column)
		}
		group[column] = parquet.Optional(parquet.String())
	}
	schema := parquet.NewSchema("query_result", group)
	fields := schema.Fields()

	encoded := make([]parquet.Row, 0, len(rows))
	for _, row := range rows {
		out := make(parquet.Row, len(fields))
		for i, field := range fields {
			value, ok := row.Get(field.Name())
			if !ok || value == nil {
				out[i] = parquet.NullValue().Level(0, 0, i)
				continue
			}
			text, err := formatValue(value)
			if err != nil {
				return nil, fmt.Errorf("format column %q: %w", field.Name(), err)
			}
			out[i] = parquet.ByteArrayValue([]byte(text)).Level(0, 1, i)
		}
		encoded = append(encoded, out)
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewWriter(buf, schema)
	if _, err := writer.WriteRows(encoded); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

func formatValue(value any) (string, error) {
	switch typed := value.(type) {
	case string:
		return typed, nil
	case []byte:
		return string(typed), nil
	case bool:
		return strconv.FormatBool(typed), nil
	case int:
		return strconv.Itoa(typed), nil
	case int32:
		return strconv.FormatInt(int64(typed), 10), nil
	case int64:
		return strconv.FormatInt(typed, 10), nil
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), nil
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano), nil
	case json.Number:
		return typed.String(), nil
	case fmt.Stringer:
		return typed.String(), nil
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}
