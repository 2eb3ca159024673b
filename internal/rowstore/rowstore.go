package rowstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrTableNotFound = errors.New("table not found")
	ErrUnavailable   = errors.New("row store unavailable")
)

// Store reads whole tables. It is resource oriented: callers name a table,
// never a statement.
type Store interface {
	SelectAll(ctx context.Context, table string) ([]Row, error)
}

// Row is one record with its columns in result order.
type Row struct {
	Columns []string
	Values  []any
}

func NewRow(columns []string, values []any) Row {
	return Row{Columns: columns, Values: values}
}

func (r Row) Get(column string) (any, bool) {
	for i, name := range r.Columns {
		if name == column && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Map loses column order; use it only where order does not matter.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.Columns))
	for i, name := range r.Columns {
		if i < len(r.Values) {
			out[name] = r.Values[i]
		}
	}
	return out
}

// MarshalJSON writes the row as an object whose keys keep column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range r.Columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, fmt.Errorf("marshal column name: %w", err)
		}
		var value any
		if i < len(r.Values) {
			value = r.Values[i]
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal column %q: %w", name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts an object and keeps its key order.
func (r *Row) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	token, err := decoder.Token()
	if err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode row: expected object")
	}
	r.Columns = r.Columns[:0]
	r.Values = r.Values[:0]
	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("decode row key: %w", err)
		}
		key, ok := keyToken.(string)
		if !ok {
			return fmt.Errorf("decode row: non-string key")
		}
		var value any
		if err := decoder.Decode(&value); err != nil {
			return fmt.Errorf("decode row value %q: %w", key, err)
		}
		r.Columns = append(r.Columns, key)
		r.Values = append(r.Values, value)
	}
	if _, err := decoder.Token(); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}

// ColumnsOf returns the column list of the first row.
func ColumnsOf(rows []Row) []string {
	if len(rows) == 0 {
		return []string{}
	}
	return append([]string(nil), rows[0].Columns...)
}
