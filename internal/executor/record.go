package executor

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
	"unicode/utf8"
)

// Field is one column/value pair of a record.
type Field struct {
	Column string
	Value  any
}

// Record is a single result row. Fields keep the statement's column order,
// which is also the key order of the JSON object it marshals to.
type Record []Field

// Get returns the value of the named column.
func (r Record) Get(column string) (any, bool) {
	for _, f := range r {
		if f.Column == column {
			return f.Value, true
		}
	}
	return nil, false
}

// Columns returns the record's column names in order.
func (r Record) Columns() []string {
	out := make([]string, len(r))
	for i, f := range r {
		out[i] = f.Column
	}
	return out
}

// MarshalJSON encodes the record as an object with ordered keys.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeValue(&buf, f.Column); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := encodeValue(&buf, f.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// zip pairs a scanned row with the column names. A repeated column name
// keeps its first position and takes the later value.
func zip(columns []string, values []any) Record {
	rec := make(Record, 0, len(columns))
	for i, name := range columns {
		var v any
		if i < len(values) {
			v = normalize(values[i])
		}
		replaced := false
		for j := range rec {
			if rec[j].Column == name {
				rec[j].Value = v
				replaced = true
				break
			}
		}
		if !replaced {
			rec = append(rec, Field{Column: name, Value: v})
		}
	}
	return rec
}

// normalize converts driver values into JSON-friendly scalars. Text that the
// driver decoded into time.Time is rendered back to SQLite's text form.
// BLOBs that are not valid UTF-8 stay []byte and encode as base64.
func normalize(v any) any {
	switch val := v.(type) {
	case []byte:
		if utf8.Valid(val) {
			return string(val)
		}
		return val
	case time.Time:
		return formatTime(val)
	default:
		return v
	}
}

const (
	sqliteDateTime       = "2006-01-02 15:04:05.999999999"
	sqliteDateTimeOffset = "2006-01-02 15:04:05.999999999-07:00"
)

// formatTime keeps fractional seconds and a non-UTC offset. Only a UTC
// midnight collapses to the date alone, since the driver parses
// '1996-07-04' and '1996-07-04 00:00:00' to the same instant.
func formatTime(t time.Time) string {
	if _, offset := t.Zone(); offset != 0 {
		return t.Format(sqliteDateTimeOffset)
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format(sqliteDateTime)
}

func encodeValue(buf *bytes.Buffer, v any) error {
	// Integral floats keep a decimal point so REAL columns stay
	// distinguishable from INTEGER ones.
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		buf.WriteString(strconv.FormatFloat(f, 'f', 1, 64))
		return nil
	}
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte("\n")))
	return nil
}
