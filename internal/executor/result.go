package executor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind classifies the outcome of a single execution.
type Kind int

const (
	KindSuccess Kind = iota
	KindMissingDatabase
	KindDatabase
	KindRejected
	KindUnclassified
)

// String returns the metric/log label for the kind.
func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindMissingDatabase:
		return "missing_database"
	case KindDatabase:
		return "database"
	case KindRejected:
		return "rejected"
	case KindUnclassified:
		return "unclassified"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is either a successful record set (Kind == KindSuccess) or a
// failure with a human-readable Message.
type Result struct {
	Kind    Kind
	Columns []string
	Records []Record
	Message string
}

// OK reports whether the execution succeeded.
func (r Result) OK() bool { return r.Kind == KindSuccess }

func success(columns []string, records []Record) Result {
	if records == nil {
		records = []Record{}
	}
	return Result{Kind: KindSuccess, Columns: columns, Records: records}
}

func failure(kind Kind, format string, args ...any) Result {
	return Result{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// errorPayload is the JSON shape of every failed execution.
type errorPayload struct {
	Error string `json:"error"`
}

// JSON renders the result as a 4-space indented document: an array of
// records on success, {"error": "..."} otherwise. It never fails; a
// serialization problem is itself rendered as an error payload.
func (r Result) JSON() string {
	var v any = errorPayload{Error: r.Message}
	if r.OK() {
		v = r.Records
	}
	out, err := render(v)
	if err != nil {
		out, _ = render(errorPayload{Error: err.Error()})
	}
	return out
}

func render(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
