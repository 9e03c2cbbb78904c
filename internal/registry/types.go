package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// Record is one upstream member object, kept as raw JSON. Field values are
// decoded by the mapper, which decides how each one is flattened.
type Record struct {
	raw    json.RawMessage
	fields map[string]json.RawMessage
}

// NewRecord parses b, which must be a JSON object.
func NewRecord(b []byte) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return Record{}, err
	}
	if fields == nil {
		return Record{}, errors.New("record is null")
	}
	return Record{raw: append(json.RawMessage(nil), b...), fields: fields}, nil
}

// Field returns the raw value of name. JSON null is reported as absent.
func (r Record) Field(name string) (json.RawMessage, bool) {
	v, ok := r.fields[name]
	if !ok || isNull(v) {
		return nil, false
	}
	return v, true
}

// Raw returns the whole object as received.
func (r Record) Raw() json.RawMessage {
	return r.raw
}

// Pagination is the page metadata reported by the registry.
type Pagination struct {
	CurrentPage int
	LastPage    int
}

// PageResult is one fetched page.
type PageResult struct {
	Data []Record
	// HasData is false when the body carried no "data" array at all.
	HasData    bool
	Pagination Pagination
	// ServerTime is the registry clock at response time, verbatim. Empty if absent.
	ServerTime string
	// Body is the response body as received, for archiving.
	Body []byte
}

// Member is a single registry entry returned by the by-dni lookup.
type Member struct {
	NationalID string          `json:"dni"`
	Payload    json.RawMessage `json:"payload"`
}

func isNull(v json.RawMessage) bool {
	return len(bytes.TrimSpace(v)) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

// flexInt accepts 3, "3" and null.
type flexInt struct {
	value int
	set   bool
}

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if isNull(b) {
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			f.value, f.set = int(v), true
			return nil
		}
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if v, err := strconv.Atoi(s); err == nil {
			f.value, f.set = v, true
		}
	}
	return nil
}

func (f flexInt) or(def int) int {
	if f.set {
		return f.value
	}
	return def
}
