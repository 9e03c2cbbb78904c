// Package mapper converts registry records into socios_padron rows.
//
// MapItem is total: any JSON object maps to a row. Values of an unexpected
// shape are neutralized (serialized to text, or dropped to NULL for typed
// columns) rather than rejected, so nothing composite can reach the database.
package mapper

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/gymbridge/internal/models"
	"github.com/dmitrijs2005/gymbridge/internal/registry"
)

// Upstream field names.
const (
	FieldNationalID      = "dni"
	FieldSecondaryID     = "sid"
	FieldDisplayName     = "apynom"
	FieldBarcode         = "barcode"
	FieldBalance         = "saldo"
	FieldStatusCode      = "semaforo"
	FieldLastUnpaidDate  = "ult_impago"
	FieldFullAccess      = "acceso_full"
	FieldControlsEnabled = "hab_controles"
	FieldControlsRaw     = "hab_controles_raw"
	FieldRaw             = "raw"
)

// MapItem maps one upstream record to a MirrorRecord.
func MapItem(rec registry.Record) models.MirrorRecord {
	raw, ok := rec.Field(FieldRaw)
	if !ok {
		// without an explicit raw payload the whole item is kept
		raw = rec.Raw()
	}

	return models.MirrorRecord{
		NationalID:      key(rec, FieldNationalID),
		SecondaryID:     key(rec, FieldSecondaryID),
		DisplayName:     text(rec, FieldDisplayName),
		Barcode:         text(rec, FieldBarcode),
		Balance:         decimal(rec, FieldBalance),
		StatusCode:      integer(rec, FieldStatusCode),
		LastUnpaidDate:  text(rec, FieldLastUnpaidDate),
		FullAccess:      boolean(rec, FieldFullAccess),
		ControlsEnabled: boolean(rec, FieldControlsEnabled),
		ControlsRaw:     text(rec, FieldControlsRaw),
		Raw:             flatten(raw),
	}
}

// MapPage maps every record of a page, preserving order.
func MapPage(recs []registry.Record) []models.MirrorRecord {
	rows := make([]models.MirrorRecord, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, MapItem(r))
	}
	return rows
}

// flatten renders a JSON value as text: strings by content, everything else
// (objects, arrays, numbers, booleans) as compact JSON.
func flatten(v json.RawMessage) *string {
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil
	}
	if v[0] == '"' {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return &s
		}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		s := string(v)
		return &s
	}
	s := buf.String()
	return &s
}

func text(rec registry.Record, name string) *string {
	v, ok := rec.Field(name)
	if !ok {
		return nil
	}
	return flatten(v)
}

// key is text trimmed, with empty meaning absent: the upsert partitions and
// the partial unique index both rely on NULL for a missing key.
func key(rec registry.Record, name string) *string {
	s := text(rec, name)
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// plainDecimal excludes the Inf, NaN and hex forms strconv would accept;
// NUMERIC columns reject them.
var plainDecimal = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

func number(rec registry.Record, name string) (json.Number, bool) {
	v, ok := rec.Field(name)
	if !ok {
		return "", false
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
		if plainDecimal.MatchString(s) {
			return json.Number(s), true
		}
	}
	return "", false
}

func decimal(rec registry.Record, name string) *string {
	n, ok := number(rec, name)
	if !ok {
		return nil
	}
	s := n.String()
	return &s
}

func integer(rec registry.Record, name string) *int {
	n, ok := number(rec, name)
	if !ok {
		return nil
	}
	if i, err := n.Int64(); err == nil {
		v := int(i)
		return &v
	}
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		v := int(f)
		return &v
	}
	return nil
}

func boolean(rec registry.Record, name string) *bool {
	v, ok := rec.Field(name)
	if !ok {
		return nil
	}
	var b bool
	if err := json.Unmarshal(v, &b); err == nil {
		return &b
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return parseFlag(n.String())
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return parseFlag(s)
	}
	return nil
}

func parseFlag(s string) *bool {
	t, f := true, false
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "s", "si", "sí", "y", "yes":
		return &t
	case "0", "false", "n", "no":
		return &f
	}
	return nil
}
