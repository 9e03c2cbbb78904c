package timex

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gymbridge/internal/common"
)

// WireLayout is the only timestamp format the registry accepts for
// updated_since: UTC, second precision, literal trailing Z.
const WireLayout = "2006-01-02T15:04:05Z"

// layouts accepted by Parse, tried in order. Layouts without a zone are
// interpreted as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Parse reads the loose set of timestamp shapes seen in operator input,
// stored cursors and upstream server_time values.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", common.ErrInvalidTimestamp)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", common.ErrInvalidTimestamp, s)
}

// ToWire renders t in WireLayout, dropping sub-second precision.
func ToWire(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(WireLayout)
}

// NormalizeWire parses s and re-renders it in WireLayout.
func NormalizeWire(s string) (string, error) {
	t, err := Parse(s)
	if err != nil {
		return "", err
	}
	return ToWire(t), nil
}
