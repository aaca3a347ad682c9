package projector

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/weiawesome/wes-io-live/overlay-service/internal/domain"
)

// Validation errors, reported in the order they are checked.
var (
	ErrMissingType      = errors.New("missing_type")
	ErrMissingTimestamp = errors.New("missing_timestamp")
	ErrMissingData      = errors.New("missing_data")
	ErrInvalidTimestamp = errors.New("invalid_timestamp")
	ErrInvalidData      = errors.New("invalid_data")
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses s in any recognized date-time layout. Layouts
// without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidTimestamp
}

// Validate checks a raw event and returns its typed form. An event that fails
// validation never reaches Apply.
func Validate(raw domain.RawEvent) (domain.Event, error) {
	if strings.TrimSpace(raw.Type) == "" {
		return domain.Event{}, ErrMissingType
	}
	if strings.TrimSpace(raw.Timestamp) == "" {
		return domain.Event{}, ErrMissingTimestamp
	}
	trimmed := bytes.TrimSpace(raw.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return domain.Event{}, ErrMissingData
	}

	ts, err := ParseTimestamp(raw.Timestamp)
	if err != nil {
		return domain.Event{}, err
	}

	if trimmed[0] != '{' {
		return domain.Event{}, ErrInvalidData
	}
	var data map[string]any
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return domain.Event{}, ErrInvalidData
	}

	return domain.Event{
		Type:      domain.EventType(raw.Type),
		Timestamp: ts,
		Data:      data,
	}, nil
}

// ErrorCode returns the wire code for a validation error, or "" when err is
// not one of them.
func ErrorCode(err error) string {
	for _, known := range []error{ErrMissingType, ErrMissingTimestamp, ErrMissingData, ErrInvalidTimestamp, ErrInvalidData} {
		if errors.Is(err, known) {
			return strings.ToUpper(known.Error())
		}
	}
	return ""
}
