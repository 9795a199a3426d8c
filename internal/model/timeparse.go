package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999", // ISO-8601 without zone, read as UTC
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// ParseTimestamp reads the posting-date formats the sources use: ISO-8601
// with or without zone, plain dates, RSS dates and Unix epochs (seconds or
// milliseconds). Zone-less values are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return epoch(n), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// TimestampFromMeta interprets a raw metadata value as a timestamp.
// present is false for nil or blank values.
func TimestampFromMeta(v any) (t time.Time, present bool, err error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false, nil
	case string:
		if strings.TrimSpace(x) == "" {
			return time.Time{}, false, nil
		}
		t, err = ParseTimestamp(x)
		return t, true, err
	case float64:
		return epoch(int64(x)), true, nil
	case int:
		return epoch(int64(x)), true, nil
	case int64:
		return epoch(x), true, nil
	case time.Time:
		return x.UTC(), true, nil
	default:
		return time.Time{}, true, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func epoch(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
