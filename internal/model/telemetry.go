package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// TelemetryRecord is append-only. A newer record for a robot supersedes older
// ones; "latest" is always a query over timestamps.
type TelemetryRecord struct {
	ID              uint64         `json:"id,omitempty"`
	RobotID         string         `json:"robot_id"`
	Status          string         `json:"status"`
	Battery         float64        `json:"battery"`
	CurrentLocation string         `json:"current_location"`
	Destination     string         `json:"destination,omitempty"`
	Position        *Position      `json:"position,omitempty"`
	Timestamp       time.Time      `json:"timestamp"`
	Raw             map[string]any `json:"raw,omitempty"`
}

// Text is the searchable one-line summary stored alongside the record.
func (r TelemetryRecord) Text() string {
	location := r.CurrentLocation
	if location == "" {
		location = "unknown"
	}
	status := r.Status
	if status == "" {
		status = "unknown"
	}

	s := fmt.Sprintf("Robot %s at %s - Status: %s, Battery: %s%%",
		r.RobotID, location, status, strconv.FormatFloat(r.Battery, 'f', -1, 64))
	if r.Destination != "" {
		s += ", navigating to " + r.Destination
	}
	return s
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// NormalizeTimestamp accepts RFC 3339, naive ISO-8601 (read as UTC), unix
// seconds as a number or a numeric string. Anything else yields fallback.
// The result is always UTC.
func NormalizeTimestamp(v any, fallback time.Time) time.Time {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return fallback.UTC()
		}
		return t.UTC()
	case float64:
		return unixSeconds(t)
	case int64:
		return time.Unix(t, 0).UTC()
	case int:
		return time.Unix(int64(t), 0).UTC()
	case string:
		s := strings.TrimSpace(t)
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC()
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return unixSeconds(f)
		}
	}
	return fallback.UTC()
}

func unixSeconds(f float64) time.Time {
	sec := int64(f)
	nsec := int64((f - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
