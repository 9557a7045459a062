package sync

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nhle/notification-monitor/internal/model"
)

// timestampLayouts are the ISO-8601 forms accepted for a record's
// timestamp. Layouts without a zone are read in local time.
var timestampLayouts = []struct {
	layout string
	zoned  bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05.999999999Z0700", true},
	{"2006-01-02 15:04:05.999999999Z07:00", true},
	{"2006-01-02 15:04:05.999999999Z0700", true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02 15:04:05.999999999", false},
	{"2006-01-02T15:04", false},
	{"2006-01-02", false},
}

// ParseTimestamp parses an ISO-8601 timestamp. ok is false for empty or
// unparsable input.
func ParseTimestamp(s string) (t time.Time, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, l := range timestampLayouts {
		var err error
		if l.zoned {
			t, err = time.Parse(l.layout, s)
		} else {
			t, err = time.ParseInLocation(l.layout, s, time.Local)
		}
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// RelativeTime renders ts relative to now ("5 minutes ago", "2 days
// from now"). A nil, empty or unparsable timestamp renders as "".
func RelativeTime(ts *string, now time.Time) string {
	if ts == nil {
		return ""
	}
	t, ok := ParseTimestamp(*ts)
	if !ok {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// ToDisplayRecord maps a raw record to its display form, anchoring the
// relative time at now.
func ToDisplayRecord(raw model.RawNotification, now time.Time) model.DisplayRecord {
	status := ""
	if raw.Status != nil {
		status = *raw.Status
	}

	return model.DisplayRecord{
		ID:           raw.ID,
		Recipient:    raw.Destination(),
		Status:       status,
		RelativeTime: RelativeTime(raw.Timestamp, now),
	}
}

// ToDisplayRecords maps raws in order. Duplicate ids are kept as-is.
func ToDisplayRecords(raws []model.RawNotification, now time.Time) []model.DisplayRecord {
	records := make([]model.DisplayRecord, 0, len(raws))
	for _, raw := range raws {
		records = append(records, ToDisplayRecord(raw, now))
	}
	return records
}
