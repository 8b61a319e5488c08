package reconcile

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/okian/chargeview/internal/domain/model"
	"github.com/spf13/cast"
)

// Accepted timestamp layouts. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses a backend timestamp. Strings are tried against the
// accepted layouts; numbers are epoch milliseconds.
func ParseTimestamp(v any) (time.Time, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return t.UTC(), true
			}
		}
		return time.Time{}, false
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(x)).UTC(), true
	case int, int64:
		return time.UnixMilli(cast.ToInt64(x)).UTC(), true
	default:
		return time.Time{}, false
	}
}

// NormalizeRecord coerces one raw backend object into a TelemetryRecord.
func NormalizeRecord(raw model.RawRecord) model.TelemetryRecord {
	rec := model.TelemetryRecord{
		ID:           raw[model.FieldID],
		Temperature:  plotValue(raw[model.FieldTemperature]),
		Energy:       plotValue(raw[model.FieldEnergy]),
		ChargingRate: totalValue(raw[model.FieldChargingRate]),
		Duration:     totalValue(raw[model.FieldDuration]),
		Cost:         totalValue(raw[model.FieldCost]),
		BatteryLevel: totalValue(raw[model.FieldBattery]),
	}
	rec.Key, _ = NormalizeID(rec.ID)
	rec.Timestamp, _ = raw[model.FieldTimestamp].(string)
	if rec.Timestamp == "" && raw[model.FieldTimestamp] != nil {
		rec.Timestamp = cast.ToString(raw[model.FieldTimestamp])
	}
	rec.At, rec.TimestampValid = ParseTimestamp(raw[model.FieldTimestamp])
	return rec
}

// NormalizeLatest normalizes the latest-record payload. A missing or empty
// object yields nil.
func NormalizeLatest(raw model.RawRecord) *model.TelemetryRecord {
	if len(raw) == 0 {
		return nil
	}
	rec := NormalizeRecord(raw)
	return &rec
}

// NormalizeHistory coerces every raw record and orders the result by
// ascending timestamp. The sort is stable; records with an unparseable
// timestamp keep their relative order after all valid ones.
func NormalizeHistory(raw []model.RawRecord) []model.TelemetryRecord {
	out := make([]model.TelemetryRecord, 0, len(raw))
	for _, r := range raw {
		out = append(out, NormalizeRecord(r))
	}
	slices.SortStableFunc(out, compareByTime)
	return out
}

func compareByTime(a, b model.TelemetryRecord) int {
	switch {
	case a.TimestampValid && b.TimestampValid:
		return a.At.Compare(b.At)
	case a.TimestampValid:
		return -1
	case b.TimestampValid:
		return 1
	default:
		return 0
	}
}
