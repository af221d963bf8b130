// Package record holds the merged, timestamped samples a recording session
// produces and the log they are appended to.
package record

import (
	"math"
	"time"

	"github.com/relabs-tech/motion_recorder/internal/gps"
	"github.com/relabs-tech/motion_recorder/internal/motion"
)

// TimestampLayout renders milliseconds and the numeric zone offset.
const TimestampLayout = "2006-01-02T15:04:05.000-07:00"

// Zone is the fixed UTC+09:00 zone records are stamped in. It ignores the
// host zone and daylight saving.
var Zone = time.FixedZone("UTC+9", 9*60*60)

// Record is one merged sample. Absent readings are stored as 0.
type Record struct {
	Timestamp string  `json:"timestamp"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Speed     float64 `json:"speed"`
}

// FormatTimestamp renders t in Zone, e.g. 2024-01-01T09:00:00.000+09:00.
func FormatTimestamp(t time.Time) string {
	return t.In(Zone).Format(TimestampLayout)
}

// New merges the latest motion and position samples into a record stamped
// at t.
func New(t time.Time, m motion.Sample, p gps.Position) Record {
	return Record{
		Timestamp: FormatTimestamp(t),
		X:         valueOrZero(m.X),
		Y:         valueOrZero(m.Y),
		Z:         valueOrZero(m.Z),
		Latitude:  valueOrZero(p.Latitude),
		Longitude: valueOrZero(p.Longitude),
		Speed:     valueOrZero(p.Speed),
	}
}

// HasPosition reports whether the record carries a usable coordinate pair:
// both latitude and longitude non-zero.
func (r Record) HasPosition() bool {
	return truthy(r.Latitude) && truthy(r.Longitude)
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// truthy treats 0, NaN and ±Inf as missing.
func truthy(v float64) bool {
	return v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
