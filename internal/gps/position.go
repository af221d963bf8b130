package gps

// Position is one GPS reading as pushed by a position source.
// A nil field means the source did not report it.
type Position struct {
	Latitude  *float64 `json:"lat,omitempty"`   // decimal degrees
	Longitude *float64 `json:"lon,omitempty"`   // decimal degrees
	Speed     *float64 `json:"speed,omitempty"` // m/s over ground
}

// HasFix reports whether both coordinates were reported.
func (p Position) HasFix() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Float returns a pointer to v, for building samples from plain values.
func Float(v float64) *float64 {
	return &v
}
