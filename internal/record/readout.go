package record

import "strconv"

// Readout is the formatted live view of the latest record, as shown on the
// recorder's status page, the OLED display and the console.
type Readout struct {
	Timestamp string `json:"timestamp"`
	X         string `json:"x"`
	Y         string `json:"y"`
	Z         string `json:"z"`
	Latitude  string `json:"latitude"`
	Longitude string `json:"longitude"`
	Speed     string `json:"speed"`
}

// Readout formats accelerations to 2 decimals, coordinates to 6 and speed
// to 2 with its unit.
func (r Record) Readout() Readout {
	return Readout{
		Timestamp: r.Timestamp,
		X:         fixed(r.X, 2),
		Y:         fixed(r.Y, 2),
		Z:         fixed(r.Z, 2),
		Latitude:  fixed(r.Latitude, 6),
		Longitude: fixed(r.Longitude, 6),
		Speed:     fixed(r.Speed, 2) + " m/s",
	}
}

func fixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
