package motion

// Sample is one accelerometer reading in m/s².
// A nil axis means the source did not report it.
type Sample struct {
	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
	Z *float64 `json:"z,omitempty"`
}

// Source is anything that can provide motion samples on demand.
// Producers poll it; the recorder never does.
type Source interface {
	Next() (Sample, error)
}

// Axes builds a fully populated sample.
func Axes(x, y, z float64) Sample {
	return Sample{X: &x, Y: &y, Z: &z}
}
