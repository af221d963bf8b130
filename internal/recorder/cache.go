package recorder

import (
	"github.com/relabs-tech/motion_recorder/internal/gps"
	"github.com/relabs-tech/motion_recorder/internal/motion"
)

// Cache holds the latest motion and position sample of the session. Each
// push overwrites the previous value unconditionally. It does no locking of
// its own; Session serialises access.
type Cache struct {
	motion   motion.Sample
	position gps.Position
}

// OnMotion replaces the latest motion sample.
func (c *Cache) OnMotion(m motion.Sample) {
	c.motion = motion.Sample{X: clone(m.X), Y: clone(m.Y), Z: clone(m.Z)}
}

// OnPosition replaces the latest position sample.
func (c *Cache) OnPosition(p gps.Position) {
	c.position = gps.Position{
		Latitude:  clone(p.Latitude),
		Longitude: clone(p.Longitude),
		Speed:     clone(p.Speed),
	}
}

// Read returns copies of the latest samples. Fields never pushed are nil;
// substitution with defaults happens when the record is built.
func (c *Cache) Read() (motion.Sample, gps.Position) {
	m := motion.Sample{X: clone(c.motion.X), Y: clone(c.motion.Y), Z: clone(c.motion.Z)}
	p := gps.Position{
		Latitude:  clone(c.position.Latitude),
		Longitude: clone(c.position.Longitude),
		Speed:     clone(c.position.Speed),
	}
	return m, p
}

// Reset forgets both samples.
func (c *Cache) Reset() {
	*c = Cache{}
}

func clone(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
