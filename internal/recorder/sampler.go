package recorder

import (
	"time"

	"github.com/relabs-tech/motion_recorder/internal/clock"
	"github.com/relabs-tech/motion_recorder/internal/record"
)

// sampler owns the periodic trigger of one session.
type sampler struct {
	clock    clock.Clock
	interval time.Duration
	cancel   clock.Cancel
}

func (s *sampler) start(tick func(time.Time)) {
	s.stop()
	s.cancel = s.clock.Every(s.interval, tick)
}

func (s *sampler) stop() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// sample merges the cached values into a record stamped at now and applies
// the validity policy.
func sample(now time.Time, c *Cache, p Policy) (record.Record, bool) {
	m, pos := c.Read()
	r := record.New(now, m, pos)
	return r, p.Accept(r)
}
