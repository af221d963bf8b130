package recorder

import (
	"fmt"

	"github.com/relabs-tech/motion_recorder/internal/record"
)

// Policy decides whether a sampled record enters the log.
type Policy int

const (
	// RejectNoFix skips ticks whose latitude and longitude are both zero,
	// i.e. no GPS fix has arrived yet.
	RejectNoFix Policy = iota
	// AcceptAll keeps every tick, with zeros for missing readings.
	AcceptAll
)

var policyNames = map[Policy]string{
	RejectNoFix: "reject_no_fix",
	AcceptAll:   "accept_all",
}

func (p Policy) String() string {
	if n, ok := policyNames[p]; ok {
		return n
	}
	return "unknown"
}

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	for p, n := range policyNames {
		if n == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown validity policy %q (want reject_no_fix or accept_all)", s)
}

// Accept reports whether r should be appended.
func (p Policy) Accept(r record.Record) bool {
	if p == AcceptAll {
		return true
	}
	return r.Latitude != 0 || r.Longitude != 0
}
