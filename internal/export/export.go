// Package export encodes a finished record log into the interchange
// formats emitted when a session stops.
package export

import (
	"time"

	"github.com/relabs-tech/motion_recorder/internal/record"
)

// Artifact is one generated file: a name and its content.
type Artifact struct {
	Name        string
	ContentType string
	Payload     []byte
}

// Exporter turns a record log into an artifact. now is the export time and
// only feeds the filename.
type Exporter func(records []record.Record, now time.Time) (Artifact, error)

// FileName returns YYYYMMDDhhmm.<ext> in the zone carried by now. Callers
// pass host-local time, unlike record timestamps which use record.Zone.
func FileName(now time.Time, ext string) string {
	return now.Format("200601021504") + "." + ext
}

// All runs every exporter over the same records, stopping at the first error.
func All(records []record.Record, now time.Time, exporters ...Exporter) ([]Artifact, error) {
	out := make([]Artifact, 0, len(exporters))
	for _, e := range exporters {
		a, err := e(records, now)
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, nil
}
