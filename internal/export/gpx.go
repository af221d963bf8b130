package export

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/motion_recorder/internal/record"
)

// GPX 1.0: track points in 1.1 have no <speed> element.
const (
	gpxVersion   = "1.0"
	gpxNamespace = "http://www.topografix.com/GPX/1/0"
	gpxCreator   = "motion_recorder"
)

type gpxDoc struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	Xmlns   string   `xml:"xmlns,attr"`
	Track   gpxTrack `xml:"trk"`
}

type gpxTrack struct {
	Name    string     `xml:"name,omitempty"`
	Segment gpxSegment `xml:"trkseg"`
}

type gpxSegment struct {
	Points []gpxPoint `xml:"trkpt"`
}

type gpxPoint struct {
	Lat   string  `xml:"lat,attr"` // xsd:decimal, no exponent
	Lon   string  `xml:"lon,attr"`
	Time  string  `xml:"time"`
	Speed *string `xml:"speed,omitempty"`
}

// GPX writes a single-track, single-segment GPX document. Records without a
// usable coordinate pair are left out; speed is written only when non-zero.
func GPX(records []record.Record, now time.Time) (Artifact, error) {
	doc := gpxDoc{
		Version: gpxVersion,
		Creator: gpxCreator,
		Xmlns:   gpxNamespace,
		Track:   gpxTrack{Name: now.Format("200601021504")},
	}

	for _, r := range records {
		if !r.HasPosition() {
			continue
		}
		pt := gpxPoint{Lat: ftoa(r.Latitude), Lon: ftoa(r.Longitude), Time: r.Timestamp}
		if r.Speed != 0 && !math.IsNaN(r.Speed) && !math.IsInf(r.Speed, 0) {
			speed := ftoa(r.Speed)
			pt.Speed = &speed
		}
		doc.Track.Segment.Points = append(doc.Track.Segment.Points, pt)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return Artifact{}, fmt.Errorf("gpx encode: %w", err)
	}
	buf.WriteByte('\n')

	return Artifact{
		Name:        FileName(now, "gpx"),
		ContentType: "application/gpx+xml",
		Payload:     buf.Bytes(),
	}, nil
}
