package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/relabs-tech/motion_recorder/internal/record"
)

// CSVHeader is the fixed column order of the CSV export.
var CSVHeader = []string{"timestamp", "x", "y", "z", "latitude", "longitude", "speed"}

// CSV writes one row per record, unfiltered, under CSVHeader.
func CSV(records []record.Record, now time.Time) (Artifact, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(CSVHeader); err != nil {
		return Artifact{}, fmt.Errorf("csv write header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(csvRow(r)); err != nil {
			return Artifact{}, fmt.Errorf("csv write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return Artifact{}, fmt.Errorf("csv flush: %w", err)
	}

	return Artifact{
		Name:        FileName(now, "csv"),
		ContentType: "text/csv",
		Payload:     buf.Bytes(),
	}, nil
}

func csvRow(r record.Record) []string {
	return []string{
		r.Timestamp,
		ftoa(r.X),
		ftoa(r.Y),
		ftoa(r.Z),
		ftoa(r.Latitude),
		ftoa(r.Longitude),
		ftoa(r.Speed),
	}
}

// ftoa renders the shortest decimal that parses back to v.
func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
