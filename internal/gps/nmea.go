package gps

import (
	"fmt"
	"strings"

	nmea "github.com/adrianmo/go-nmea"
)

// KnotsToMPS converts speed over ground from knots to metres per second.
const KnotsToMPS = 0.514444

// ErrNoFix is returned by ParseSentence for RMC sentences flagged void.
var ErrNoFix = fmt.Errorf("gps: receiver has no fix")

// FromRMC converts an RMC sentence into a Position. Void sentences ("V")
// carry zeroed coordinates and are reported as ErrNoFix.
func FromRMC(m nmea.RMC) (Position, error) {
	if m.Validity != nmea.ValidRMC {
		return Position{}, ErrNoFix
	}
	return Position{
		Latitude:  Float(m.Latitude),
		Longitude: Float(m.Longitude),
		Speed:     Float(m.Speed * KnotsToMPS),
	}, nil
}

// ParseSentence parses one raw NMEA line. ok is false for lines that are not
// RMC sentences, which callers skip.
func ParseSentence(line string) (pos Position, ok bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, "$") {
		return Position{}, false, nil
	}

	sentence, err := nmea.Parse(line)
	if err != nil {
		return Position{}, false, fmt.Errorf("parse nmea: %w", err)
	}
	if sentence.DataType() != nmea.TypeRMC {
		return Position{}, false, nil
	}

	pos, err = FromRMC(sentence.(nmea.RMC))
	if err != nil {
		return Position{}, true, err
	}
	return pos, true, nil
}
