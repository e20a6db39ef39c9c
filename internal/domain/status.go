package domain

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	sinkHeader    = "sink(s) available."
	sourceHeader  = "source(s) available."
	defaultMarker = "* index:"
	volumePrefix  = "volume:"
)

var percentRe = regexp.MustCompile(`(\d+)%`)

type parseSection int

const (
	sectionNone parseSection = iota
	sectionSinks
	sectionSources
)

// ParseVolumes scans a status report and returns the volume of the default sink
// and default source. It never fails: unrecognised input yields zero values.
//
// A "* index:" line arms the scanner; the next "volume:" line in the same section
// is taken as the default device's volume and disarms it. A later default marker
// in the same section overwrites the earlier value.
func ParseVolumes(text string) StatusSnapshot {
	var (
		snap    StatusSnapshot
		section = sectionNone
		armed   bool
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		if strings.Contains(line, sinkHeader) {
			section = sectionSinks
			continue
		}
		if strings.Contains(line, sourceHeader) {
			section = sectionSources
			continue
		}

		if strings.HasPrefix(line, defaultMarker) {
			armed = true
		}
		if strings.HasPrefix(line, volumePrefix) && armed {
			v := extractPercent(line)
			switch section {
			case sectionSinks:
				snap.SinkVolumePercent = v
			case sectionSources:
				snap.SourceVolumePercent = v
			}
			armed = false
		}
	}

	return snap
}

// extractPercent returns the first run of digits directly followed by '%', or 0.
func extractPercent(line string) float64 {
	m := percentRe.FindStringSubmatch(line)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return float64(v)
}

// Changed reports whether next differs from prev. A nil prev always differs.
func Changed(prev *StatusSnapshot, next StatusSnapshot) bool {
	return prev == nil || *prev != next
}
