package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var srtTimestamp = regexp.MustCompile(
	`(\d{2,}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2,}):(\d{2}):(\d{2})[,.](\d{3})`,
)

// parses SubRip cues into a track
func ParseSRT(r io.Reader) (Track, error) {
	scanner := bufio.NewScanner(r)

	var (
		track     Track
		current   *Segment
		textLines []string
		lineNum   int
	)

	flush := func() {
		if current != nil && len(textLines) > 0 {
			current.Text = strings.Join(textLines, "\n")
			track = append(track, *current)
		}
		current = nil
		textLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++

		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if current == nil {
			if _, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
				continue
			}
			matches := srtTimestamp.FindStringSubmatch(line)
			if len(matches) != 9 {
				continue
			}
			begin, err := parseClock(matches[1], matches[2], matches[3], matches[4])
			if err != nil {
				return nil, fmt.Errorf("invalid start timestamp at line %d: %w", lineNum, err)
			}
			end, err := parseClock(matches[5], matches[6], matches[7], matches[8])
			if err != nil {
				return nil, fmt.Errorf("invalid end timestamp at line %d: %w", lineNum, err)
			}
			current = &Segment{Begin: begin, End: end}
			continue
		}

		textLines = append(textLines, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SRT: %w", err)
	}

	return track, nil
}

// converts h:m:s.ms components to seconds
func parseClock(hours, minutes, seconds, millis string) (float64, error) {
	parts := []string{hours, minutes, seconds, millis}
	values := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil {
			return 0, err
		}
		values[i] = v
	}
	if values[1] > 59 || values[2] > 59 {
		return 0, fmt.Errorf("clock component out of range: %s:%s:%s", hours, minutes, seconds)
	}

	total := values[0]*3600000 + values[1]*60000 + values[2]*1000 + values[3]
	return float64(total) / 1000, nil
}
