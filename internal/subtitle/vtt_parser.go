package subtitle

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	vttTimestamp = regexp.MustCompile(
		`(\d{2,}):(\d{2}):(\d{2})\.(\d{3})\s*-->\s*(\d{2,}):(\d{2}):(\d{2})\.(\d{3})`,
	)
	vttShortTimestamp = regexp.MustCompile(
		`(\d{2}):(\d{2})\.(\d{3})\s*-->\s*(\d{2}):(\d{2})\.(\d{3})`,
	)
	vttCueTag = regexp.MustCompile(`</?(?:c|v|i|b|u|ruby|rt|lang)(?:[.\s][^>]*)?>|<\d{2}:\d{2}[:.\d]*>`)
)

// parses WebVTT cues into a track, dropping NOTE and STYLE blocks and inline cue tags
func ParseVTT(r io.Reader) (Track, error) {
	scanner := bufio.NewScanner(r)

	var (
		track     Track
		current   *Segment
		textLines []string
		lineNum   int
	)

	flush := func() {
		if current != nil && len(textLines) > 0 {
			current.Text = vttCueTag.ReplaceAllString(strings.Join(textLines, "\n"), "")
			track = append(track, *current)
		}
		current = nil
		textLines = nil
	}

	skipBlock := func() {
		for scanner.Scan() {
			lineNum++
			if strings.TrimSpace(scanner.Text()) == "" {
				return
			}
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		lineNum++

		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
			if strings.HasPrefix(strings.TrimSpace(line), "WEBVTT") {
				skipBlock()
				continue
			}
		}

		trimmed := strings.TrimSpace(line)
		if current == nil && (strings.HasPrefix(trimmed, "NOTE") || strings.HasPrefix(trimmed, "STYLE")) {
			skipBlock()
			continue
		}

		if trimmed == "" {
			flush()
			continue
		}

		begin, end, ok, err := parseVTTTiming(line)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp at line %d: %w", lineNum, err)
		}
		if ok {
			flush()
			current = &Segment{Begin: begin, End: end}
			continue
		}

		if current != nil {
			textLines = append(textLines, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading VTT: %w", err)
	}

	return track, nil
}

func parseVTTTiming(line string) (float64, float64, bool, error) {
	if m := vttTimestamp.FindStringSubmatch(line); len(m) == 9 {
		begin, err := parseClock(m[1], m[2], m[3], m[4])
		if err != nil {
			return 0, 0, false, err
		}
		end, err := parseClock(m[5], m[6], m[7], m[8])
		if err != nil {
			return 0, 0, false, err
		}
		return begin, end, true, nil
	}
	if m := vttShortTimestamp.FindStringSubmatch(line); len(m) == 7 {
		begin, err := parseClock("00", m[1], m[2], m[3])
		if err != nil {
			return 0, 0, false, err
		}
		end, err := parseClock("00", m[4], m[5], m[6])
		if err != nil {
			return 0, 0, false, err
		}
		return begin, end, true, nil
	}
	return 0, 0, false, nil
}
