package subtitle

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// YouTube json3 caption payload
type json3Payload struct {
	Events []json3Event `json:"events"`
}

type json3Event struct {
	TStartMs    float64    `json:"tStartMs"`
	DDurationMs float64    `json:"dDurationMs"`
	Segs        []json3Seg `json:"segs"`
}

type json3Seg struct {
	UTF8 string `json:"utf8"`
}

// parses a json3 payload. In html mode bare newline events are dropped and
// newlines become <br>.
func ParseJSON3(data []byte, html bool) (Track, error) {
	var payload json3Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse json3 captions: %w", err)
	}

	track := make(Track, 0, len(payload.Events))
	for _, ev := range payload.Events {
		if ev.Segs == nil {
			continue
		}
		var sb strings.Builder
		for _, seg := range ev.Segs {
			sb.WriteString(seg.UTF8)
		}
		text := sb.String()

		if html {
			if text == "\n" {
				continue
			}
			text = strings.ReplaceAll(text, "\n", "<br>")
		}

		track = append(track, Segment{
			Begin: ev.TStartMs * 0.001,
			End:   (ev.TStartMs + ev.DDurationMs) * 0.001,
			Text:  text,
		})
	}

	return track, nil
}

type timedTextDoc struct {
	Texts []timedTextLine `xml:"text"`
}

type timedTextLine struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Body  string `xml:",chardata"`
}

var timedTextEntities = strings.NewReplacer(
	"&quot;", `"`,
	"&#39;", "'",
	"&amp;", "&",
)

// parses the legacy timedtext XML format
func ParseTimedText(data []byte) (Track, error) {
	var doc timedTextDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse timedtext captions: %w", err)
	}

	track := make(Track, 0, len(doc.Texts))
	for i, line := range doc.Texts {
		start, err := strconv.ParseFloat(line.Start, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid start %q in cue %d: %w", line.Start, i, err)
		}
		dur := 0.0
		if line.Dur != "" {
			if dur, err = strconv.ParseFloat(line.Dur, 64); err != nil {
				return nil, fmt.Errorf("invalid dur %q in cue %d: %w", line.Dur, i, err)
			}
		}
		track = append(track, Segment{
			Begin: start,
			End:   start + dur,
			Text:  timedTextEntities.Replace(line.Body),
		})
	}

	return track, nil
}
