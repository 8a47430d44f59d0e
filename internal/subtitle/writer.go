package subtitle

import (
	"fmt"
	"html"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// writes a track as SRT or VTT
func WriteTrack(w io.Writer, format Format, track Track) error {
	cues := make([]Segment, len(track))
	copy(cues, track)
	return writeCues(w, format, cues)
}

// writes both tracks as one bilingual file, learning line above native line
func WriteBilingual(w io.Writer, format Format, native, learning Track) error {
	rows := BuildCombinedRows(native, learning, math.Inf(-1))
	cues := make([]Segment, 0, len(rows))
	for _, row := range rows {
		var lines []string
		if row.LearningText != nil {
			lines = append(lines, plainText(*row.LearningText))
		}
		if row.NativeText != nil {
			lines = append(lines, plainText(*row.NativeText))
		}
		cues = append(cues, Segment{
			Begin: row.Time,
			End:   row.EndTime,
			Text:  strings.Join(lines, "\n"),
		})
	}
	return writeCues(w, format, cues)
}

// writes the bilingual file to path, creating parent directories
func WriteBilingualFile(path string, native, learning Track) error {
	format, ok := FormatFromExtension(path)
	if !ok || (format != FormatSRT && format != FormatVTT) {
		return fmt.Errorf("unsupported export format: %s", filepath.Ext(path))
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteBilingual(file, format, native, learning); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func writeCues(w io.Writer, format Format, cues []Segment) error {
	var sb strings.Builder

	switch format {
	case FormatSRT:
		for i, cue := range cues {
			// index (1-based)
			fmt.Fprintf(&sb, "%d\n", i+1)
			fmt.Fprintf(&sb, "%s --> %s\n", formatSRTTime(cue.Begin), formatSRTTime(cue.End))
			sb.WriteString(cue.Text)
			sb.WriteString("\n\n")
		}
	case FormatVTT:
		sb.WriteString("WEBVTT\n\n")
		for i, cue := range cues {
			fmt.Fprintf(&sb, "%d\n", i+1)
			fmt.Fprintf(&sb, "%s --> %s\n", formatVTTTime(cue.Begin), formatVTTTime(cue.End))
			sb.WriteString(cue.Text)
			sb.WriteString("\n\n")
		}
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func plainText(s string) string {
	s = strings.ReplaceAll(s, "<br />", "\n")
	return html.UnescapeString(s)
}

func splitClock(seconds float64) (h, m, s, ms int) {
	total := int(math.Round(seconds * 1000))
	if total < 0 {
		total = 0
	}
	h = total / 3600000
	m = (total / 60000) % 60
	s = (total / 1000) % 60
	ms = total % 1000
	return
}

func formatSRTTime(seconds float64) string {
	h, m, s, ms := splitClock(seconds)
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}

func formatVTTTime(seconds float64) string {
	h, m, s, ms := splitClock(seconds)
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0755)
}
