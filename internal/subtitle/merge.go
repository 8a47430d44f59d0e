package subtitle

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// one display row pairing learning and native text that share a start time
type CombinedRow struct {
	Time         float64 `json:"time"`
	EndTime      float64 `json:"endTime"`
	LearningText *string `json:"learningText"`
	NativeText   *string `json:"nativeText"`
	IsCurrent    bool    `json:"isCurrent"`
}

var (
	bracketOnly     = regexp.MustCompile(`^\[[^\]]*\]$`)
	parenthesisOnly = regexp.MustCompile(`^\([^)]*\)$`)
	escapedBreak    = regexp.MustCompile(`(?i)&lt;br\s*/?&gt;`)
)

// reports whether text is a sound cue like "[Music]" or "(laughs)"
func IsOnlyBracketsOrParentheses(text string) bool {
	if text == "" {
		return false
	}
	trimmed := strings.TrimSpace(text)
	return bracketOnly.MatchString(trimmed) || parenthesisOnly.MatchString(trimmed)
}

// escapes HTML special characters, keeping line breaks as <br />
func SanitizeHTML(text string) string {
	r := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&#039;",
	)
	return escapedBreak.ReplaceAllString(r.Replace(text), "<br />")
}

// formats seconds as mm:ss
func FormatTime(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	mins := int(math.Floor(seconds / 60))
	secs := int(math.Floor(math.Mod(seconds, 60)))
	return fmt.Sprintf("%02d:%02d", mins, secs)
}

// merges both tracks by exact begin time and marks the rows relevant at now.
// Pure: identical inputs always produce identical output.
func BuildCombinedRows(native, learning Track, now float64) []CombinedRow {
	byTime := make(map[float64]*CombinedRow)
	order := make([]float64, 0, len(native)+len(learning))

	upsert := func(seg Segment, role Role) {
		if IsOnlyBracketsOrParentheses(seg.Text) {
			return
		}
		text := SanitizeHTML(seg.Text)
		row, ok := byTime[seg.Begin]
		if !ok {
			row = &CombinedRow{Time: seg.Begin, EndTime: seg.End}
			byTime[seg.Begin] = row
			order = append(order, seg.Begin)
		} else {
			row.EndTime = math.Max(row.EndTime, seg.End)
		}
		if role == RoleLearning {
			row.LearningText = &text
		} else {
			row.NativeText = &text
		}
	}

	for _, seg := range learning {
		upsert(seg, RoleLearning)
	}
	for _, seg := range native {
		upsert(seg, RoleNative)
	}

	rows := make([]CombinedRow, 0, len(order))
	for _, key := range order {
		row := byTime[key]
		if !hasText(row.LearningText) && !hasText(row.NativeText) {
			continue
		}
		rows = append(rows, *row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Time < rows[j].Time
	})

	markCurrent(rows, now)
	return rows
}

func hasText(s *string) bool {
	return s != nil && *s != "" && !IsOnlyBracketsOrParentheses(*s)
}

// applies the highlight policy: covering rows, then leading and trailing
// rows, then the closer side of an interior gap with ties going to the earlier row
func markCurrent(rows []CombinedRow, now float64) {
	last := len(rows) - 1
	for i := range rows {
		row := &rows[i]
		switch {
		case now >= row.Time && now <= row.EndTime:
			row.IsCurrent = true
		case i == 0 && now < row.Time:
			row.IsCurrent = true
		case i == last && now > row.EndTime:
			row.IsCurrent = true
		}
	}

	for i := 1; i <= last; i++ {
		prev, next := &rows[i-1], &rows[i]
		if now <= prev.EndTime || now >= next.Time {
			continue
		}
		distToPrev := now - prev.EndTime
		distToNext := next.Time - now
		if distToNext < distToPrev {
			next.IsCurrent = true
		} else {
			prev.IsCurrent = true
		}
	}
}

// index of the first current row, or -1
func CurrentRowIndex(rows []CombinedRow) int {
	for i, row := range rows {
		if row.IsCurrent {
			return i
		}
	}
	return -1
}
