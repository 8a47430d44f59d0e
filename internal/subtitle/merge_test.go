package subtitle

import (
	"reflect"
	"testing"
)

func TestBuildCombinedRowsMergesSharedBegin(t *testing.T) {
	learning := Track{
		{Begin: 0, End: 2, Text: "Hi"},
		{Begin: 2, End: 4, Text: "[Music]"},
		{Begin: 5, End: 6, Text: "later"},
	}
	native := Track{
		{Begin: 5, End: 7, Text: "depois"},
		{Begin: 0, End: 3, Text: "Oi"},
		{Begin: 4.5, End: 4.9, Text: "(risos)"},
	}

	rows := BuildCombinedRows(native, learning, 1)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}

	first := rows[0]
	if first.Time != 0 || first.EndTime != 3 {
		t.Errorf("row 0 timing = [%v,%v], want [0,3]", first.Time, first.EndTime)
	}
	if first.LearningText == nil || *first.LearningText != "Hi" {
		t.Errorf("row 0 learning = %v", first.LearningText)
	}
	if first.NativeText == nil || *first.NativeText != "Oi" {
		t.Errorf("row 0 native = %v", first.NativeText)
	}
	if !first.IsCurrent {
		t.Error("row 0 should be current at t=1")
	}
	if rows[1].Time != 5 || rows[1].EndTime != 7 || rows[1].IsCurrent {
		t.Errorf("unexpected row 1: %+v", rows[1])
	}
}

func TestBuildCombinedRowsOffsetBeginsStaySeparate(t *testing.T) {
	learning := Track{{Begin: 1.0, End: 2, Text: "one"}}
	native := Track{{Begin: 1.05, End: 2, Text: "um"}}

	rows := BuildCombinedRows(native, learning, 0)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].NativeText != nil || rows[1].LearningText != nil {
		t.Errorf("rows should not be fuzzily aligned: %+v", rows)
	}
}

func TestBuildCombinedRowsCurrentPolicy(t *testing.T) {
	learning := Track{
		{Begin: 10, End: 12, Text: "a"},
		{Begin: 20, End: 22, Text: "b"},
		{Begin: 30, End: 32, Text: "c"},
	}

	tests := []struct {
		name string
		now  float64
		want []bool
	}{
		{name: "before first", now: 1, want: []bool{true, false, false}},
		{name: "covering middle", now: 21, want: []bool{false, true, false}},
		{name: "after last", now: 40, want: []bool{false, false, true}},
		{name: "gap closer to previous", now: 14, want: []bool{true, false, false}},
		{name: "gap closer to next", now: 19, want: []bool{false, true, false}},
		{name: "gap exact tie favors previous", now: 16, want: []bool{true, false, false}},
		{name: "row end boundary", now: 12, want: []bool{true, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := BuildCombinedRows(nil, learning, tt.now)
			got := make([]bool, len(rows))
			for i, row := range rows {
				got[i] = row.IsCurrent
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("current flags = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildCombinedRowsIsPure(t *testing.T) {
	learning := Track{{Begin: 3, End: 4, Text: "x < y"}, {Begin: 0, End: 1, Text: "first<br>line"}}
	native := Track{{Begin: 3, End: 5, Text: "x & y"}}

	a := BuildCombinedRows(native, learning, 2)
	b := BuildCombinedRows(native, learning, 2)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("builder is not deterministic:\n%+v\n%+v", a, b)
	}
	if a[0].Time != 0 {
		t.Errorf("rows not sorted by time: %+v", a)
	}
	if *a[0].LearningText != "first<br />line" {
		t.Errorf("line break not restored: %q", *a[0].LearningText)
	}
	if *a[1].LearningText != "x &lt; y" || *a[1].NativeText != "x &amp; y" {
		t.Errorf("text not sanitized: %q / %q", *a[1].LearningText, *a[1].NativeText)
	}
	if learning[0].Text != "x < y" {
		t.Error("input track was mutated")
	}
}

func TestBuildCombinedRowsEmpty(t *testing.T) {
	rows := BuildCombinedRows(nil, Track{{Begin: 0, End: 1, Text: "[Applause]"}}, 0)
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %+v", rows)
	}
	if CurrentRowIndex(rows) != -1 {
		t.Error("expected -1 for empty rows")
	}
}

func TestIsOnlyBracketsOrParentheses(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{input: "[Music]", want: true},
		{input: "  (laughs)  ", want: true},
		{input: "[Music] hello", want: false},
		{input: "hello (world)", want: false},
		{input: "", want: false},
		{input: "[a] [b]", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IsOnlyBracketsOrParentheses(tt.input); got != tt.want {
				t.Errorf("IsOnlyBracketsOrParentheses(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{seconds: 0, want: "00:00"},
		{seconds: 59.9, want: "00:59"},
		{seconds: 61, want: "01:01"},
		{seconds: 3725, want: "62:05"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.seconds); got != tt.want {
			t.Errorf("FormatTime(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestSanitizeHTMLQuotes(t *testing.T) {
	got := SanitizeHTML(`"it's"<BR/>`)
	want := "&quot;it&#039;s&quot;<br />"
	if got != want {
		t.Errorf("SanitizeHTML = %q, want %q", got, want)
	}
}
