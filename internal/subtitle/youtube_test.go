package subtitle

import "testing"

const sampleJSON3 = `{
  "events": [
    {"tStartMs": 0, "dDurationMs": 5000},
    {"tStartMs": 1000, "dDurationMs": 2000, "segs": [{"utf8": "Hello "}, {"utf8": "there"}]},
    {"tStartMs": 3000, "dDurationMs": 10, "segs": [{"utf8": "\n"}]},
    {"tStartMs": 3500, "dDurationMs": 1500, "segs": [{"utf8": "two\nlines"}]}
  ]
}`

func TestParseJSON3(t *testing.T) {
	tests := []struct {
		name      string
		html      bool
		wantCount int
		wantLast  string
	}{
		{name: "text mode keeps newline events", html: false, wantCount: 3, wantLast: "two\nlines"},
		{name: "html mode drops newline events", html: true, wantCount: 2, wantLast: "two<br>lines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			track, err := ParseJSON3([]byte(sampleJSON3), tt.html)
			if err != nil {
				t.Fatalf("ParseJSON3 error: %v", err)
			}
			if len(track) != tt.wantCount {
				t.Fatalf("expected %d segments, got %d", tt.wantCount, len(track))
			}
			if track[0].Begin != 1 || track[0].End != 3 || track[0].Text != "Hello there" {
				t.Errorf("unexpected first segment: %+v", track[0])
			}
			if got := track[len(track)-1].Text; got != tt.wantLast {
				t.Errorf("last text = %q, want %q", got, tt.wantLast)
			}
		})
	}
}

func TestParseJSON3Invalid(t *testing.T) {
	if _, err := ParseJSON3([]byte(`{"events": [`), false); err == nil {
		t.Error("expected error for truncated payload")
	}
}

func TestParseTimedText(t *testing.T) {
	data := `<?xml version="1.0" encoding="utf-8" ?><transcript>
<text start="0.5" dur="1.25">it&amp;#39;s &amp;quot;fine&amp;quot;</text>
<text start="2">no duration</text>
</transcript>`

	track, err := ParseTimedText([]byte(data))
	if err != nil {
		t.Fatalf("ParseTimedText error: %v", err)
	}
	if len(track) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(track))
	}
	if track[0].Begin != 0.5 || track[0].End != 1.75 {
		t.Errorf("segment 0 timing = [%v,%v]", track[0].Begin, track[0].End)
	}
	if track[0].Text != `it's "fine"` {
		t.Errorf("segment 0 text = %q", track[0].Text)
	}
	if track[1].End != 2 {
		t.Errorf("segment 1 end = %v, want 2", track[1].End)
	}
}
