package logging

import "testing"

func TestOrNopReturnsUsableLogger(t *testing.T) {
	l := OrNop(nil)
	if l == nil || l.SugaredLogger == nil {
		t.Fatal("expected non-nil logger")
	}
	l.Infow("discarded", "key", "value")
}

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name      string
		verbose   bool
		wantDebug bool
	}{
		{name: "quiet", verbose: false, wantDebug: false},
		{name: "verbose", verbose: true, wantDebug: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLogger(tt.verbose)
			got := l.Desugar().Core().Enabled(-1)
			if got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
		})
	}
}
