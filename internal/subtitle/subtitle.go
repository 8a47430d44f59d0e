package subtitle

import "time"

// represents single timed subtitle cue, times in seconds
type Segment struct {
	Begin float64 `json:"begin"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// reports whether t falls inside [Begin, End]
func (s Segment) Contains(t float64) bool {
	return t >= s.Begin && t <= s.End
}

func (s Segment) Duration() time.Duration {
	return time.Duration((s.End - s.Begin) * float64(time.Second))
}

// ordered cues for one language role, replaced wholesale and never mutated
type Track []Segment

// language role of a track
type Role string

const (
	RoleNative   Role = "native"
	RoleLearning Role = "learning"
)

// native and learning tracks of the same video
type Tracks struct {
	Native   Track `json:"native"`
	Learning Track `json:"learning"`
}

// learning track when non-empty, else native
func (t Tracks) Active() Track {
	if len(t.Learning) > 0 {
		return t.Learning
	}
	return t.Native
}

// track for role
func (t Tracks) ByRole(role Role) Track {
	if role == RoleNative {
		return t.Native
	}
	return t.Learning
}

// represents supported subtitle formats
type Format string

const (
	FormatSRT       Format = "srt"
	FormatVTT       Format = "vtt"
	FormatJSON3     Format = "json3"
	FormatTimedText Format = "timedtext"
)

// converts seconds to a duration
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// converts a duration to seconds
func ToSeconds(d time.Duration) float64 {
	return d.Seconds()
}
